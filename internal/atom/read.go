package atom

import (
	"encoding/xml"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/geo"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// reader holds the per-call decode state
type reader struct {
	c     *Codec
	s     *stream
	depth *codec.Depth
}

func (r *reader) warn(msg string, fields ...zap.Field) {
	r.c.Logger().Warn(msg, fields...)
}

// reference reads a v4 m:ref or v3 uri element and returns its ID. Other
// elements are left unread.
func (r *reader) reference(start xml.StartElement) (string, bool, error) {
	e := head(start)
	switch {
	case isMeta(e, constants.MetaRef):
		id := attr(e, constants.MetaAttrID)
		if id == "" {
			id = metaAttr(e, constants.MetaAttrID)
		}
		return id, true, r.s.skip()
	case isData(e, constants.DataURI):
		text, err := r.s.text()
		return strings.TrimSpace(text), true, err
	}
	return "", false, nil
}

// entity decodes an atom:entry, or an entity reference, whose start tag was just read
func (r *reader) entity(start xml.StartElement, ctx *models.ContextURL) (*models.Entity, error) {
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	id, ok, err := r.reference(start)
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, "", err)
	}
	if ok {
		if id == "" {
			return nil, models.WrapStage(models.StageEntity, "", models.ErrUnresolvedReference)
		}
		return models.NewReference(id), nil
	}
	e := head(start)
	if !isAtom(e, constants.AtomEntry) {
		return nil, models.Malformed("%s: <%s>", constants.ErrUnexpectedElement, e.Name.Local)
	}

	ent := &models.Entity{
		Context: metaAttr(e, constants.MetaAttrContext),
		BaseURI: xmlAttr(e, constants.AtomAttrBase),
		ETag:    metaAttr(e, constants.MetaAttrETag),
	}
	if ctx == nil && ent.Context != "" {
		ctx = r.c.parseContext(ent.Context)
	}
	if ent.BaseURI == "" && ctx != nil {
		ent.BaseURI = ctx.ServiceRoot
	}

	// targeted annotations may precede the properties they name
	var targeted []*xmltree.Element
	err = r.s.walk(func(start xml.StartElement) error {
		child := head(start)
		switch {
		case isAtom(child, constants.AtomID):
			text, err := r.s.text()
			ent.ID = strings.TrimSpace(text)
			return err
		case isAtom(child, constants.AtomCategory):
			if scheme := attr(child, constants.AtomAttrScheme); scheme == constants.SchemeNamespaceV4 || scheme == constants.SchemeNamespaceV3 {
				ent.TypeName = codec.NormalizeTypeName(attr(child, constants.AtomAttrTerm))
			}
		case isAtom(child, constants.AtomLink):
			return r.entryLink(ent, start)
		case isAtom(child, constants.AtomContent):
			return r.content(ent, start)
		case isMeta(child, constants.MetaProperties):
			props, err := r.properties()
			ent.MediaEntryProperties = props
			return err
		case isMeta(child, constants.MetaAction), isMeta(child, constants.MetaFunction):
			ent.Operations = append(ent.Operations, operation(child))
		case isMeta(child, constants.MetaAnnotation):
			tree, err := r.s.tree(start)
			if err != nil {
				return err
			}
			if attr(tree, constants.MetaAttrTarget) != "" {
				targeted = append(targeted, tree)
				return nil
			}
			ann, err := r.annotation(tree)
			if err != nil {
				return err
			}
			ent.Annotations = append(ent.Annotations, ann)
			return nil
		case isAtom(child, constants.AtomTitle), isAtom(child, constants.AtomUpdated),
			isAtom(child, constants.AtomAuthor), isAtom(child, constants.AtomSummary):
		default:
			r.warn("skipping unknown entry element",
				zap.String("namespace", child.Name.Space), zap.String("element", child.Name.Local))
		}
		return r.s.skip()
	})
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, ent.ID, err)
	}
	if err := r.targetedAnnotations(ent, targeted); err != nil {
		return nil, models.WrapStage(models.StageEntity, ent.ID, err)
	}

	if ent.IsReference() && ent.ID == "" && ent.ETag == "" && ent.SelfLink == nil && ent.EditLink == nil {
		return nil, models.WrapStage(models.StageEntity, "", models.ErrUnresolvedReference)
	}
	return ent, nil
}

// entryLink sorts an atom:link by its relation and consumes it
func (r *reader) entryLink(ent *models.Entity, start xml.StartElement) error {
	e := head(start)
	names := r.c.Atom
	rel := attr(e, constants.AtomAttrRel)
	href := attr(e, constants.AtomAttrHref)
	title := attr(e, constants.AtomAttrTitle)
	switch {
	case rel == constants.AtomRelSelf:
		ent.SelfLink = &models.Link{Type: models.LinkSelf, Rel: rel, Href: href}
	case rel == constants.AtomRelEdit:
		ent.EditLink = &models.Link{Type: models.LinkEdit, Rel: rel, Href: href}
	case rel == constants.AtomRelEditMedia:
		ent.MediaEditURI = href
		ent.MediaETag = metaAttr(e, constants.MetaAttrETag)
	case isRelated(rel):
		l, err := r.navigation(e, rel, relTitle(rel, title))
		if err != nil {
			return err
		}
		ent.NavigationLinks = append(ent.NavigationLinks, l)
		return nil
	case strings.HasPrefix(rel, names.RelatedLinksRelPrefix) || strings.HasPrefix(rel, otherRelatedLinks(names)):
		ent.AssociationLinks = append(ent.AssociationLinks, &models.Link{
			Type: models.LinkAssociation, Rel: rel, Title: relTitle(rel, title), Href: href,
		})
	case strings.HasPrefix(rel, constants.EditMediaRelPrefixV4) || strings.HasPrefix(rel, constants.EditMediaRelPrefixV3):
		l := mediaLink(ent, relTitle(rel, title))
		l.Rel, l.Href = rel, href
		l.MediaType = attr(e, constants.AtomAttrType)
		l.MediaETag = metaAttr(e, constants.MetaAttrETag)
	case strings.HasPrefix(rel, constants.MediaResourceRelPrefixV4) || strings.HasPrefix(rel, constants.MediaResourceRelPrefixV3):
		l := mediaLink(ent, relTitle(rel, title))
		if l.Href == "" {
			l.Rel, l.Href = rel, href
		}
		if l.MediaType == "" {
			l.MediaType = attr(e, constants.AtomAttrType)
		}
	default:
		r.warn("skipping link with unknown relation", zap.String("rel", rel))
	}
	return r.s.skip()
}

func otherRelatedLinks(names *constants.AtomNameSet) string {
	if names.RelatedLinksRelPrefix == constants.RelatedLinksRelPrefixV4 {
		return constants.RelatedLinksRelPrefixV3
	}
	return constants.RelatedLinksRelPrefixV4
}

func isRelated(rel string) bool {
	return strings.HasPrefix(rel, constants.RelatedRelPrefixV4) || strings.HasPrefix(rel, constants.RelatedRelPrefixV3)
}

// relTitle takes the link title from the relation suffix, falling back to the title attribute
func relTitle(rel, title string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 && i < len(rel)-1 {
		return rel[i+1:]
	}
	return title
}

// mediaLink finds or appends the named-stream link with the given title
func mediaLink(ent *models.Entity, title string) *models.Link {
	if l := ent.MediaEditLink(title); l != nil {
		return l
	}
	l := &models.Link{Type: models.LinkMediaEdit, Title: title}
	ent.MediaEditLinks = append(ent.MediaEditLinks, l)
	return l
}

// navigation decodes a related link and reads its m:inline content in place
func (r *reader) navigation(e *xmltree.Element, rel, title string) (*models.Link, error) {
	l := &models.Link{
		Title: title,
		Rel:   rel,
		Type:  models.LinkEntityNavigation,
		Href:  attr(e, constants.AtomAttrHref),
	}
	if strings.Contains(attr(e, constants.AtomAttrType), "type=feed") {
		l.Type = models.LinkEntitySetNavigation
	}
	err := r.s.walk(func(start xml.StartElement) error {
		if !isMeta(head(start), constants.MetaInline) {
			return r.s.skip()
		}
		return r.s.walk(func(start xml.StartElement) error {
			child := head(start)
			switch {
			case isAtom(child, constants.AtomFeed):
				set, err := r.feed(start)
				if err != nil {
					return err
				}
				l.Type = models.LinkEntitySetNavigation
				l.InlineEntitySet = set
				return nil
			case isAtom(child, constants.AtomEntry), isMeta(child, constants.MetaRef), isData(child, constants.DataURI):
				ent, err := r.entity(start, nil)
				if err != nil {
					return err
				}
				l.Type = models.LinkEntityNavigation
				l.InlineEntity = ent
				return nil
			}
			return r.s.skip()
		})
	})
	if err != nil {
		return nil, models.WrapStage(models.StageLink, title, err)
	}
	return l, nil
}

// content reads atom:content: inline m:properties or the source of a media entity
func (r *reader) content(ent *models.Entity, start xml.StartElement) error {
	e := head(start)
	if src := attr(e, constants.AtomAttrSrc); src != "" {
		ent.MediaContentSource = src
		ent.MediaContentType = attr(e, constants.AtomAttrType)
		return r.s.skip()
	}
	return r.s.walk(func(start xml.StartElement) error {
		if !isMeta(head(start), constants.MetaProperties) {
			return r.s.skip()
		}
		props, err := r.properties()
		if err != nil {
			return err
		}
		ent.Properties = append(ent.Properties, props...)
		return nil
	})
}

func operation(e *xmltree.Element) *models.Operation {
	return &models.Operation{
		Metadata: attr(e, constants.MetaAttrMetadata),
		Title:    attr(e, constants.MetaAttrTitle),
		Target:   attr(e, constants.MetaAttrTarget),
	}
}

// annotation decodes an m:annotation element; its value is read like a property's
func (r *reader) annotation(e *xmltree.Element) (*models.Annotation, error) {
	term, qualifier := splitTerm(attr(e, constants.MetaAttrTerm))
	typeName := elementType(e)
	v, err := r.value(e, typeName, "")
	if err != nil {
		return nil, models.WrapStage(models.StageProperty, term, err)
	}
	return &models.Annotation{Term: term, Qualifier: qualifier, Type: typeName, Value: v}, nil
}

// targetedAnnotations attaches m:annotation elements whose target names a property
func (r *reader) targetedAnnotations(ent *models.Entity, elems []*xmltree.Element) error {
	for _, e := range elems {
		ann, err := r.annotation(e)
		if err != nil {
			return err
		}
		target := attr(e, constants.MetaAttrTarget)
		if p := ent.Property(target); p != nil {
			p.Annotations = append(p.Annotations, ann)
			continue
		}
		r.warn("skipping annotation for unknown property", zap.String("target", target), zap.String("term", ann.Term))
	}
	return nil
}

// elementType returns the normalised m:type of an element
func elementType(e *xmltree.Element) string {
	return codec.NormalizeTypeName(metaAttr(e, constants.MetaAttrType))
}

// properties decodes the children of the m:properties element just opened.
// Each property is buffered on its own before its value is read.
func (r *reader) properties() ([]*models.Property, error) {
	var props []*models.Property
	err := r.s.walk(func(start xml.StartElement) error {
		if !isDataSpace(start.Name.Space) {
			r.warn("skipping non-data element in properties", zap.String("element", start.Name.Local))
			return r.s.skip()
		}
		el, err := r.s.tree(start)
		if err != nil {
			return err
		}
		p, err := r.property(el, false)
		if err != nil {
			return err
		}
		props = append(props, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return props, nil
}

// property decodes one d:Name element. Unsupported geometry inside a larger
// payload degrades to null; a top-level property reports it.
func (r *reader) property(e *xmltree.Element, top bool) (*models.Property, error) {
	name := e.Name.Local
	typeName := elementType(e)
	v, err := r.value(e, typeName, "")
	if err != nil {
		if top || !errors.Is(err, models.ErrUnsupportedGeometry) {
			return nil, models.WrapStage(models.StageProperty, name, err)
		}
		r.warn("replacing unsupported geometry with null", zap.String("property", name), zap.Error(err))
		v = &models.Value{Kind: models.NullValue, TypeName: typeName}
	}
	return &models.Property{Name: name, Type: typeName, Value: v}, nil
}

// value decodes an element under an optional declared type. implied is the
// type a collection passes down to its untyped items.
func (r *reader) value(e *xmltree.Element, typeName, implied string) (*models.Value, error) {
	if typeName == "" {
		typeName = implied
	}
	if metaAttr(e, constants.MetaAttrNull) == "true" {
		return &models.Value{Kind: models.NullValue, TypeName: typeName}, nil
	}
	kind := codec.Classify(r.c.Opts.Resolver, typeName)
	gml := gmlChild(e)
	switch {
	case kind == codec.TypeCollection || (kind == codec.TypeUnknown && isCollectionElement(e)):
		return r.collection(e, typeName)
	case kind == codec.TypeGeospatial || (kind == codec.TypeUnknown && gml != nil):
		return r.geospatial(e, gml, typeName)
	case kind == codec.TypeStructured || (kind == codec.TypeUnknown && len(e.Children) > 0):
		return r.complex(e, typeName)
	case len(e.Children) > 0:
		return nil, models.NewMalformedValue(e.Children[0].Name.Local, typeName, errors.New("element content for a scalar type"))
	}
	return r.c.ParseScalar(typeName, e.Text)
}

// isCollectionElement reports whether every child is an item element
func isCollectionElement(e *xmltree.Element) bool {
	if len(e.Children) == 0 {
		return false
	}
	for _, c := range e.Children {
		if c.Name.Local != constants.MetaElement || !(isMetaSpace(c.Name.Space) || isDataSpace(c.Name.Space)) {
			return false
		}
	}
	return true
}

func gmlChild(e *xmltree.Element) *xmltree.Element {
	for _, c := range e.Children {
		if c.Name.Space == constants.GMLNamespace {
			return c
		}
	}
	return nil
}

// geospatial decodes the GML child of e. Without a declared type the shape comes
// from the element name and the dimension defaults to Geography.
func (r *reader) geospatial(e, gml *xmltree.Element, typeName string) (*models.Value, error) {
	if gml == nil {
		return nil, models.NewMalformedValue(e.Text, typeName, errors.New("missing GML geometry"))
	}
	if typeName == "" {
		typeName = constants.EdmGeography + string(geo.ShapeOfElement(gml))
	}
	g, err := r.c.Geo.DecodeGML(gml, typeName)
	if err != nil {
		return nil, models.WrapStage(models.StageGeospatial, typeName, err)
	}
	return models.NewGeospatial(g), nil
}

// collection decodes item elements. Untyped complex items inherit the type of
// the first item that declares one.
func (r *reader) collection(e *xmltree.Element, typeName string) (*models.Value, error) {
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	itemType := codec.ItemType(typeName)
	inherited := itemType
	if inherited == "" {
		for _, c := range e.Children {
			if t := elementType(c); t != "" && len(c.Children) > 0 {
				inherited = t
				break
			}
		}
	}
	items := make([]*models.Value, 0, len(e.Children))
	for i, c := range e.Children {
		if c.Name.Local != constants.MetaElement {
			r.warn("skipping non-item element in collection", zap.String("element", c.Name.Local))
			continue
		}
		implied := itemType
		if implied == "" && len(c.Children) > 0 {
			implied = inherited
		}
		v, err := r.value(c, elementType(c), implied)
		if err != nil {
			return nil, models.WrapStage(models.StageValue, "element["+strconv.Itoa(i)+"]", err)
		}
		items = append(items, v)
	}
	if err := codec.CheckHomogeneous(items); err != nil {
		return nil, err
	}
	return models.NewCollection(codec.CollectionType(typeName, items), items...), nil
}

// complex decodes a structured value from its d: children
func (r *reader) complex(e *xmltree.Element, typeName string) (*models.Value, error) {
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	props, err := r.properties(e)
	if err != nil {
		return nil, err
	}
	return &models.Value{Kind: models.ComplexValue, TypeName: typeName, Complex: &models.Complex{Properties: props}}, nil
}
