package jsonfmt

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// reader holds the per-call decode state
type reader struct {
	c     *Codec
	depth *codec.Depth
}

func (r *reader) names() *constants.JSONNameSet {
	return r.c.Names
}

func (r *reader) warn(msg string, fields ...zap.Field) {
	r.c.Logger().Warn(msg, fields...)
}

// entity decodes one entity object. A reference-only object yields an entity
// holding just its ID.
func (r *reader) entity(n *jsontree.Node, ctx *models.ContextURL) (*models.Entity, error) {
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	if n.Kind != jsontree.Object {
		return nil, models.Malformed("entity must be a JSON object, found %s", n.Kind)
	}
	names := r.names()
	p := r.c.split(n)

	e := &models.Entity{
		Context: p.str(names.Context),
		ID:      p.str(names.ID),
		ETag:    p.str(names.ETag),
	}
	if ctx == nil && e.Context != "" {
		ctx = r.c.parseContext(e.Context)
	}
	if ctx != nil {
		e.BaseURI = ctx.ServiceRoot
	}
	if ref, ok := r.reference(p); ok {
		e.ID = ref
		return e, nil
	}

	e.TypeName = codec.NormalizeTypeName(p.str(names.Type))
	if e.TypeName == "" {
		e.TypeName = codec.EntityTypeFromContext(ctx)
	}
	if href := p.str(names.ReadLink); href != "" {
		e.SelfLink = &models.Link{Type: models.LinkSelf, Href: href}
	}
	if href := p.str(names.EditLink); href != "" {
		e.EditLink = &models.Link{Type: models.LinkEdit, Href: href}
	}
	r.media(e, p)
	for name := range p.reserved {
		if !knownEntityField(names, name) {
			r.warn("skipping unknown control field", zap.String("field", name))
		}
	}

	var err error
	if e.Operations, err = r.operations(p.operations); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	if e.Annotations, err = r.annotations(p.annotations); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	links, err := r.links(p.propAnn)
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	e.AssociationLinks = links.association
	e.MediaEditLinks = links.media

	for _, f := range p.props {
		handled, err := r.inline(links, f)
		if err != nil {
			return nil, models.WrapStage(models.StageEntity, e.ID, err)
		}
		if handled {
			continue
		}
		prop, err := r.property(f.Name, f.Value, links.types[f.Name], false)
		if err != nil {
			return nil, models.WrapStage(models.StageEntity, e.ID, err)
		}
		prop.Annotations = links.annotations[f.Name]
		if e.IsMediaEntity() {
			e.MediaEntryProperties = append(e.MediaEntryProperties, prop)
		} else {
			e.Properties = append(e.Properties, prop)
		}
	}
	e.NavigationLinks = links.navigation()

	if e.IsReference() && e.ID == "" && e.ETag == "" && e.SelfLink == nil && e.EditLink == nil {
		return nil, models.WrapStage(models.StageEntity, "", models.ErrUnresolvedReference)
	}
	return e, nil
}

// reference reports whether the object is an entity reference and returns its ID
func (r *reader) reference(p *parts) (string, bool) {
	names := r.names()
	if names.ReferenceID == names.ID {
		if p.has(names.ID) && p.onlyReserved(names.Context, names.ID) {
			return p.str(names.ID), true
		}
		return "", false
	}
	if len(p.props) != 1 || p.props[0].Name != names.ReferenceID || p.props[0].Value.Kind != jsontree.String {
		return "", false
	}
	if len(p.propAnn) > 0 || len(p.operations) > 0 || len(p.annotations) > 0 {
		return "", false
	}
	for name := range p.reserved {
		if name != names.Context {
			return "", false
		}
	}
	return p.props[0].Value.Text, true
}

// media applies the media-resource control fields. An entity is a media entity
// only when both the read link and the content type are present.
func (r *reader) media(e *models.Entity, p *parts) {
	names := r.names()
	src, ct := p.str(names.MediaReadLink), p.str(names.MediaContentType)
	switch {
	case src != "" && ct != "":
		e.MediaContentSource, e.MediaContentType = src, ct
	case src != "" || ct != "":
		r.warn("ignoring partial media entity fields",
			zap.String("read_link", src), zap.String("content_type", ct))
	}
	e.MediaEditURI = p.str(names.MediaEditLink)
	e.MediaETag = p.str(names.MediaETag)
}

func knownEntityField(names *constants.JSONNameSet, name string) bool {
	for _, known := range []string{
		names.Context, names.MetadataETag, names.Type, names.ID, names.ETag,
		names.ReadLink, names.EditLink, names.MediaReadLink, names.MediaEditLink,
		names.MediaContentType, names.MediaETag,
	} {
		if known != "" && name == known {
			return true
		}
	}
	return false
}

// operations decodes advertised actions and functions; overloads arrive as arrays
func (r *reader) operations(fields []jsontree.Field) ([]*models.Operation, error) {
	var ops []*models.Operation
	for _, f := range fields {
		items := []*jsontree.Node{f.Value}
		if f.Value.Kind == jsontree.Array {
			items = f.Value.Items
		}
		for _, item := range items {
			if item.Kind != jsontree.Object {
				return nil, models.Malformed("operation %q must be an object", f.Name)
			}
			ops = append(ops, &models.Operation{
				Metadata: f.Name,
				Title:    item.StringOf(constants.OperationTitle),
				Target:   item.StringOf(constants.OperationTarget),
			})
		}
	}
	return ops, nil
}

// annotations decodes "@Term#Qualifier" members, using "@Term@odata.type" as a type hint
func (r *reader) annotations(fields []jsontree.Field) ([]*models.Annotation, error) {
	typeSuffix := r.names().TypeSuffix
	types := make(map[string]string)
	for _, f := range fields {
		if strings.HasSuffix(f.Name, typeSuffix) && f.Value.Kind == jsontree.String {
			types[strings.TrimSuffix(f.Name, typeSuffix)] = codec.NormalizeTypeName(f.Value.Text)
		}
	}
	var out []*models.Annotation
	for _, f := range fields {
		if strings.HasSuffix(f.Name, typeSuffix) {
			continue
		}
		ann, err := r.annotation(f.Name, f.Value, types[f.Name])
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, nil
}

func (r *reader) annotation(key string, n *jsontree.Node, typeName string) (*models.Annotation, error) {
	term, qualifier := splitTerm(key)
	v, err := r.value(n, typeName)
	if err != nil {
		return nil, models.WrapStage(models.StageProperty, key, err)
	}
	return &models.Annotation{Term: term, Qualifier: qualifier, Type: typeName, Value: v}, nil
}

// property decodes a named value. Unsupported geometry inside a larger payload
// degrades to null; a top-level property reports it.
func (r *reader) property(name string, n *jsontree.Node, typeName string, top bool) (*models.Property, error) {
	v, err := r.value(n, typeName)
	if err != nil {
		if top || !errors.Is(err, models.ErrUnsupportedGeometry) {
			return nil, models.WrapStage(models.StageProperty, name, err)
		}
		r.warn("replacing unsupported geometry with null", zap.String("property", name), zap.Error(err))
		v = &models.Value{Kind: models.NullValue, TypeName: typeName}
	}
	return &models.Property{Name: name, Type: typeName, Value: v}, nil
}

// value decodes a JSON node under an optional declared type. An explicit null
// wins over everything else.
func (r *reader) value(n *jsontree.Node, typeName string) (*models.Value, error) {
	kind := codec.Classify(r.c.Opts.Resolver, typeName)
	if n.IsNull() {
		return &models.Value{Kind: models.NullValue, TypeName: typeName}, nil
	}
	switch {
	case kind == codec.TypeCollection || (kind == codec.TypeUnknown && n.Kind == jsontree.Array):
		return r.collection(n, typeName)
	case n.Kind == jsontree.Array:
		return nil, models.NewMalformedValue("[...]", typeName, errors.New("array for a non-collection type"))
	case kind == codec.TypeGeospatial:
		return r.geospatial(n, typeName)
	case n.Kind == jsontree.Object:
		if kind == codec.TypePrimitive || kind == codec.TypeEnum {
			return nil, models.NewMalformedValue("{...}", typeName, errors.New("object for a scalar type"))
		}
		return r.complex(n, typeName)
	}
	if kind != codec.TypeUnknown {
		return r.c.ParseScalar(typeName, n.Scalar())
	}
	switch n.Kind {
	case jsontree.Number:
		return codec.InferNumber(n.Text)
	case jsontree.True, jsontree.False:
		return models.NewPrimitive(constants.EdmBoolean, n.Kind == jsontree.True), nil
	default:
		if t := r.c.LegacyDateType(n.Text); t != "" {
			return r.c.ParseScalar(t, n.Text)
		}
		return models.NewPrimitive(constants.EdmString, n.Text), nil
	}
}

func (r *reader) geospatial(n *jsontree.Node, typeName string) (*models.Value, error) {
	g, err := r.c.Geo.DecodeJSON(n, typeName)
	if err != nil {
		return nil, models.WrapStage(models.StageGeospatial, typeName, err)
	}
	return models.NewGeospatial(g), nil
}

// collection decodes an array. Untyped object items inherit the type of the
// first item that carries one.
func (r *reader) collection(n *jsontree.Node, typeName string) (*models.Value, error) {
	if n.Kind != jsontree.Array {
		return nil, models.NewMalformedValue(n.Scalar(), typeName, errors.New("collection type requires an array"))
	}
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	typeField := r.names().Type
	itemType := codec.ItemType(typeName)
	inherited := ""
	if itemType == "" {
		for _, item := range n.Items {
			if item.Kind == jsontree.Object && item.StringOf(typeField) != "" {
				inherited = codec.NormalizeTypeName(item.StringOf(typeField))
				break
			}
		}
	}
	items := make([]*models.Value, 0, len(n.Items))
	for _, item := range n.Items {
		t := itemType
		if t == "" && item.Kind == jsontree.Object && !item.Has(typeField) {
			t = inherited
		}
		v, err := r.value(item, t)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := codec.CheckHomogeneous(items); err != nil {
		return nil, err
	}
	return models.NewCollection(codec.CollectionType(typeName, items), items...), nil
}

// complex decodes a structured value; its own type annotation wins over the declared type
func (r *reader) complex(n *jsontree.Node, typeName string) (*models.Value, error) {
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	names := r.names()
	p := r.c.split(n)
	if own := p.str(names.Type); own != "" {
		typeName = codec.NormalizeTypeName(own)
		if codec.Classify(r.c.Opts.Resolver, typeName) == codec.TypeGeospatial {
			return r.geospatial(n, typeName)
		}
	}
	for name := range p.reserved {
		if name != names.Type {
			r.warn("skipping control field in complex value", zap.String("field", name))
		}
	}
	if len(p.operations) > 0 || len(p.annotations) > 0 {
		r.warn("skipping annotations and operations in complex value", zap.String("type", typeName))
	}

	links, err := r.links(p.propAnn)
	if err != nil {
		return nil, err
	}
	if len(links.media) > 0 {
		r.warn("skipping stream links in complex value", zap.String("type", typeName))
	}
	c := &models.Complex{}
	for _, f := range p.props {
		handled, err := r.inline(links, f)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		prop, err := r.property(f.Name, f.Value, links.types[f.Name], false)
		if err != nil {
			return nil, err
		}
		prop.Annotations = links.annotations[f.Name]
		c.Properties = append(c.Properties, prop)
	}
	c.NavigationLinks = links.navigation()
	c.AssociationLinks = links.association
	return &models.Value{Kind: models.ComplexValue, TypeName: typeName, Complex: c}, nil
}

// linkSet collects the property-scoped annotations of one object level
type linkSet struct {
	order       []string
	nav         map[string][]*models.Link
	association []*models.Link
	media       []*models.Link
	mediaByName map[string]*models.Link
	types       map[string]string
	annotations map[string][]*models.Annotation
	count       map[string]*int64
	next        map[string]string
}

func (ls *linkSet) add(l *models.Link) {
	if _, ok := ls.nav[l.Title]; !ok {
		ls.order = append(ls.order, l.Title)
	}
	ls.nav[l.Title] = append(ls.nav[l.Title], l)
}

// navLink returns the first navigation link with the title, creating a to-one link
func (ls *linkSet) navLink(title string) *models.Link {
	if links := ls.nav[title]; len(links) > 0 {
		return links[0]
	}
	l := &models.Link{Title: title, Type: models.LinkEntityNavigation}
	ls.add(l)
	return l
}

func (ls *linkSet) mediaLink(title string) *models.Link {
	if l, ok := ls.mediaByName[title]; ok {
		return l
	}
	l := &models.Link{Title: title, Type: models.LinkMediaEdit}
	ls.mediaByName[title] = l
	ls.media = append(ls.media, l)
	return l
}

func (ls *linkSet) navigation() []*models.Link {
	var out []*models.Link
	for _, title := range ls.order {
		out = append(out, ls.nav[title]...)
	}
	return out
}

func (r *reader) links(anns []propAnnotation) (*linkSet, error) {
	names := r.names()
	ls := &linkSet{
		nav:         make(map[string][]*models.Link),
		mediaByName: make(map[string]*models.Link),
		types:       make(map[string]string),
		annotations: make(map[string][]*models.Annotation),
		count:       make(map[string]*int64),
		next:        make(map[string]string),
	}
	annTypes := make(map[string]string)
	for _, a := range anns {
		if a.suffix != names.TypeSuffix && strings.HasSuffix(a.suffix, names.TypeSuffix) {
			annTypes[a.base+strings.TrimSuffix(a.suffix, names.TypeSuffix)] = codec.NormalizeTypeName(a.value.Scalar())
		}
	}

	for _, a := range anns {
		text := ""
		if a.value.IsScalar() {
			text = a.value.Scalar()
		}
		switch a.suffix {
		case names.TypeSuffix:
			ls.types[a.base] = codec.NormalizeTypeName(text)
		case names.NavigationLinkSuffix:
			ls.navLink(a.base).Href = text
		case names.AssociationLinkSuffix:
			ls.association = append(ls.association, &models.Link{Title: a.base, Type: models.LinkAssociation, Href: text})
		case names.BindSuffix:
			if err := r.bind(ls, a); err != nil {
				return nil, err
			}
		case names.MediaEditLinkSuffix:
			ls.mediaLink(a.base).Href = text
		case names.MediaReadLinkSuffix:
			if l := ls.mediaLink(a.base); l.Href == "" {
				l.Href = text
			}
		case names.MediaContentTypeSuffix:
			ls.mediaLink(a.base).MediaType = text
		case names.MediaETagSuffix:
			ls.mediaLink(a.base).MediaETag = text
		case names.CountSuffix:
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, models.WrapStage(models.StageLink, a.base, models.NewMalformedValue(text, constants.EdmInt64, err))
			}
			ls.count[a.base] = &n
		case names.NextLinkSuffix:
			ls.next[a.base] = text
		default:
			if strings.HasSuffix(a.suffix, names.TypeSuffix) {
				continue
			}
			if strings.HasPrefix(a.suffix, "@odata.") {
				r.warn("skipping unknown property control field", zap.String("field", a.base+a.suffix))
				continue
			}
			ann, err := r.annotation(a.suffix, a.value, annTypes[a.base+a.suffix])
			if err != nil {
				return nil, models.WrapStage(models.StageProperty, a.base, err)
			}
			ls.annotations[a.base] = append(ls.annotations[a.base], ann)
		}
	}
	return ls, nil
}

// bind reads client-side binding fields: a string binds one entity, an array binds several
func (r *reader) bind(ls *linkSet, a propAnnotation) error {
	switch a.value.Kind {
	case jsontree.String:
		ls.add(&models.Link{Title: a.base, Type: models.LinkEntityNavigation, Href: a.value.Text})
	case jsontree.Array:
		for _, item := range a.value.Items {
			if item.Kind != jsontree.String {
				return models.WrapStage(models.StageLink, a.base, models.Malformed("binding targets must be strings"))
			}
			ls.add(&models.Link{Title: a.base, Type: models.LinkEntitySetNavigation, Href: item.Text})
		}
	default:
		return models.WrapStage(models.StageLink, a.base, models.Malformed("binding must be a string or an array"))
	}
	return nil
}

// inline turns a member that matches a navigation link, or carries inline count
// or next-link fields, into expanded content of that link
func (r *reader) inline(ls *linkSet, f jsontree.Field) (bool, error) {
	links := ls.nav[f.Name]
	count, hasCount := ls.count[f.Name]
	next, hasNext := ls.next[f.Name]
	if len(links) == 0 && !hasCount && !hasNext {
		return false, nil
	}
	switch f.Value.Kind {
	case jsontree.Object, jsontree.Array, jsontree.Null:
	default:
		return false, nil
	}

	var link *models.Link
	if len(links) > 0 {
		link = links[0]
	} else {
		link = &models.Link{Title: f.Name}
		ls.add(link)
	}
	switch f.Value.Kind {
	case jsontree.Object:
		ent, err := r.entity(f.Value, nil)
		if err != nil {
			return false, models.WrapStage(models.StageLink, f.Name, err)
		}
		link.Type = models.LinkEntityNavigation
		link.InlineEntity = ent
	case jsontree.Array:
		set, err := r.entities(f.Value.Items, nil)
		if err != nil {
			return false, models.WrapStage(models.StageLink, f.Name, err)
		}
		set.Count, set.Next = count, next
		link.Type = models.LinkEntitySetNavigation
		link.InlineEntitySet = set
	default:
		if link.Type == 0 {
			link.Type = models.LinkEntityNavigation
		}
	}
	return true, nil
}

// entities decodes the members of a "value" array
func (r *reader) entities(items []*jsontree.Node, ctx *models.ContextURL) (*models.EntitySet, error) {
	set := &models.EntitySet{Entities: make([]*models.Entity, 0, len(items))}
	for i, item := range items {
		e, err := r.entity(item, ctx)
		if err != nil {
			return nil, models.WrapStage(models.StageEntitySet, "value["+strconv.Itoa(i)+"]", err)
		}
		set.Entities = append(set.Entities, e)
	}
	return set, nil
}
