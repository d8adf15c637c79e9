package atom

import (
	"encoding/xml"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// writer holds the per-call encode state
type writer struct {
	c     *Codec
	depth *codec.Depth
}

func (w *writer) server() bool {
	return w.c.Opts.ServerMode
}

func (w *writer) warn(msg string, fields ...zap.Field) {
	w.c.Logger().Warn(msg, fields...)
}

func link(rel, href string, attrs ...string) *xmltree.Element {
	l := xmltree.New(constants.AtomLink, xmltree.Attr(constants.AtomAttrRel, rel))
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] != "" {
			l.Attr = append(l.Attr, xmltree.Attr(attrs[i], attrs[i+1]))
		}
	}
	if href != "" {
		l.Attr = append(l.Attr, xmltree.Attr(constants.AtomAttrHref, href))
	}
	return l
}

func setAttr(e *xmltree.Element, name, value string) {
	if value != "" {
		e.Attr = append(e.Attr, xmltree.Attr(name, value))
	}
}

// reference renders an entity reference: m:ref in v4, d:uri in v3
func (w *writer) reference(id string) *xmltree.Element {
	if w.c.Version().IsV4() {
		return xmltree.New(mName(constants.MetaRef), xmltree.Attr(constants.MetaAttrID, id))
	}
	return xmltree.New(dName(constants.DataURI)).SetText(id)
}

func isBareReference(e *models.Entity) bool {
	return e.IsReference() && e.ID != "" && e.ETag == "" && e.SelfLink == nil && e.EditLink == nil
}

// entity renders one atom:entry
func (w *writer) entity(e *models.Entity) (*xmltree.Element, error) {
	if e == nil {
		return nil, models.Malformed("nil entity")
	}
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	if isBareReference(e) {
		return w.reference(e.ID), nil
	}
	names := w.c.Atom
	entry := xmltree.New(constants.AtomEntry)
	if w.server() {
		setAttr(entry, mName(constants.MetaAttrETag), e.ETag)
	}
	if e.ID != "" {
		entry.Add(xmltree.New(constants.AtomID).SetText(e.ID))
	}
	if e.TypeName != "" {
		entry.Add(xmltree.New(constants.AtomCategory,
			xmltree.Attr(constants.AtomAttrTerm, names.TypePrefix+e.TypeName),
			xmltree.Attr(constants.AtomAttrScheme, names.SchemeNamespace)))
	}
	if w.server() {
		if e.SelfLink != nil {
			entry.Add(link(constants.AtomRelSelf, e.SelfLink.Href))
		}
		if e.EditLink != nil {
			entry.Add(link(constants.AtomRelEdit, e.EditLink.Href))
		}
		if e.MediaEditURI != "" {
			entry.Add(link(constants.AtomRelEditMedia, e.MediaEditURI, mName(constants.MetaAttrETag), e.MediaETag))
		}
	}
	for _, l := range e.NavigationLinks {
		el, err := w.navigation(l)
		if err != nil {
			return nil, models.WrapStage(models.StageEntity, e.ID, err)
		}
		entry.Add(el)
	}
	if w.server() {
		for _, l := range e.AssociationLinks {
			entry.Add(link(names.RelatedLinksRelPrefix+l.Title, l.Href,
				constants.AtomAttrType, constants.ContentTypeXML,
				constants.AtomAttrTitle, l.Title))
		}
		for _, l := range e.MediaEditLinks {
			entry.Add(link(names.EditMediaRelPrefix+l.Title, l.Href,
				constants.AtomAttrType, l.MediaType,
				constants.AtomAttrTitle, l.Title,
				mName(constants.MetaAttrETag), l.MediaETag))
		}
		entry.Add(operations(e.Operations)...)
	}

	props, err := w.properties(e.Properties)
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	extra, err := w.properties(e.MediaEntryProperties)
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	if e.IsMediaEntity() {
		content := xmltree.New(constants.AtomContent)
		setAttr(content, constants.AtomAttrType, e.MediaContentType)
		setAttr(content, constants.AtomAttrSrc, e.MediaContentSource)
		entry.Add(content)
		// a media entity keeps all of its properties outside <content>
		extra.Add(props.Children...)
	} else {
		entry.Add(xmltree.New(constants.AtomContent, xmltree.Attr(constants.AtomAttrType, constants.ContentTypeXML)).Add(props))
	}
	if len(extra.Children) > 0 {
		entry.Add(extra)
	}

	anns, err := w.annotations("", e.Annotations)
	if err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	entry.Add(anns...)
	for _, p := range append(append([]*models.Property(nil), e.Properties...), e.MediaEntryProperties...) {
		anns, err := w.annotations(p.Name, p.Annotations)
		if err != nil {
			return nil, models.WrapStage(models.StageEntity, e.ID, err)
		}
		entry.Add(anns...)
	}
	return entry, nil
}

func operations(ops []*models.Operation) []*xmltree.Element {
	out := make([]*xmltree.Element, 0, len(ops))
	for _, op := range ops {
		el := xmltree.New(mName(constants.MetaAction), xmltree.Attr(constants.MetaAttrMetadata, op.Metadata))
		setAttr(el, constants.MetaAttrTitle, op.Title)
		setAttr(el, constants.MetaAttrTarget, op.Target)
		out = append(out, el)
	}
	return out
}

// annotations renders m:annotation elements. target names the annotated
// property; v3 has no instance annotations and drops them.
func (w *writer) annotations(target string, anns []*models.Annotation) ([]*xmltree.Element, error) {
	if len(anns) == 0 {
		return nil, nil
	}
	if !w.c.Version().IsV4() {
		w.warn("v3 Atom has no instance annotations; dropping them", zap.String("target", target), zap.Int("annotations", len(anns)))
		return nil, nil
	}
	var out []*xmltree.Element
	for _, a := range anns {
		el, err := w.value(mName(constants.MetaAnnotation), a.Type, a.Value, "")
		if err != nil {
			return nil, models.WrapStage(models.StageProperty, a.Key(), err)
		}
		attrs := []xml.Attr{xmltree.Attr(constants.MetaAttrTerm, a.Key())}
		if target != "" {
			attrs = append(attrs, xmltree.Attr(constants.MetaAttrTarget, target))
		}
		el.Attr = append(attrs, el.Attr...)
		out = append(out, el)
	}
	return out, nil
}

// navigation renders a related link with optional m:inline content
func (w *writer) navigation(l *models.Link) (*xmltree.Element, error) {
	feed := l.Type == models.LinkEntitySetNavigation || l.InlineEntitySet != nil
	mediaType := constants.ContentTypeAtomEntry
	if feed {
		mediaType = constants.ContentTypeAtomFeed
	}
	el := link(w.c.Atom.RelatedRelPrefix+l.Title, l.Href,
		constants.AtomAttrType, mediaType,
		constants.AtomAttrTitle, l.Title)
	switch {
	case l.InlineEntity != nil:
		ent, err := w.entity(l.InlineEntity)
		if err != nil {
			return nil, models.WrapStage(models.StageLink, l.Title, err)
		}
		el.Add(xmltree.New(mName(constants.MetaInline)).Add(ent))
	case l.InlineEntitySet != nil:
		set, err := w.feed(l.InlineEntitySet, false)
		if err != nil {
			return nil, models.WrapStage(models.StageLink, l.Title, err)
		}
		el.Add(xmltree.New(mName(constants.MetaInline)).Add(set))
	}
	return el, nil
}

// feed renders an atom:feed; the count is written when known or when forced.
// markers follow the entries, ahead of the paging links.
func (w *writer) feed(s *models.EntitySet, alwaysCount bool, markers ...*xmltree.Element) (*xmltree.Element, error) {
	el := xmltree.New(constants.AtomFeed)
	if s.ID != "" {
		el.Add(xmltree.New(constants.AtomID).SetText(s.ID))
	}
	if alwaysCount || s.Count != nil {
		el.Add(xmltree.New(mName(constants.MetaCount)).SetText(strconv.FormatInt(s.ResultCount(), 10)))
	}
	if w.server() {
		el.Add(operations(s.Operations)...)
	}
	anns, err := w.annotations("", s.Annotations)
	if err != nil {
		return nil, err
	}
	el.Add(anns...)
	for i, e := range s.Entities {
		entry, err := w.entity(e)
		if err != nil {
			return nil, models.WrapStage(models.StageEntitySet, "entry["+strconv.Itoa(i)+"]", err)
		}
		el.Add(entry)
	}
	el.Add(markers...)
	w.feedLinks(el, s)
	return el, nil
}

// feedLinks appends the paging and delta links
func (w *writer) feedLinks(el *xmltree.Element, s *models.EntitySet) {
	if s.Next != "" {
		el.Add(link(constants.AtomRelNext, s.Next))
	}
	if s.DeltaLink == "" {
		return
	}
	if rel := w.c.Atom.DeltaRel; rel != "" {
		el.Add(link(rel, s.DeltaLink))
		return
	}
	w.warn("v3 feeds have no delta link; dropping it", zap.String("delta_link", s.DeltaLink))
}

// root declares namespaces, the base URI and, in v4, the context URL on a document element
func (w *writer) root(el *xmltree.Element, base, context string) *xmltree.Element {
	w.c.declare(el, el.Name.Local == constants.AtomEntry || el.Name.Local == constants.AtomFeed)
	setAttr(el, "xml:"+constants.AtomAttrBase, base)
	if w.c.Version().IsV4() {
		setAttr(el, mName(constants.MetaAttrContext), context)
	}
	return el
}

// properties renders an m:properties element
func (w *writer) properties(props []*models.Property) (*xmltree.Element, error) {
	el := xmltree.New(mName(constants.MetaProperties))
	for _, p := range props {
		child, err := w.property(p, false)
		if err != nil {
			return nil, err
		}
		el.Add(child)
	}
	return el, nil
}

// property renders a d:Name element. Unsupported geometry becomes null unless
// the property is the whole payload.
func (w *writer) property(p *models.Property, top bool) (*xmltree.Element, error) {
	el, err := w.value(dName(p.Name), p.Type, p.Value, "")
	if err == nil {
		return el, nil
	}
	if top || !errors.Is(err, models.ErrUnsupportedGeometry) {
		return nil, models.WrapStage(models.StageProperty, p.Name, err)
	}
	w.warn("writing unsupported geometry as null", zap.String("property", p.Name), zap.Error(err))
	return w.value(dName(p.Name), p.Type, models.NewNull(), "")
}

// typed sets m:type unless a reader would arrive at the same type without it
func (w *writer) typed(el *xmltree.Element, target, implied string) {
	if target != "" && target != implied {
		el.Attr = append(el.Attr, xmltree.Attr(mName(constants.MetaAttrType), w.c.typeAttr(target)))
	}
}

// value renders v as an element called name. implied is the type a reader
// would assume for the element, such as the item type of its collection.
func (w *writer) value(name, declared string, v *models.Value, implied string) (*xmltree.Element, error) {
	el := xmltree.New(name)
	target := declared
	if target == "" && v != nil {
		target = v.TypeName
	}
	if v.IsNull() {
		w.typed(el, target, implied)
		el.Attr = append(el.Attr, xmltree.Attr(mName(constants.MetaAttrNull), "true"))
		return el, nil
	}
	switch v.Kind {
	case models.PrimitiveValue, models.EnumValue:
		text, kind, err := w.c.FormatScalar(v)
		if err != nil {
			return nil, err
		}
		if target == "" {
			target = kind.TypeName()
		}
		if implied == "" {
			implied = constants.EdmString
		}
		w.typed(el, target, implied)
		return el.SetText(text), nil
	case models.ComplexValue:
		w.typed(el, target, implied)
		return w.complex(el, v)
	case models.CollectionValue:
		return w.collection(el, target, v, implied)
	case models.GeospatialValue:
		g, err := w.c.Geo.EncodeGML(v.Geo, false)
		if err != nil {
			return nil, models.WrapStage(models.StageGeospatial, v.TypeName, err)
		}
		w.typed(el, target, implied)
		return el.Add(g), nil
	}
	return nil, models.NewMalformedValue(v.String(), v.TypeName, errors.New("unknown value kind"))
}

func (w *writer) complex(el *xmltree.Element, v *models.Value) (*xmltree.Element, error) {
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	if v.Complex == nil {
		return el, nil
	}
	if v.Complex.IsLinked() {
		w.warn("Atom complex values carry no links; dropping them", zap.String("type", v.TypeName))
	}
	for _, p := range v.Complex.Properties {
		if len(p.Annotations) > 0 {
			w.warn("dropping annotations of a nested property", zap.String("property", p.Name))
		}
		child, err := w.property(p, false)
		if err != nil {
			return nil, err
		}
		el.Add(child)
	}
	return el, nil
}

// collection renders item elements; an untyped empty collection is written as
// a collection of strings so that it reads back as a collection
func (w *writer) collection(el *xmltree.Element, target string, v *models.Value, implied string) (*xmltree.Element, error) {
	if err := codec.CheckHomogeneous(v.Collection); err != nil {
		return nil, err
	}
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	target = codec.CollectionType(target, v.Collection)
	if target == "" && len(v.Collection) == 0 {
		target = constants.CollectionOf(constants.EdmString)
	}
	w.typed(el, target, implied)

	itemName := mName(constants.MetaElement)
	if !w.c.Version().IsV4() {
		itemName = dName(constants.MetaElement)
	}
	itemType := codec.ItemType(target)
	for _, item := range v.Collection {
		child, err := w.value(itemName, "", item, itemType)
		if err != nil {
			return nil, err
		}
		el.Add(child)
	}
	return el, nil
}
