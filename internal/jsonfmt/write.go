package jsonfmt

import (
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/edm"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/utils"
)

// writer holds the per-call encode state
type writer struct {
	c     *Codec
	depth *codec.Depth
}

func (w *writer) names() *constants.JSONNameSet {
	return w.c.Names
}

func (w *writer) server() bool {
	return w.c.Opts.ServerMode
}

func (w *writer) wireType(name string) string {
	return codec.WireTypeName(name, w.c.Version())
}

// entity renders one entity. Context is written only for the outermost entity.
func (w *writer) entity(e *models.Entity, top bool) (*jsontree.Node, error) {
	if e == nil {
		return nil, models.Malformed("nil entity")
	}
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	names := w.names()
	obj := jsontree.NewObject()
	if top {
		obj.SetString(names.Context, e.Context)
	}
	if e.IsReference() && e.ID != "" && e.ETag == "" && e.SelfLink == nil && e.EditLink == nil {
		return obj.SetString(names.ReferenceID, e.ID), nil
	}

	obj.SetString(names.Type, w.wireType(e.TypeName))
	obj.SetString(names.ID, e.ID)
	if w.server() {
		obj.SetString(names.ETag, e.ETag)
		if e.SelfLink != nil {
			obj.SetString(names.ReadLink, e.SelfLink.Href)
		}
		if e.EditLink != nil {
			obj.SetString(names.EditLink, e.EditLink.Href)
		}
		if e.IsMediaEntity() {
			obj.SetString(names.MediaReadLink, e.MediaContentSource)
			obj.SetString(names.MediaContentType, e.MediaContentType)
		}
		obj.SetString(names.MediaEditLink, e.MediaEditURI)
		obj.SetString(names.MediaETag, e.MediaETag)
	}
	if err := w.annotations(obj, "", e.Annotations); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	if w.server() {
		w.operations(obj, e.Operations)
	}
	if err := w.properties(obj, e.MediaEntryProperties); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	if err := w.properties(obj, e.Properties); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	if w.server() {
		w.associationLinks(obj, e.AssociationLinks)
		w.mediaLinks(obj, e.MediaEditLinks)
	}
	if err := w.navigation(obj, e.NavigationLinks); err != nil {
		return nil, models.WrapStage(models.StageEntity, e.ID, err)
	}
	return obj, nil
}

// operations writes one member per metadata anchor; overloads become an array
func (w *writer) operations(obj *jsontree.Node, ops []*models.Operation) {
	var order []string
	groups := make(map[string][]*jsontree.Node)
	for _, op := range ops {
		n := jsontree.NewObject().
			SetString(constants.OperationTitle, op.Title).
			SetString(constants.OperationTarget, op.Target)
		if _, ok := groups[op.Metadata]; !ok {
			order = append(order, op.Metadata)
		}
		groups[op.Metadata] = append(groups[op.Metadata], n)
	}
	for _, anchor := range order {
		if items := groups[anchor]; len(items) == 1 {
			obj.Set(anchor, items[0])
		} else {
			obj.Set(anchor, jsontree.NewArray(items...))
		}
	}
}

// annotations writes "<prefix>@Term#Qualifier" members
func (w *writer) annotations(obj *jsontree.Node, prefix string, anns []*models.Annotation) error {
	for _, a := range anns {
		key := prefix + "@" + a.Key()
		n, err := w.value(a.Value)
		if err != nil {
			return models.WrapStage(models.StageProperty, key, err)
		}
		if t := w.typeAnnotation(a.Type, a.Value, n); t != "" {
			obj.SetString(key+w.names().TypeSuffix, t)
		}
		obj.Set(key, n)
	}
	return nil
}

func (w *writer) properties(obj *jsontree.Node, props []*models.Property) error {
	for _, p := range props {
		n, err := w.property(p, false)
		if err != nil {
			return err
		}
		if t := w.typeAnnotation(p.Type, p.Value, n); t != "" {
			obj.SetString(p.Name+w.names().TypeSuffix, t)
		}
		if err := w.annotations(obj, p.Name, p.Annotations); err != nil {
			return err
		}
		obj.Set(p.Name, n)
	}
	return nil
}

// property renders a property value. Unsupported geometry becomes null unless
// the property is the whole payload.
func (w *writer) property(p *models.Property, top bool) (*jsontree.Node, error) {
	n, err := w.value(p.Value)
	if err == nil {
		return n, nil
	}
	if top || !errors.Is(err, models.ErrUnsupportedGeometry) {
		return nil, models.WrapStage(models.StageProperty, p.Name, err)
	}
	w.c.Logger().Warn("writing unsupported geometry as null", zap.String("property", p.Name), zap.Error(err))
	return jsontree.NewNull(), nil
}

// typeAnnotation returns the wire type to annotate a value with, or "" when a
// reader would infer the same type from the JSON alone
func (w *writer) typeAnnotation(declared string, v *models.Value, n *jsontree.Node) string {
	target := declared
	if target == "" && v != nil {
		target = v.TypeName
	}
	if target == "" || target == w.infer(n) {
		return ""
	}
	return w.wireType(target)
}

// infer mirrors the reader's type inference for an unannotated node
func (w *writer) infer(n *jsontree.Node) string {
	switch n.Kind {
	case jsontree.String:
		if t := w.c.LegacyDateType(n.Text); t != "" {
			return t
		}
		return constants.EdmString
	case jsontree.True, jsontree.False:
		return constants.EdmBoolean
	case jsontree.Number:
		v, err := codec.InferNumber(n.Text)
		if err != nil {
			return ""
		}
		return v.TypeName
	case jsontree.Object:
		return codec.NormalizeTypeName(n.StringOf(w.names().Type))
	case jsontree.Array:
		for _, item := range n.Items {
			if item.IsNull() {
				continue
			}
			if t := w.infer(item); t != "" {
				return constants.CollectionOf(t)
			}
			return ""
		}
	}
	return ""
}

func (w *writer) value(v *models.Value) (*jsontree.Node, error) {
	if v.IsNull() {
		return jsontree.NewNull(), nil
	}
	switch v.Kind {
	case models.PrimitiveValue, models.EnumValue:
		text, kind, err := w.c.FormatScalar(v)
		if err != nil {
			return nil, err
		}
		if legacy, ok := w.c.FormatLegacyDate(v, kind); ok {
			return jsontree.NewString(legacy), nil
		}
		if v.Kind == models.PrimitiveValue {
			switch {
			case kind == edm.KindBoolean:
				return jsontree.NewBool(text == "true"), nil
			case kind.IsNumeric() && !utils.IsSpecialFloat(text):
				return jsontree.NewNumber(text), nil
			}
		}
		return jsontree.NewString(text), nil
	case models.ComplexValue:
		return w.complex(v)
	case models.CollectionValue:
		return w.collection(v)
	case models.GeospatialValue:
		n, err := w.c.Geo.EncodeJSON(v.Geo)
		if err != nil {
			return nil, models.WrapStage(models.StageGeospatial, v.TypeName, err)
		}
		return n, nil
	}
	return nil, models.NewMalformedValue(v.String(), v.TypeName, errors.New("unknown value kind"))
}

func (w *writer) collection(v *models.Value) (*jsontree.Node, error) {
	if err := codec.CheckHomogeneous(v.Collection); err != nil {
		return nil, err
	}
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	arr := jsontree.NewArray()
	for _, item := range v.Collection {
		n, err := w.value(item)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, n)
	}
	return arr, nil
}

func (w *writer) complex(v *models.Value) (*jsontree.Node, error) {
	if err := w.depth.Enter(); err != nil {
		return nil, err
	}
	defer w.depth.Leave()

	obj := jsontree.NewObject()
	obj.SetString(w.names().Type, w.wireType(v.TypeName))
	if v.Complex == nil {
		return obj, nil
	}
	if err := w.properties(obj, v.Complex.Properties); err != nil {
		return nil, err
	}
	if w.server() {
		w.associationLinks(obj, v.Complex.AssociationLinks)
	}
	if err := w.navigation(obj, v.Complex.NavigationLinks); err != nil {
		return nil, err
	}
	return obj, nil
}

func (w *writer) associationLinks(obj *jsontree.Node, links []*models.Link) {
	for _, l := range links {
		obj.SetString(l.Title+w.names().AssociationLinkSuffix, l.Href)
	}
}

func (w *writer) mediaLinks(obj *jsontree.Node, links []*models.Link) {
	names := w.names()
	for _, l := range links {
		obj.SetString(l.Title+names.MediaEditLinkSuffix, l.Href)
		obj.SetString(l.Title+names.MediaContentTypeSuffix, l.MediaType)
		obj.SetString(l.Title+names.MediaETagSuffix, l.MediaETag)
	}
}

// navigation writes links grouped by title. Servers advertise link URLs; clients
// write bindings, with several targets of one title grouped into an array.
func (w *writer) navigation(obj *jsontree.Node, links []*models.Link) error {
	var order []string
	groups := make(map[string][]*models.Link)
	for _, l := range links {
		if _, ok := groups[l.Title]; !ok {
			order = append(order, l.Title)
		}
		groups[l.Title] = append(groups[l.Title], l)
	}
	names := w.names()
	for _, title := range order {
		group := groups[title]
		var hrefs []string
		toMany := false
		for _, l := range group {
			if l.Href != "" && (w.server() || !l.HasInline()) {
				hrefs = append(hrefs, l.Href)
			}
			toMany = toMany || l.Type == models.LinkEntitySetNavigation
		}
		switch {
		case len(hrefs) == 0:
		case w.server():
			obj.SetString(title+names.NavigationLinkSuffix, hrefs[0])
		case toMany || len(hrefs) > 1:
			arr := jsontree.NewArray()
			for _, h := range hrefs {
				arr.Items = append(arr.Items, jsontree.NewString(h))
			}
			obj.Set(title+names.BindSuffix, arr)
		default:
			obj.SetString(title+names.BindSuffix, hrefs[0])
		}
		for _, l := range group {
			if err := w.inline(obj, l); err != nil {
				return models.WrapStage(models.StageLink, title, err)
			}
		}
	}
	return nil
}

func (w *writer) inline(obj *jsontree.Node, l *models.Link) error {
	names := w.names()
	switch {
	case l.InlineEntity != nil:
		n, err := w.entity(l.InlineEntity, false)
		if err != nil {
			return err
		}
		obj.Set(l.Title, n)
	case l.InlineEntitySet != nil:
		set := l.InlineEntitySet
		if set.Count != nil {
			obj.Set(l.Title+names.CountSuffix, jsontree.NewNumber(strconv.FormatInt(*set.Count, 10)))
		}
		arr, err := w.entityArray(set.Entities)
		if err != nil {
			return err
		}
		obj.Set(l.Title, arr)
		obj.SetString(l.Title+names.NextLinkSuffix, set.Next)
	}
	return nil
}

func (w *writer) entityArray(entities []*models.Entity) (*jsontree.Node, error) {
	arr := jsontree.NewArray()
	for i, e := range entities {
		n, err := w.entity(e, false)
		if err != nil {
			return nil, models.WrapStage(models.StageEntitySet, "value["+strconv.Itoa(i)+"]", err)
		}
		arr.Items = append(arr.Items, n)
	}
	return arr, nil
}

// count renders a result count; v3 writes it as a string
func (w *writer) count(n int64) *jsontree.Node {
	text := strconv.FormatInt(n, 10)
	if w.c.Version().IsV4() {
		return jsontree.NewNumber(text)
	}
	return jsontree.NewString(text)
}
