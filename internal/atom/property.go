package atom

import (
	"io"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

// EncodeProperty writes a top-level property payload: <m:value> in v4, the
// property's own d: element in v3. Annotations follow the value as m:annotation children.
func (c *Codec) EncodeProperty(w io.Writer, p *models.Property) error {
	if p == nil {
		return atStage(models.StageProperty, models.Malformed("nil property"))
	}
	name := mName(constants.MetaValue)
	if !c.Version().IsV4() {
		local := p.Name
		if local == "" {
			local = constants.MetaValue
		}
		name = dName(local)
	}
	wr := c.newWriter()
	el, err := wr.value(name, p.Type, p.Value, "")
	if err != nil {
		return atStage(models.StageProperty, models.WrapStage(models.StageProperty, p.Name, err))
	}
	anns, err := wr.annotations("", p.Annotations)
	if err != nil {
		return atStage(models.StageProperty, err)
	}
	el.Add(anns...)
	return c.write(w, wr.root(el, "", p.Context))
}

// DecodeProperty reads a top-level property payload. An m:value root is named
// after the last context path segment.
func (c *Codec) DecodeProperty(r io.Reader) (*models.Property, error) {
	st, start, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	if !isDataSpace(start.Name.Space) && !isMeta(head(start), constants.MetaValue) {
		return nil, atStage(models.StageProperty,
			models.Malformed("%s: <%s> is not a property", constants.ErrUnexpectedElement, start.Name.Local))
	}
	// the document is the property, so it is buffered whole
	root, err := st.tree(start)
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	rd := c.newReader(st)
	raw := metaAttr(root, constants.MetaAttrContext)
	ctx := c.parseContext(raw)

	name := root.Name.Local
	if isMeta(root, constants.MetaValue) {
		name = codec.PropertyName(ctx)
	}
	typeName := elementType(root)
	if typeName == "" {
		typeName = codec.PropertyType(ctx)
	}

	var anns []*models.Annotation
	body := *root
	body.Children = nil
	for _, child := range root.Children {
		if !isMeta(child, constants.MetaAnnotation) {
			body.Children = append(body.Children, child)
			continue
		}
		ann, err := rd.annotation(child)
		if err != nil {
			return nil, atStage(models.StageProperty, err)
		}
		anns = append(anns, ann)
	}

	v, err := rd.value(&body, typeName, "")
	if err != nil {
		return nil, atStage(models.StageProperty, models.WrapStage(models.StageProperty, name, err))
	}
	return &models.Property{Name: name, Type: typeName, Value: v, Annotations: anns, Context: raw}, nil
}
