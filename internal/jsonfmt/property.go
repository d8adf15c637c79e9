package jsonfmt

import (
	"io"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// EncodeProperty writes a top-level property payload. Scalars, collections and
// geospatial values go under "value"; complex members are written inline.
func (c *Codec) EncodeProperty(w io.Writer, p *models.Property) error {
	if p == nil {
		return atStage(models.StageProperty, models.Malformed("nil property"))
	}
	names := c.Names
	wr := c.newWriter()
	n, err := wr.property(p, true)
	if err != nil {
		return atStage(models.StageProperty, err)
	}

	obj := jsontree.NewObject()
	obj.SetString(names.Context, p.Context)
	if n.Kind != jsontree.Object || p.Value.Kind != models.ComplexValue {
		obj.SetString(names.Type, wr.typeAnnotation(p.Type, p.Value, n))
	}
	if err := wr.annotations(obj, "", p.Annotations); err != nil {
		return atStage(models.StageProperty, err)
	}
	switch {
	case n.IsNull():
		obj.Set(names.Null, jsontree.NewBool(true))
	case p.Value.Kind == models.ComplexValue:
		if n.StringOf(names.Type) == "" {
			obj.SetString(names.Type, wr.wireType(p.Type))
		}
		obj.Fields = append(obj.Fields, n.Fields...)
	default:
		obj.Set(names.Value, n)
	}
	return c.write(w, obj)
}

// DecodeProperty reads a top-level property payload. The property is named
// after the last context path segment; the anonymous "value" property has no name.
func (c *Codec) DecodeProperty(r io.Reader) (*models.Property, error) {
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	if n.Kind != jsontree.Object {
		return nil, atStage(models.StageProperty, models.Malformed("property payload must be a JSON object, found %s", n.Kind))
	}
	names := c.Names
	rd := c.newReader()
	p := c.split(n)

	raw := p.str(names.Context)
	ctx := c.parseContext(raw)
	name := codec.PropertyName(ctx)
	typeName := codec.NormalizeTypeName(p.str(names.Type))
	if typeName == "" {
		typeName = codec.PropertyType(ctx)
	}
	anns, err := rd.annotations(p.annotations)
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	links, err := rd.links(p.propAnn)
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	if t := links.types[names.Value]; t != "" {
		typeName = t
	}
	anns = append(anns, links.annotations[names.Value]...)

	var prop *models.Property
	valueNode := n.Get(names.Value)
	switch {
	case p.str(names.Null) == "true":
		prop = &models.Property{Name: name, Type: typeName, Value: &models.Value{Kind: models.NullValue, TypeName: typeName}}
	case valueNode != nil && len(p.props) == 1:
		prop, err = rd.property(name, valueNode, typeName, true)
	default:
		body := jsontree.NewObject()
		for _, f := range n.Fields {
			kind, _, _ := c.classify(f.Name)
			if f.Name == names.Type || kind == fieldProperty || kind == fieldPropertyAnnotation {
				body.Fields = append(body.Fields, f)
			}
		}
		prop, err = rd.property(name, body, typeName, true)
	}
	if err != nil {
		return nil, atStage(models.StageProperty, err)
	}
	prop.Context = raw
	prop.Annotations = anns
	return prop, nil
}
