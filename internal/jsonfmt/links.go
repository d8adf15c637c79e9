package jsonfmt

import (
	"io"
	"strconv"

	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// EncodeLinks writes a collection of entity references ($links in v3, $ref in v4)
func (c *Codec) EncodeLinks(w io.Writer, lc *models.LinkCollection) error {
	if lc == nil {
		return atStage(models.StageLinks, models.Malformed("nil link collection"))
	}
	names := c.Names
	wr := c.newWriter()
	obj := jsontree.NewObject()
	obj.SetString(names.Context, lc.Context)
	if lc.Count != nil {
		obj.Set(names.Count, wr.count(*lc.Count))
	}
	arr := jsontree.NewArray()
	for _, href := range lc.Links {
		arr.Items = append(arr.Items, jsontree.NewObject().Set(names.ReferenceID, jsontree.NewString(href)))
	}
	obj.Set(names.Value, arr)
	obj.SetString(names.NextLink, lc.Next)
	return c.write(w, obj)
}

// DecodeLinks reads a collection of entity references. A single reference
// object yields a one-element collection.
func (c *Codec) DecodeLinks(r io.Reader) (*models.LinkCollection, error) {
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageLinks, err)
	}
	if n.Kind != jsontree.Object {
		return nil, atStage(models.StageLinks, models.Malformed("links payload must be a JSON object, found %s", n.Kind))
	}
	names := c.Names
	p := c.split(n)
	lc := &models.LinkCollection{
		Context: p.str(names.Context),
		Next:    p.str(names.NextLink),
		Links:   []string{},
	}
	if ref, ok := c.newReader().reference(p); ok {
		lc.Links = append(lc.Links, ref)
		return lc, nil
	}
	if p.has(names.Count) {
		text := p.str(names.Count)
		count, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, atStage(models.StageLinks, models.Malformed("invalid count %q", text))
		}
		lc.Count = &count
	}
	v := n.Get(names.Value)
	if v == nil || v.Kind != jsontree.Array {
		return nil, atStage(models.StageLinks, models.Malformed("links payload requires a %q array", names.Value))
	}
	for i, item := range v.Items {
		href := item.StringOf(names.ReferenceID)
		if item.Kind != jsontree.Object || href == "" {
			return nil, models.WrapStage(models.StageLinks, "value["+strconv.Itoa(i)+"]",
				models.Malformed("reference requires %q", names.ReferenceID))
		}
		lc.Links = append(lc.Links, href)
	}
	return lc, nil
}
