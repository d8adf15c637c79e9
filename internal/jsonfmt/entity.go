package jsonfmt

import (
	"errors"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// atStage wraps err with stage unless the outermost stage already matches
func atStage(stage models.Stage, err error) error {
	var se *models.StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return models.WrapStage(stage, "", err)
}

// EncodeEntity writes a single entity, or a reference when the entity only carries an ID
func (c *Codec) EncodeEntity(w io.Writer, e *models.Entity) error {
	n, err := c.newWriter().entity(e, true)
	if err != nil {
		return atStage(models.StageEntity, err)
	}
	return c.write(w, n)
}

// DecodeEntity reads a single entity. A feed-shaped document fails with
// ErrExpectedEntityFoundSet.
func (c *Codec) DecodeEntity(r io.Reader) (*models.Entity, error) {
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageEntity, err)
	}
	if n.Kind == jsontree.Array || c.isFeed(n) {
		return nil, atStage(models.StageEntity, models.ErrExpectedEntityFoundSet)
	}
	e, err := c.newReader().entity(n, nil)
	if err != nil {
		return nil, atStage(models.StageEntity, err)
	}
	return e, nil
}

// isFeed reports whether an object is a "value" array wrapped in control fields only
func (c *Codec) isFeed(n *jsontree.Node) bool {
	if n.Kind != jsontree.Object {
		return false
	}
	v := n.Get(c.Names.Value)
	if v == nil || v.Kind != jsontree.Array {
		return false
	}
	for _, f := range n.Fields {
		if f.Name == c.Names.Value {
			continue
		}
		if kind, _, _ := c.classify(f.Name); kind == fieldProperty || kind == fieldPropertyAnnotation {
			return false
		}
	}
	return true
}

// EncodeEntitySet writes a feed. The count is always written, falling back to
// the number of entities present.
func (c *Codec) EncodeEntitySet(w io.Writer, s *models.EntitySet) error {
	if s == nil {
		return atStage(models.StageEntitySet, models.Malformed("nil entity set"))
	}
	wr := c.newWriter()
	obj, err := wr.feed(s, true)
	if err != nil {
		return atStage(models.StageEntitySet, err)
	}
	arr, err := wr.entityArray(s.Entities)
	if err != nil {
		return atStage(models.StageEntitySet, err)
	}
	obj.Set(c.Names.Value, arr)
	wr.feedLinks(obj, s)
	return c.write(w, obj)
}

// feed writes the control fields that precede the "value" array
func (w *writer) feed(s *models.EntitySet, alwaysCount bool) (*jsontree.Node, error) {
	names := w.names()
	obj := jsontree.NewObject()
	obj.SetString(names.Context, s.Context)
	if alwaysCount || s.Count != nil {
		obj.Set(names.Count, w.count(s.ResultCount()))
	}
	if err := w.annotations(obj, "", s.Annotations); err != nil {
		return nil, err
	}
	if w.server() {
		w.operations(obj, s.Operations)
	}
	return obj, nil
}

// feedLinks writes the paging and delta links that follow the "value" array
func (w *writer) feedLinks(obj *jsontree.Node, s *models.EntitySet) {
	obj.SetString(w.names().NextLink, s.Next)
	obj.SetString(w.names().DeltaLink, s.DeltaLink)
}

// DecodeEntitySet reads a feed. A bare JSON array is accepted as a feed without control fields.
func (c *Codec) DecodeEntitySet(r io.Reader) (*models.EntitySet, error) {
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageEntitySet, err)
	}
	rd := c.newReader()
	s, items, err := rd.feed(n)
	if err != nil {
		return nil, atStage(models.StageEntitySet, err)
	}
	entities, err := rd.entities(items, c.parseContext(s.Context))
	if err != nil {
		return nil, atStage(models.StageEntitySet, err)
	}
	s.Entities = entities.Entities
	return s, nil
}

// feed reads the control fields of a feed object and returns its "value" items
func (r *reader) feed(n *jsontree.Node) (*models.EntitySet, []*jsontree.Node, error) {
	if n.Kind == jsontree.Array {
		return &models.EntitySet{}, n.Items, nil
	}
	if n.Kind != jsontree.Object {
		return nil, nil, models.Malformed("entity set must be a JSON object, found %s", n.Kind)
	}
	names := r.names()
	v := n.Get(names.Value)
	if v == nil || v.Kind != jsontree.Array {
		return nil, nil, models.Malformed("entity set requires a %q array", names.Value)
	}
	p := r.c.split(n)
	s := &models.EntitySet{
		Context:   p.str(names.Context),
		Next:      p.str(names.NextLink),
		DeltaLink: p.str(names.DeltaLink),
	}
	if ctx := r.c.parseContext(s.Context); ctx != nil {
		s.BaseURI = ctx.ServiceRoot
	}
	if p.has(names.Count) {
		text := p.str(names.Count)
		count, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, nil, models.Malformed("invalid count %q", text)
		}
		s.Count = &count
	}
	var err error
	if s.Operations, err = r.operations(p.operations); err != nil {
		return nil, nil, err
	}
	if s.Annotations, err = r.annotations(p.annotations); err != nil {
		return nil, nil, err
	}
	for _, f := range p.props {
		if f.Name != names.Value {
			r.warn("skipping unexpected feed member", zap.String("field", f.Name))
		}
	}
	return s, v.Items, nil
}
