package jsonfmt

import (
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/contexturl"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

func (c *Codec) requireDelta() error {
	if !c.Version().IsV4() {
		return models.WrapStage(models.StageDelta, c.Version().String(), models.ErrUnsupportedVersion)
	}
	return nil
}

// EncodeDelta writes a v4 delta: changed entities followed by deleted-entity
// and link markers, then the next or delta link
func (c *Codec) EncodeDelta(w io.Writer, d *models.Delta) error {
	if err := c.requireDelta(); err != nil {
		return err
	}
	if d == nil {
		return atStage(models.StageDelta, models.Malformed("nil delta"))
	}
	wr := c.newWriter()
	obj, err := wr.feed(&d.EntitySet, false)
	if err != nil {
		return atStage(models.StageDelta, err)
	}
	arr, err := wr.entityArray(d.Entities)
	if err != nil {
		return atStage(models.StageDelta, err)
	}
	ctx := c.parseContext(d.Context)
	names := c.Names
	for _, de := range d.DeletedEntities {
		item := jsontree.NewObject().
			SetString(names.Context, markerContext(ctx, models.SuffixDeletedEntity)).
			SetString(constants.DeltaID, de.ID).
			SetString(constants.DeltaReason, string(de.Reason))
		arr.Items = append(arr.Items, item)
	}
	for _, l := range d.AddedLinks {
		arr.Items = append(arr.Items, deltaLink(names, markerContext(ctx, models.SuffixLink), l))
	}
	for _, l := range d.DeletedLinks {
		arr.Items = append(arr.Items, deltaLink(names, markerContext(ctx, models.SuffixDeletedLink), l))
	}
	obj.Set(names.Value, arr)
	wr.feedLinks(obj, &d.EntitySet)
	return c.write(w, obj)
}

func deltaLink(names *constants.JSONNameSet, context string, l *models.DeltaLink) *jsontree.Node {
	return jsontree.NewObject().
		SetString(names.Context, context).
		SetString(constants.DeltaSource, l.Source).
		SetString(constants.DeltaRelationship, l.Relationship).
		SetString(constants.DeltaTarget, l.Target)
}

// markerContext builds the context URL of a delta marker from the delta's own context
func markerContext(ctx *models.ContextURL, suffix models.ContextSuffix) string {
	if ctx == nil || ctx.EntitySetOrSingletonOrType == "" {
		return "#" + suffix.String()
	}
	return contexturl.Build(&models.ContextURL{
		ServiceRoot:                ctx.ServiceRoot,
		EntitySetOrSingletonOrType: ctx.EntitySetOrSingletonOrType,
		Suffix:                     suffix,
	})
}

// DecodeDelta reads a v4 delta. Items are told apart by their context suffix,
// a removal marker, or the shape of a link object.
func (c *Codec) DecodeDelta(r io.Reader) (*models.Delta, error) {
	if err := c.requireDelta(); err != nil {
		return nil, err
	}
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageDelta, err)
	}
	rd := c.newReader()
	s, items, err := rd.feed(n)
	if err != nil {
		return nil, atStage(models.StageDelta, err)
	}
	d := &models.Delta{EntitySet: *s}
	d.Entities = []*models.Entity{}
	ctx := c.parseContext(s.Context)
	for i, item := range items {
		fragment := "value[" + strconv.Itoa(i) + "]"
		if item.Kind != jsontree.Object {
			return nil, models.WrapStage(models.StageDelta, fragment, models.Malformed("delta item must be an object"))
		}
		if err := rd.deltaItem(d, item, ctx); err != nil {
			return nil, models.WrapStage(models.StageDelta, fragment, err)
		}
	}
	return d, nil
}

func (r *reader) deltaItem(d *models.Delta, item *jsontree.Node, ctx *models.ContextURL) error {
	names := r.names()
	itemCtx := item.StringOf(names.Context)
	removed := item.Get(names.Removed)
	if removed == nil {
		removed = item.Get(constants.ODataRemovedShort)
	}
	switch {
	case strings.HasSuffix(itemCtx, models.SuffixDeletedEntity.String()) || removed != nil:
		de, err := r.deletedEntity(item, removed)
		if err != nil {
			return err
		}
		d.DeletedEntities = append(d.DeletedEntities, de)
	case strings.HasSuffix(itemCtx, models.SuffixDeletedLink.String()):
		l, err := readDeltaLink(item)
		if err != nil {
			return err
		}
		d.DeletedLinks = append(d.DeletedLinks, l)
	case strings.HasSuffix(itemCtx, models.SuffixLink.String()) || isLinkShape(item):
		l, err := readDeltaLink(item)
		if err != nil {
			return err
		}
		d.AddedLinks = append(d.AddedLinks, l)
	default:
		e, err := r.entity(item, ctx)
		if err != nil {
			return err
		}
		d.Entities = append(d.Entities, e)
	}
	return nil
}

// deletedEntity reads both the {"id","reason"} marker and the removal-annotation form
func (r *reader) deletedEntity(item, removed *jsontree.Node) (*models.DeletedEntity, error) {
	id := item.StringOf(constants.DeltaID)
	if id == "" {
		id = item.StringOf(r.names().ID)
	}
	if id == "" {
		id = item.StringOf("@" + constants.DeltaID)
	}
	if id == "" {
		return nil, models.Malformed("deleted entity without id")
	}
	reason := item.StringOf(constants.DeltaReason)
	if reason == "" && removed != nil && removed.Kind == jsontree.Object {
		reason = removed.StringOf(constants.DeltaReason)
	}
	de := &models.DeletedEntity{ID: id, Reason: models.DeletedReason(reason)}
	if reason == "" {
		de.Reason = models.ReasonDeleted
	} else if !de.Reason.IsValid() {
		r.warn("unknown deleted entity reason", zap.String("id", id), zap.String("reason", reason))
	}
	return de, nil
}

func isLinkShape(item *jsontree.Node) bool {
	return item.Has(constants.DeltaSource) && item.Has(constants.DeltaRelationship) && item.Has(constants.DeltaTarget)
}

func readDeltaLink(item *jsontree.Node) (*models.DeltaLink, error) {
	l := &models.DeltaLink{
		Source:       item.StringOf(constants.DeltaSource),
		Relationship: item.StringOf(constants.DeltaRelationship),
		Target:       item.StringOf(constants.DeltaTarget),
	}
	if l.Source == "" || l.Relationship == "" || l.Target == "" {
		return nil, models.Malformed("delta link requires source, relationship and target")
	}
	return l, nil
}
