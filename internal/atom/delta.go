package atom

import (
	"encoding/xml"
	"io"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

func (c *Codec) requireDelta() error {
	if !c.Version().IsV4() {
		return models.WrapStage(models.StageDelta, c.Version().String(), models.ErrUnsupportedVersion)
	}
	return nil
}

// EncodeDelta writes a v4 delta feed: changed entries, then at:deleted-entry
// tombstones and m:link / m:deleted-link markers
func (c *Codec) EncodeDelta(w io.Writer, d *models.Delta) error {
	if err := c.requireDelta(); err != nil {
		return err
	}
	if d == nil {
		return atStage(models.StageDelta, models.Malformed("nil delta"))
	}
	var markers []*xmltree.Element
	for _, de := range d.DeletedEntities {
		el := xmltree.New(constants.PrefixTombstones+":"+constants.AtomDeletedEntry,
			xmltree.Attr(constants.MetaAttrRef, de.ID))
		setAttr(el, mName(constants.MetaAttrReason), string(de.Reason))
		markers = append(markers, el)
	}
	for _, l := range d.AddedLinks {
		markers = append(markers, deltaLink(constants.MetaLink, l))
	}
	for _, l := range d.DeletedLinks {
		markers = append(markers, deltaLink(constants.MetaDeletedLink, l))
	}
	wr := c.newWriter()
	el, err := wr.feed(&d.EntitySet, false, markers...)
	if err != nil {
		return atStage(models.StageDelta, err)
	}
	wr.root(el, d.BaseURI, d.Context)
	el.Attr = append(el.Attr, xmltree.Attr("xmlns:"+constants.PrefixTombstones, constants.TombstonesNamespace))
	return c.write(w, el)
}

func deltaLink(local string, l *models.DeltaLink) *xmltree.Element {
	return xmltree.New(mName(local),
		xmltree.Attr(constants.MetaAttrSource, l.Source),
		xmltree.Attr(constants.MetaAttrRelation, l.Relationship),
		xmltree.Attr(constants.MetaAttrTarget, l.Target))
}

// DecodeDelta reads a v4 delta feed
func (c *Codec) DecodeDelta(r io.Reader) (*models.Delta, error) {
	if err := c.requireDelta(); err != nil {
		return nil, err
	}
	st, root, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageDelta, err)
	}
	rd := c.newReader(st)
	d := &models.Delta{}
	s, err := rd.feedBody(root, func(start xml.StartElement) error {
		child := head(start)
		switch {
		case child.Is(constants.TombstonesNamespace, constants.AtomDeletedEntry):
			d.DeletedEntities = append(d.DeletedEntities, rd.deletedEntity(child))
		case isMeta(child, constants.MetaLink):
			l, err := readDeltaLink(child)
			if err != nil {
				return err
			}
			d.AddedLinks = append(d.AddedLinks, l)
		case isMeta(child, constants.MetaDeletedLink):
			l, err := readDeltaLink(child)
			if err != nil {
				return err
			}
			d.DeletedLinks = append(d.DeletedLinks, l)
		default:
			rd.warn("skipping unexpected delta element",
				zap.String("namespace", child.Name.Space), zap.String("element", child.Name.Local))
		}
		return nil
	})
	if err != nil {
		return nil, atStage(models.StageDelta, err)
	}
	d.EntitySet = *s
	return d, nil
}

// deletedEntity reads a tombstone; the reason defaults to deleted
func (r *reader) deletedEntity(e *xmltree.Element) *models.DeletedEntity {
	reason := metaAttr(e, constants.MetaAttrReason)
	if reason == "" {
		reason = attr(e, constants.MetaAttrReason)
	}
	de := &models.DeletedEntity{ID: attr(e, constants.MetaAttrRef), Reason: models.DeletedReason(reason)}
	switch {
	case reason == "":
		de.Reason = models.ReasonDeleted
	case !de.Reason.IsValid():
		r.warn("unknown deleted-entity reason", zap.String("reason", reason), zap.String("id", de.ID))
	}
	return de
}

func readDeltaLink(e *xmltree.Element) (*models.DeltaLink, error) {
	l := &models.DeltaLink{
		Source:       attr(e, constants.MetaAttrSource),
		Relationship: attr(e, constants.MetaAttrRelation),
		Target:       attr(e, constants.MetaAttrTarget),
	}
	if l.Source == "" || l.Relationship == "" || l.Target == "" {
		return nil, models.WrapStage(models.StageDelta, e.Name.Local,
			models.Malformed("delta link requires source, relationship and target"))
	}
	return l, nil
}
