package atom

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

// EncodeEntity writes a single entry, or a reference when the entity only carries an ID
func (c *Codec) EncodeEntity(w io.Writer, e *models.Entity) error {
	wr := c.newWriter()
	el, err := wr.entity(e)
	if err != nil {
		return atStage(models.StageEntity, err)
	}
	return c.write(w, wr.root(el, e.BaseURI, e.Context))
}

// DecodeEntity reads a single entry or entity reference. A feed document
// fails with ErrExpectedEntityFoundSet.
func (c *Codec) DecodeEntity(r io.Reader) (*models.Entity, error) {
	s, root, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageEntity, err)
	}
	if isAtom(head(root), constants.AtomFeed) {
		return nil, atStage(models.StageEntity, models.ErrExpectedEntityFoundSet)
	}
	e, err := c.newReader(s).entity(root, nil)
	if err != nil {
		return nil, atStage(models.StageEntity, err)
	}
	if e.Context == "" {
		e.Context = metaAttr(head(root), constants.MetaAttrContext)
	}
	return e, nil
}

// EncodeEntitySet writes a feed. The count is always written, falling back to
// the number of entries present.
func (c *Codec) EncodeEntitySet(w io.Writer, s *models.EntitySet) error {
	if s == nil {
		return atStage(models.StageEntitySet, models.Malformed("nil entity set"))
	}
	wr := c.newWriter()
	el, err := wr.feed(s, true)
	if err != nil {
		return atStage(models.StageEntitySet, err)
	}
	return c.write(w, wr.root(el, s.BaseURI, s.Context))
}

// DecodeEntitySet reads a feed
func (c *Codec) DecodeEntitySet(r io.Reader) (*models.EntitySet, error) {
	st, root, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageEntitySet, err)
	}
	s, err := c.newReader(st).feed(root)
	if err != nil {
		return nil, atStage(models.StageEntitySet, err)
	}
	return s, nil
}

// feed decodes an atom:feed with its entries. Delta markers are skipped here.
func (r *reader) feed(start xml.StartElement) (*models.EntitySet, error) {
	return r.feedBody(start, func(child xml.StartElement) error {
		r.warn("skipping unexpected feed element",
			zap.String("namespace", child.Name.Space), zap.String("element", child.Name.Local))
		return nil
	})
}

// feedBody reads a feed and decodes each entry as it arrives. Elements it
// does not know go to other, which sees only the start tag.
func (r *reader) feedBody(start xml.StartElement, other func(xml.StartElement) error) (*models.EntitySet, error) {
	e := head(start)
	if !isAtom(e, constants.AtomFeed) {
		return nil, models.Malformed("%s: expected <%s>, found <%s>", constants.ErrUnexpectedElement, constants.AtomFeed, e.Name.Local)
	}
	if err := r.depth.Enter(); err != nil {
		return nil, err
	}
	defer r.depth.Leave()

	s := &models.EntitySet{
		Context:  metaAttr(e, constants.MetaAttrContext),
		BaseURI:  xmlAttr(e, constants.AtomAttrBase),
		Entities: []*models.Entity{},
	}
	ctx := r.c.parseContext(s.Context)
	if ctx != nil && s.BaseURI == "" {
		s.BaseURI = ctx.ServiceRoot
	}
	err := r.s.walk(func(start xml.StartElement) error {
		child := head(start)
		switch {
		case isAtom(child, constants.AtomEntry):
			return r.entry(s, start, ctx)
		case isAtom(child, constants.AtomID):
			text, err := r.s.text()
			s.ID = strings.TrimSpace(text)
			return err
		case isMeta(child, constants.MetaCount):
			text, err := r.s.text()
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text)
			count, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return models.Malformed("invalid count %q", text)
			}
			s.Count = &count
			return nil
		case isAtom(child, constants.AtomLink):
			switch rel := attr(child, constants.AtomAttrRel); rel {
			case constants.AtomRelNext:
				s.Next = attr(child, constants.AtomAttrHref)
			case constants.DeltaRelV4:
				s.DeltaLink = attr(child, constants.AtomAttrHref)
			}
		case isMeta(child, constants.MetaAction), isMeta(child, constants.MetaFunction):
			s.Operations = append(s.Operations, operation(child))
		case isMeta(child, constants.MetaAnnotation):
			tree, err := r.s.tree(start)
			if err != nil {
				return err
			}
			ann, err := r.annotation(tree)
			if err != nil {
				return err
			}
			s.Annotations = append(s.Annotations, ann)
			return nil
		case isAtom(child, constants.AtomTitle), isAtom(child, constants.AtomUpdated),
			isAtom(child, constants.AtomAuthor):
		default:
			if err := other(start); err != nil {
				return err
			}
		}
		return r.s.skip()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// entry decodes the next entry of s
func (r *reader) entry(s *models.EntitySet, start xml.StartElement, ctx *models.ContextURL) error {
	ent, err := r.entity(start, ctx)
	if err != nil {
		return models.WrapStage(models.StageEntitySet, "entry["+strconv.Itoa(len(s.Entities))+"]", err)
	}
	if ent.BaseURI == "" {
		ent.BaseURI = s.BaseURI
	}
	s.Entities = append(s.Entities, ent)
	return nil
}
