package atom

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// EncodeLinks writes a collection of entity references: a <links> document of
// <uri> elements in v3, a feed of m:ref elements in v4
func (c *Codec) EncodeLinks(w io.Writer, lc *models.LinkCollection) error {
	if lc == nil {
		return atStage(models.StageLinks, models.Malformed("nil link collection"))
	}
	wr := c.newWriter()
	if c.Version().IsV4() {
		feed := xmltree.New(constants.AtomFeed)
		if lc.Count != nil {
			feed.Add(xmltree.New(mName(constants.MetaCount)).SetText(strconv.FormatInt(*lc.Count, 10)))
		}
		for _, href := range lc.Links {
			feed.Add(wr.reference(href))
		}
		if lc.Next != "" {
			feed.Add(link(constants.AtomRelNext, lc.Next))
		}
		return c.write(w, wr.root(feed, "", lc.Context))
	}

	links := xmltree.New(constants.DataLinks, xmltree.Attr("xmlns", c.Atom.DataNamespace))
	links.Attr = append(links.Attr, xmltree.Attr("xmlns:"+constants.PrefixMetadata, c.Atom.MetadataNamespace))
	if lc.Count != nil {
		links.Add(xmltree.New(mName(constants.MetaCount)).SetText(strconv.FormatInt(*lc.Count, 10)))
	}
	for _, href := range lc.Links {
		links.Add(xmltree.New(constants.DataURI).SetText(href))
	}
	if lc.Next != "" {
		links.Add(xmltree.New(constants.DataNext).SetText(lc.Next))
	}
	return c.write(w, links)
}

// DecodeLinks reads either version's reference collection, or a single reference
func (c *Codec) DecodeLinks(r io.Reader) (*models.LinkCollection, error) {
	st, root, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageLinks, err)
	}
	rd := c.newReader(st)
	e := head(root)
	lc := &models.LinkCollection{Context: metaAttr(e, constants.MetaAttrContext), Links: []string{}}
	id, ok, err := rd.reference(root)
	switch {
	case err != nil:
		return nil, atStage(models.StageLinks, err)
	case ok && id == "":
		return nil, atStage(models.StageLinks, models.Malformed("reference without an id"))
	case ok:
		lc.Links = append(lc.Links, id)
		return lc, nil
	}
	if !isAtom(e, constants.AtomFeed) && !isData(e, constants.DataLinks) {
		return nil, atStage(models.StageLinks,
			models.Malformed("%s: <%s> is not a link collection", constants.ErrUnexpectedElement, e.Name.Local))
	}
	i := 0
	err = st.walk(func(start xml.StartElement) error {
		defer func() { i++ }()
		id, ok, err := rd.reference(start)
		if err != nil {
			return err
		}
		if ok {
			if id == "" {
				return models.WrapStage(models.StageLinks, "link["+strconv.Itoa(i)+"]", models.Malformed("reference without an id"))
			}
			lc.Links = append(lc.Links, id)
			return nil
		}
		child := head(start)
		switch {
		case isMeta(child, constants.MetaCount):
			text, err := st.text()
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text)
			count, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return models.Malformed("invalid count %q", text)
			}
			lc.Count = &count
			return nil
		case isData(child, constants.DataNext):
			text, err := st.text()
			lc.Next = strings.TrimSpace(text)
			return err
		case isAtom(child, constants.AtomLink) && attr(child, constants.AtomAttrRel) == constants.AtomRelNext:
			lc.Next = attr(child, constants.AtomAttrHref)
		case isAtom(child, constants.AtomID), isAtom(child, constants.AtomTitle), isAtom(child, constants.AtomUpdated):
		default:
			c.Logger().Warn("skipping unexpected element in link collection",
				zap.String("namespace", child.Name.Space), zap.String("element", child.Name.Local))
		}
		return st.skip()
	})
	if err != nil {
		return nil, atStage(models.StageLinks, err)
	}
	return lc, nil
}
