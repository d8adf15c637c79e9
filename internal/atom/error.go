package atom

import (
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// EncodeError writes an <m:error> document. Details exist only in v4.
func (c *Codec) EncodeError(w io.Writer, e *models.ODataError) error {
	if e == nil {
		return atStage(models.StageODataError, models.Malformed("nil error"))
	}
	root := xmltree.New(mName(constants.MetaError),
		xmltree.Attr("xmlns:"+constants.PrefixMetadata, c.Atom.MetadataNamespace))
	root.Add(xmltree.New(mName(constants.MetaCode)).SetText(e.Code))
	msg := xmltree.New(mName(constants.MetaMessage)).SetText(e.Message)
	setAttr(msg, "xml:"+constants.AtomAttrLang, e.Language)
	root.Add(msg)
	if e.Target != "" {
		root.Add(xmltree.New(mName(constants.MetaTarget)).SetText(e.Target))
	}
	if len(e.Details) > 0 {
		if !c.Version().IsV4() {
			c.Logger().Warn("v3 error bodies have no details; dropping them", zap.Int("details", len(e.Details)))
		} else {
			details := xmltree.New(mName(constants.MetaDetails))
			for _, d := range e.Details {
				detail := xmltree.New(mName(constants.MetaDetail)).Add(
					xmltree.New(mName(constants.MetaCode)).SetText(d.Code),
					xmltree.New(mName(constants.MetaMessage)).SetText(d.Message))
				if d.Target != "" {
					detail.Add(xmltree.New(mName(constants.MetaTarget)).SetText(d.Target))
				}
				details.Add(detail)
			}
			root.Add(details)
		}
	}
	if len(e.InnerError) > 0 {
		keys := make([]string, 0, len(e.InnerError))
		for k := range e.InnerError {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		inner := xmltree.New(mName(constants.MetaInnerError))
		for _, k := range keys {
			inner.Add(xmltree.New(mName(k)).SetText(e.InnerError[k]))
		}
		root.Add(inner)
	}
	return c.write(w, root)
}

// DecodeError reads an <m:error> document in either version's namespace
func (c *Codec) DecodeError(r io.Reader) (*models.ODataError, error) {
	st, root, err := c.open(r)
	if err != nil {
		return nil, atStage(models.StageODataError, err)
	}
	if !isMeta(head(root), constants.MetaError) {
		return nil, atStage(models.StageODataError, models.Malformed("missing error element, found <%s>", root.Name.Local))
	}
	e := &models.ODataError{}
	err = st.walk(func(start xml.StartElement) error {
		child := head(start)
		var err error
		switch {
		case isMeta(child, constants.MetaCode):
			e.Code, err = st.text()
			e.Code = strings.TrimSpace(e.Code)
		case isMeta(child, constants.MetaMessage):
			e.Language = c.canonicalLanguage(xmlAttr(child, constants.AtomAttrLang))
			e.Message, err = st.text()
		case isMeta(child, constants.MetaTarget):
			e.Target, err = st.text()
			e.Target = strings.TrimSpace(e.Target)
		case isMeta(child, constants.MetaDetails):
			err = st.walk(func(start xml.StartElement) error {
				if !isMeta(head(start), constants.MetaDetail) {
					return st.skip()
				}
				d, err := detail(st)
				if err != nil {
					return err
				}
				e.Details = append(e.Details, d)
				return nil
			})
		case isMeta(child, constants.MetaInnerError):
			var inner *xmltree.Element
			if inner, err = st.tree(start); err == nil {
				e.InnerError = innerError(inner)
			}
		default:
			err = st.skip()
		}
		return err
	})
	if err != nil {
		return nil, atStage(models.StageODataError, err)
	}
	return e, nil
}

// detail reads the m:detail element just opened
func detail(st *stream) (*models.ODataErrorDetail, error) {
	d := &models.ODataErrorDetail{}
	err := st.walk(func(start xml.StartElement) error {
		child := head(start)
		var err error
		switch {
		case isMeta(child, constants.MetaCode):
			d.Code, err = st.text()
			d.Code = strings.TrimSpace(d.Code)
		case isMeta(child, constants.MetaMessage):
			d.Message, err = st.text()
		case isMeta(child, constants.MetaTarget):
			d.Target, err = st.text()
			d.Target = strings.TrimSpace(d.Target)
		default:
			err = st.skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// innerError maps child elements by local name. Leaf children keep their text,
// nested ones their markup; bare text is stored under "value".
func innerError(e *xmltree.Element) map[string]string {
	out := make(map[string]string)
	if len(e.Children) == 0 {
		if text := strings.TrimSpace(e.Text); text != "" {
			out[constants.ErrorValue] = text
		}
		return out
	}
	for _, c := range e.Children {
		if len(c.Children) == 0 {
			out[c.Name.Local] = c.Text
			continue
		}
		var b strings.Builder
		for _, gc := range c.Children {
			b.WriteString(gc.String())
		}
		out[c.Name.Local] = b.String()
	}
	return out
}

// canonicalLanguage normalises an xml:lang tag, keeping unparsable tags verbatim
func (c *Codec) canonicalLanguage(tag string) string {
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		c.Logger().Warn("keeping unparsable error language", zap.String("lang", tag), zap.Error(err))
		return tag
	}
	return t.String()
}
