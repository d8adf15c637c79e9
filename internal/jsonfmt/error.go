package jsonfmt

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// innerErrorDepth bounds the nesting of innererror members
const innerErrorDepth = 32

// EncodeError writes an error body. v3 always nests the message as
// {"lang","value"}; v4 does so only for a localized message.
func (c *Codec) EncodeError(w io.Writer, e *models.ODataError) error {
	if e == nil {
		return atStage(models.StageODataError, models.Malformed("nil error"))
	}
	body := jsontree.NewObject()
	body.Set(constants.ErrorCode, jsontree.NewString(e.Code))
	if c.Version().IsV4() && e.Language == "" {
		body.Set(constants.ErrorMessage, jsontree.NewString(e.Message))
	} else {
		body.Set(constants.ErrorMessage, jsontree.NewObject().
			SetString(constants.ErrorLang, e.Language).
			Set(constants.ErrorValue, jsontree.NewString(e.Message)))
	}
	body.SetString(constants.ErrorTarget, e.Target)
	if len(e.Details) > 0 {
		if !c.Version().IsV4() {
			c.Logger().Warn("v3 error bodies have no details; dropping them", zap.Int("details", len(e.Details)))
		} else {
			arr := jsontree.NewArray()
			for _, d := range e.Details {
				arr.Items = append(arr.Items, jsontree.NewObject().
					Set(constants.ErrorCode, jsontree.NewString(d.Code)).
					Set(constants.ErrorMessage, jsontree.NewString(d.Message)).
					SetString(constants.ErrorTarget, d.Target))
			}
			body.Set(constants.ErrorDetails, arr)
		}
	}
	if len(e.InnerError) > 0 {
		body.Set(constants.ErrorInnerError, innerError(e.InnerError))
	}
	return c.write(w, jsontree.NewObject().Set(c.Names.Error, body))
}

// innerError renders the opaque member map in key order. Members whose text
// parses as a non-string JSON value are written raw.
func innerError(m map[string]string) *jsontree.Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := jsontree.NewObject()
	for _, k := range keys {
		obj.Set(k, rawOrString(m[k]))
	}
	return obj
}

func rawOrString(text string) *jsontree.Node {
	n, err := jsontree.Parse(strings.NewReader(text), innerErrorDepth)
	if err != nil || n.Kind == jsontree.String {
		return jsontree.NewString(text)
	}
	return n
}

// DecodeError reads an error body under either version's envelope name
func (c *Codec) DecodeError(r io.Reader) (*models.ODataError, error) {
	n, err := c.parse(r)
	if err != nil {
		return nil, atStage(models.StageODataError, err)
	}
	body := n.Get(c.Names.Error)
	for _, name := range []string{constants.ODataError, constants.ODataErrorV3} {
		if body == nil {
			body = n.Get(name)
		}
	}
	if body == nil || body.Kind != jsontree.Object {
		return nil, atStage(models.StageODataError, models.Malformed("missing error object"))
	}

	e := &models.ODataError{
		Code:   body.StringOf(constants.ErrorCode),
		Target: body.StringOf(constants.ErrorTarget),
	}
	e.Message, e.Language = c.message(body.Get(constants.ErrorMessage))
	if details := body.Get(constants.ErrorDetails); details != nil && details.Kind == jsontree.Array {
		for _, d := range details.Items {
			msg, _ := c.message(d.Get(constants.ErrorMessage))
			e.Details = append(e.Details, &models.ODataErrorDetail{
				Code:    d.StringOf(constants.ErrorCode),
				Message: msg,
				Target:  d.StringOf(constants.ErrorTarget),
			})
		}
	}
	if inner := body.Get(constants.ErrorInnerError); inner != nil && !inner.IsNull() {
		e.InnerError = make(map[string]string)
		if inner.Kind == jsontree.Object {
			for _, f := range inner.Fields {
				e.InnerError[f.Name] = rawText(f.Value)
			}
		} else {
			e.InnerError[constants.ErrorValue] = rawText(inner)
		}
	}
	return e, nil
}

// message accepts a plain string or a {"lang","value"} object
func (c *Codec) message(n *jsontree.Node) (string, string) {
	if n == nil {
		return "", ""
	}
	if n.Kind != jsontree.Object {
		return n.Scalar(), ""
	}
	return n.StringOf(constants.ErrorValue), c.canonicalLanguage(n.StringOf(constants.ErrorLang))
}

// canonicalLanguage normalises a BCP 47 tag, keeping unparsable tags verbatim
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

// rawText returns a string member's contents or the compact JSON of anything else
func rawText(n *jsontree.Node) string {
	if n.Kind == jsontree.String {
		return n.Text
	}
	var buf bytes.Buffer
	if err := jsontree.Encode(&buf, n); err != nil {
		return n.Scalar()
	}
	return strings.TrimSpace(buf.String())
}
