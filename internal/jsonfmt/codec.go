// Package jsonfmt implements the OData JSON formats: v3 JSON light and v4 JSON.
// The protocol version only selects a field-name table; the logic is shared.
package jsonfmt

import (
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/contexturl"
	"github.com/zmcp/odata-codec/internal/debug"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
)

// Codec reads and writes OData JSON payloads. It is safe for concurrent use.
type Codec struct {
	codec.Base
}

// New creates a JSON codec
func New(opts codec.Options) *Codec {
	return &Codec{Base: codec.NewBase(opts)}
}

// treeDepth converts the semantic nesting limit into a JSON nesting limit;
// one entity level costs up to four JSON levels (entity, link array, annotation, value).
func (c *Codec) treeDepth() int {
	return c.Opts.MaxDepth * 4
}

func (c *Codec) parse(r io.Reader) (*jsontree.Node, error) {
	src := codec.NewSource(r)
	n, err := jsontree.Parse(src, c.treeDepth())
	if err != nil {
		return nil, src.Classify(err)
	}
	return n, nil
}

func (c *Codec) write(w io.Writer, n *jsontree.Node) error {
	sink := codec.NewSink(w)
	return sink.Classify(jsontree.Encode(sink, n))
}

func (c *Codec) newReader() *reader {
	return &reader{c: c, depth: codec.NewDepth(c.Opts.MaxDepth)}
}

func (c *Codec) newWriter() *writer {
	return &writer{c: c, depth: codec.NewDepth(c.Opts.MaxDepth)}
}

// parseContext reads a context URL, warning instead of failing on unusual shapes
func (c *Codec) parseContext(raw string) *models.ContextURL {
	if raw == "" {
		return nil
	}
	ctx, err := contexturl.Parse(raw)
	if err != nil {
		c.Logger().Warn("ignoring unparsable context URL",
			zap.String("context", debug.MaskURL(raw)), zap.Error(err))
		return nil
	}
	return ctx
}

type fieldKind int

const (
	fieldProperty fieldKind = iota
	fieldReserved
	fieldOperation
	fieldAnnotation
	fieldPropertyAnnotation
)

// classify sorts a member name into reserved control field, bound operation,
// instance annotation, property-scoped annotation or plain property.
// For property-scoped annotations base is the property and suffix starts with '@'.
func (c *Codec) classify(name string) (kind fieldKind, base, suffix string) {
	switch {
	case strings.HasPrefix(name, c.Names.ReservedPrefix):
		return fieldReserved, name, ""
	case strings.HasPrefix(name, "#") || strings.Contains(name, "$metadata#"):
		return fieldOperation, name, ""
	case strings.HasPrefix(name, "@"):
		return fieldAnnotation, name, ""
	}
	if i := strings.IndexByte(name, '@'); i > 0 {
		return fieldPropertyAnnotation, name[:i], name[i:]
	}
	return fieldProperty, name, ""
}

// splitTerm separates "@NS.term#Qualifier" into term and qualifier
func splitTerm(key string) (string, string) {
	key = strings.TrimPrefix(key, "@")
	term, qualifier, _ := strings.Cut(key, "#")
	return term, qualifier
}

// parts is one JSON object level sorted by field kind, order preserved within each group
type parts struct {
	reserved    map[string]*jsontree.Node
	operations  []jsontree.Field
	annotations []jsontree.Field
	props       []jsontree.Field
	propAnn     []propAnnotation
}

type propAnnotation struct {
	base   string
	suffix string
	value  *jsontree.Node
}

func (c *Codec) split(n *jsontree.Node) *parts {
	p := &parts{reserved: make(map[string]*jsontree.Node)}
	for _, f := range n.Fields {
		kind, base, suffix := c.classify(f.Name)
		switch kind {
		case fieldReserved:
			p.reserved[f.Name] = f.Value
		case fieldOperation:
			p.operations = append(p.operations, f)
		case fieldAnnotation:
			p.annotations = append(p.annotations, f)
		case fieldPropertyAnnotation:
			p.propAnn = append(p.propAnn, propAnnotation{base: base, suffix: suffix, value: f.Value})
		default:
			p.props = append(p.props, f)
		}
	}
	return p
}

// str returns the reserved field's textual value
func (p *parts) str(name string) string {
	if name == "" {
		return ""
	}
	n := p.reserved[name]
	if n == nil || !n.IsScalar() {
		return ""
	}
	return n.Scalar()
}

// has reports whether the reserved field is present
func (p *parts) has(name string) bool {
	if name == "" {
		return false
	}
	_, ok := p.reserved[name]
	return ok
}

// onlyReserved reports whether the object holds nothing but the given reserved fields
func (p *parts) onlyReserved(allowed ...string) bool {
	if len(p.props) > 0 || len(p.propAnn) > 0 || len(p.operations) > 0 || len(p.annotations) > 0 {
		return false
	}
	for name := range p.reserved {
		ok := false
		for _, a := range allowed {
			if name == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
