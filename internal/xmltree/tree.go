// Package xmltree provides pull-parsing helpers over encoding/xml and a small
// element tree for the sub-trees that must be held in memory (one property
// value, one GML geometry).
package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDepth is returned when element nesting exceeds the configured limit
var ErrDepth = errors.New("XML nesting too deep")

// Element is an XML element with its attributes, child elements and direct character data
type Element struct {
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Element
	Text     string
}

// New creates an element to be written; name may carry a literal prefix, e.g. "gml:Point"
func New(name string, attrs ...xml.Attr) *Element {
	return &Element{Name: xml.Name{Local: name}, Attr: attrs}
}

// Attr is a shorthand for a literal-named attribute
func Attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// Add appends children and returns e
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// SetText sets the character data and returns e
func (e *Element) SetText(s string) *Element {
	e.Text = s
	return e
}

// Is reports whether the element has the given namespace and local name
func (e *Element) Is(space, local string) bool {
	return e.Name.Space == space && e.Name.Local == local
}

// AttrValue returns the value of the attribute with the given namespace and local name
func (e *Element) AttrValue(space, local string) (string, bool) {
	return AttrValue(e.Attr, space, local)
}

// Child returns the first child with the given name
func (e *Element) Child(space, local string) *Element {
	for _, c := range e.Children {
		if c.Is(space, local) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the children with the given name
func (e *Element) ChildrenNamed(space, local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Is(space, local) {
			out = append(out, c)
		}
	}
	return out
}

// AttrValue finds an attribute in a list
func AttrValue(attrs []xml.Attr, space, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Read consumes the element opened by start, through its matching end element.
// maxDepth <= 0 disables the depth limit.
func Read(d *xml.Decoder, start xml.StartElement, maxDepth int) (*Element, error) {
	return read(d, start, 1, maxDepth)
}

func read(d *xml.Decoder, start xml.StartElement, depth, maxDepth int) (*Element, error) {
	if maxDepth > 0 && depth > maxDepth {
		return nil, ErrDepth
	}
	e := &Element{Name: start.Name, Attr: start.Copy().Attr}
	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, eofIsUnexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := read(d, t, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			e.Children = append(e.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			e.Text = text.String()
			return e, nil
		}
	}
}

// Walk calls fn for every child element of the element whose start tag was just read,
// returning once the matching end tag is consumed. fn must consume the child entirely.
func Walk(d *xml.Decoder, fn func(start xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return eofIsUnexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t.Copy()); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// Text reads the character data of the current element through its end tag.
// Nested elements are skipped.
func Text(d *xml.Decoder) (string, error) {
	var b strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return "", eofIsUnexpected(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := d.Skip(); err != nil {
				return "", eofIsUnexpected(err)
			}
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

// Skip consumes the rest of the element whose start tag was just read
func Skip(d *xml.Decoder) error {
	return eofIsUnexpected(d.Skip())
}

// Root returns the first start element of the document
func Root(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Copy(), nil
		}
	}
}

func eofIsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Write encodes e with its children. Names are written exactly as stored in Local;
// a non-empty Space is written as a prefix-free xmlns declaration by encoding/xml.
func (e *Element) Write(enc *xml.Encoder) error {
	start := xml.StartElement{Name: e.Name, Attr: e.Attr}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := c.Write(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// String renders e for diagnostics
func (e *Element) String() string {
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	if err := e.Write(enc); err != nil {
		return fmt.Sprintf("<%s: %v>", e.Name.Local, err)
	}
	_ = enc.Flush()
	return b.String()
}
