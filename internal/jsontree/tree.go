// Package jsontree holds one JSON document as an ordered tree.
//
// OData JSON decoding needs to look at sibling annotations before the value
// they describe (Prop@odata.type may follow Prop), so each object level is
// materialised with its member order intact and raw number text preserved.
package jsontree

import (
	"fmt"
	"io"

	"github.com/go-json-experiment/json/jsontext"
)

// Kind mirrors jsontext.Kind: 'n', 'f', 't', '"', '0', '{', '['
type Kind = jsontext.Kind

// Node kinds
const (
	Null   Kind = 'n'
	False  Kind = 'f'
	True   Kind = 't'
	String Kind = '"'
	Number Kind = '0'
	Object Kind = '{'
	Array  Kind = '['
)

// Field is one object member
type Field struct {
	Name  string
	Value *Node
}

// Node is a JSON value
type Node struct {
	Kind   Kind
	Text   string // string contents or raw number text
	Fields []Field
	Items  []*Node
}

// NewString creates a string node
func NewString(s string) *Node { return &Node{Kind: String, Text: s} }

// NewNumber creates a number node from literal text
func NewNumber(text string) *Node { return &Node{Kind: Number, Text: text} }

// NewBool creates a boolean node
func NewBool(b bool) *Node {
	if b {
		return &Node{Kind: True}
	}
	return &Node{Kind: False}
}

// NewNull creates a null node
func NewNull() *Node { return &Node{Kind: Null} }

// NewObject creates an empty object node
func NewObject() *Node { return &Node{Kind: Object} }

// NewArray creates an array node
func NewArray(items ...*Node) *Node {
	if items == nil {
		items = []*Node{}
	}
	return &Node{Kind: Array, Items: items}
}

// Set appends a member; the caller keeps names unique
func (n *Node) Set(name string, v *Node) *Node {
	n.Fields = append(n.Fields, Field{Name: name, Value: v})
	return n
}

// SetString appends a string member unless s is empty
func (n *Node) SetString(name, s string) *Node {
	if s == "" {
		return n
	}
	return n.Set(name, NewString(s))
}

// Get returns the first member with the given name, or nil
func (n *Node) Get(name string) *Node {
	if n == nil || n.Kind != Object {
		return nil
	}
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Has reports whether the object has a member with the given name
func (n *Node) Has(name string) bool {
	return n.Get(name) != nil
}

// StringOf returns the member's string contents, or "" when absent or not a string
func (n *Node) StringOf(name string) string {
	v := n.Get(name)
	if v == nil || v.Kind != String {
		return ""
	}
	return v.Text
}

// IsNull reports whether n is absent or JSON null
func (n *Node) IsNull() bool {
	return n == nil || n.Kind == Null
}

// IsScalar reports whether n is a string, number or boolean
func (n *Node) IsScalar() bool {
	switch n.Kind {
	case String, Number, True, False:
		return true
	}
	return false
}

// Scalar returns the textual form of a scalar node: string contents, number text, "true" or "false"
func (n *Node) Scalar() string {
	switch n.Kind {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return n.Text
	}
}

// DepthError is returned when nesting exceeds the configured limit
type DepthError struct {
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("JSON nesting exceeds %d levels", e.Limit)
}

// Read reads exactly one value from dec. maxDepth <= 0 disables the limit.
func Read(dec *jsontext.Decoder, maxDepth int) (*Node, error) {
	return read(dec, 0, maxDepth)
}

func read(dec *jsontext.Decoder, depth, maxDepth int) (*Node, error) {
	switch kind := dec.PeekKind(); kind {
	case Number:
		v, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		return NewNumber(string(v)), nil
	case Object, Array:
		if maxDepth > 0 && depth >= maxDepth {
			return nil, &DepthError{Limit: maxDepth}
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		n := &Node{Kind: kind}
		if kind == Array {
			n.Items = []*Node{}
		}
		for dec.PeekKind() != ']' && dec.PeekKind() != '}' {
			if kind == Object {
				tok, err := dec.ReadToken()
				if err != nil {
					return nil, err
				}
				// the token is only valid until the next decoder call
				name := tok.String()
				v, err := read(dec, depth+1, maxDepth)
				if err != nil {
					return nil, err
				}
				n.Fields = append(n.Fields, Field{Name: name, Value: v})
				continue
			}
			v, err := read(dec, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return n, nil
	default:
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		switch tok.Kind() {
		case String:
			return NewString(tok.String()), nil
		case True, False:
			return NewBool(tok.Bool()), nil
		default:
			return NewNull(), nil
		}
	}
}

// Parse reads a single JSON document from r. Duplicate member names are rejected.
func Parse(r io.Reader, maxDepth int) (*Node, error) {
	dec := jsontext.NewDecoder(r)
	n, err := Read(dec, maxDepth)
	if err != nil {
		return nil, err
	}
	if _, err := dec.ReadToken(); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after top-level value")
		}
		return nil, err
	}
	return n, nil
}

// Write encodes n to enc
func Write(enc *jsontext.Encoder, n *Node) error {
	if n == nil {
		return enc.WriteToken(jsontext.Null)
	}
	switch n.Kind {
	case Object:
		if err := enc.WriteToken(jsontext.ObjectStart); err != nil {
			return err
		}
		for _, f := range n.Fields {
			if err := enc.WriteToken(jsontext.String(f.Name)); err != nil {
				return err
			}
			if err := Write(enc, f.Value); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.ObjectEnd)
	case Array:
		if err := enc.WriteToken(jsontext.ArrayStart); err != nil {
			return err
		}
		for _, item := range n.Items {
			if err := Write(enc, item); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.ArrayEnd)
	case String:
		return enc.WriteToken(jsontext.String(n.Text))
	case Number:
		return enc.WriteValue(jsontext.Value(n.Text))
	case True, False:
		return enc.WriteToken(jsontext.Bool(n.Kind == True))
	default:
		return enc.WriteToken(jsontext.Null)
	}
}

// Encode writes n as one compact JSON document to w
func Encode(w io.Writer, n *Node) error {
	return Write(jsontext.NewEncoder(w), n)
}
