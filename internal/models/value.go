package models

import (
	"fmt"
)

// ValueKind tags the variant held by a Value
type ValueKind int

// Value variants
const (
	NullValue ValueKind = iota
	PrimitiveValue
	EnumValue
	ComplexValue
	CollectionValue
	GeospatialValue
)

// String returns a readable name for the kind
func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case PrimitiveValue:
		return "primitive"
	case EnumValue:
		return "enum"
	case ComplexValue:
		return "complex"
	case CollectionValue:
		return "collection"
	case GeospatialValue:
		return "geospatial"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Property is one named value of an entity, complex value or standalone payload
type Property struct {
	Name        string        `json:"name"`
	Type        string        `json:"type,omitempty"` // declared type; empty triggers inference
	Value       *Value        `json:"value"`
	Annotations []*Annotation `json:"annotations,omitempty"`
	// Context is the context URL of a top-level property payload
	Context string `json:"context,omitempty"`
}

// NewProperty creates a property with an explicitly declared type
func NewProperty(name, typeName string, value *Value) *Property {
	return &Property{Name: name, Type: typeName, Value: value}
}

// IsNull reports whether the property holds the null value
func (p *Property) IsNull() bool {
	return p.Value == nil || p.Value.Kind == NullValue
}

// Complex is a structured value with its own properties and, in v4, links
type Complex struct {
	Properties       []*Property `json:"properties"`
	NavigationLinks  []*Link     `json:"navigation_links,omitempty"`
	AssociationLinks []*Link     `json:"association_links,omitempty"`
}

// Property returns the named member property
func (c *Complex) Property(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// IsLinked reports whether the complex value carries links
func (c *Complex) IsLinked() bool {
	return len(c.NavigationLinks) > 0 || len(c.AssociationLinks) > 0
}

// Value is the tagged union held by a Property.
// TypeName is the resolved type, which may have been inferred.
type Value struct {
	Kind       ValueKind   `json:"kind"`
	TypeName   string      `json:"type_name,omitempty"`
	Primitive  interface{} `json:"primitive,omitempty"`
	Enum       string      `json:"enum,omitempty"`
	Complex    *Complex    `json:"complex,omitempty"`
	Collection []*Value    `json:"collection,omitempty"`
	Geo        *Geospatial `json:"geo,omitempty"`
}

// NewNull returns the null value
func NewNull() *Value {
	return &Value{Kind: NullValue}
}

// NewPrimitive wraps a Go scalar as a primitive of the given Edm type
func NewPrimitive(typeName string, v interface{}) *Value {
	return &Value{Kind: PrimitiveValue, TypeName: typeName, Primitive: v}
}

// NewEnum creates an enum value from its symbolic member name
func NewEnum(typeName, symbol string) *Value {
	return &Value{Kind: EnumValue, TypeName: typeName, Enum: symbol}
}

// NewComplex creates a complex value from ordered properties
func NewComplex(typeName string, props ...*Property) *Value {
	return &Value{Kind: ComplexValue, TypeName: typeName, Complex: &Complex{Properties: props}}
}

// NewCollection creates a collection value; typeName is Collection(X) or empty
func NewCollection(typeName string, items ...*Value) *Value {
	if items == nil {
		items = []*Value{}
	}
	return &Value{Kind: CollectionValue, TypeName: typeName, Collection: items}
}

// NewGeospatial wraps a geospatial value
func NewGeospatial(g *Geospatial) *Value {
	return &Value{Kind: GeospatialValue, TypeName: g.TypeName(), Geo: g}
}

// IsNull reports whether v is nil or the null value
func (v *Value) IsNull() bool {
	return v == nil || v.Kind == NullValue
}

// ElementKind returns the uniform item kind of a collection, NullValue when empty
func (v *Value) ElementKind() ValueKind {
	for _, item := range v.Collection {
		if !item.IsNull() {
			return item.Kind
		}
	}
	return NullValue
}

// String renders the value for diagnostics
func (v *Value) String() string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case PrimitiveValue:
		return fmt.Sprintf("%v", v.Primitive)
	case EnumValue:
		return v.Enum
	case ComplexValue:
		return fmt.Sprintf("%s{%d properties}", v.TypeName, len(v.Complex.Properties))
	case CollectionValue:
		return fmt.Sprintf("%s[%d]", v.TypeName, len(v.Collection))
	case GeospatialValue:
		return v.Geo.TypeName()
	default:
		return "null"
	}
}
