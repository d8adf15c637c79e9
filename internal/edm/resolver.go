package edm

import (
	"fmt"
	"sync"
)

// Facets are the formatting facets of a type. Nil fields take the type's defaults.
type Facets struct {
	Precision *int
	Scale     *int
	MaxLength *int
}

// Resolver answers type questions the codecs cannot answer from the payload alone.
// Implementations must be safe for concurrent reads.
type Resolver interface {
	PrimitiveKindOf(typeName string) PrimitiveKind
	IsGeospatial(typeName string) bool
	FacetsOf(typeName string) Facets
}

// EnumResolver is implemented by resolvers that know enum types
type EnumResolver interface {
	IsEnum(typeName string) bool
}

type builtin struct{}

// Builtin returns a resolver that knows only the Edm namespace
func Builtin() Resolver {
	return builtin{}
}

func (builtin) PrimitiveKindOf(typeName string) PrimitiveKind {
	return builtinKind(typeName)
}

func (builtin) IsGeospatial(typeName string) bool {
	return builtinKind(typeName).IsGeospatial()
}

func (builtin) FacetsOf(string) Facets {
	return Facets{}
}

// TypeDefinition is a caller-defined type over a primitive underlying type
type TypeDefinition struct {
	Name           string
	UnderlyingType string
	Facets         Facets
}

// Registry is a Resolver for service-specific type definitions and enums.
// Names it does not know fall back to the built-in Edm resolver.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]TypeDefinition
	enums  map[string]struct{}
	facets map[string]Facets
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		defs:   make(map[string]TypeDefinition),
		enums:  make(map[string]struct{}),
		facets: make(map[string]Facets),
	}
}

// DefineType registers a type definition; the underlying type must be a built-in primitive
func (r *Registry) DefineType(def TypeDefinition) error {
	if builtinKind(def.UnderlyingType) == KindUnknown {
		return fmt.Errorf("type definition %s: underlying type %q is not an Edm primitive", def.Name, def.UnderlyingType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// DefineEnum registers an enum type name
func (r *Registry) DefineEnum(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[name] = struct{}{}
}

// SetFacets overrides the facets reported for a type name
func (r *Registry) SetFacets(typeName string, facets Facets) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facets[typeName] = facets
}

// PrimitiveKindOf implements Resolver
func (r *Registry) PrimitiveKindOf(typeName string) PrimitiveKind {
	r.mu.RLock()
	def, ok := r.defs[typeName]
	r.mu.RUnlock()
	if ok {
		return builtinKind(def.UnderlyingType)
	}
	return builtinKind(typeName)
}

// IsGeospatial implements Resolver
func (r *Registry) IsGeospatial(typeName string) bool {
	return r.PrimitiveKindOf(typeName).IsGeospatial()
}

// FacetsOf implements Resolver
func (r *Registry) FacetsOf(typeName string) Facets {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.facets[typeName]; ok {
		return f
	}
	if def, ok := r.defs[typeName]; ok {
		return def.Facets
	}
	return Facets{}
}

// IsEnum implements EnumResolver
func (r *Registry) IsEnum(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.enums[typeName]
	return ok
}

// IntFacet is a helper for building Facets literals
func IntFacet(v int) *int {
	return &v
}
