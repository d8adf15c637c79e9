package codec

import (
	"strings"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/edm"
)

// NormalizeTypeName strips a leading '#' and qualifies primitive shorthands
// ("#Int32" -> "Edm.Int32", "#Collection(String)" -> "Collection(Edm.String)").
func NormalizeTypeName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	if name == "" {
		return ""
	}
	if item := constants.CollectionItemType(name); item != "" {
		return constants.CollectionOf(NormalizeTypeName(item))
	}
	if !strings.Contains(name, ".") && edm.Builtin().PrimitiveKindOf(constants.EdmNamespacePrefix+name) != edm.KindUnknown {
		return constants.EdmNamespacePrefix + name
	}
	return name
}

// WireTypeName renders a qualified type name the way the given version writes it.
// v4 writes Edm primitives in short form ("#Int32") and others with a '#'.
func WireTypeName(name string, v constants.Version) string {
	if name == "" || !v.IsV4() {
		return name
	}
	return "#" + shortName(name)
}

func shortName(name string) string {
	if item := constants.CollectionItemType(name); item != "" {
		return constants.CollectionOf(shortName(item))
	}
	return strings.TrimPrefix(name, constants.EdmNamespacePrefix)
}

// TypeKind classifies a declared type name against the resolver
type TypeKind int

// Type classifications
const (
	TypeUnknown TypeKind = iota
	TypePrimitive
	TypeGeospatial
	TypeEnum
	TypeCollection
	TypeStructured
)

// Classify resolves the category of a qualified type name. Non-Edm names the
// resolver does not know are structured unless it reports them as enums.
func Classify(r edm.Resolver, typeName string) TypeKind {
	if typeName == "" {
		return TypeUnknown
	}
	if constants.IsCollectionType(typeName) {
		return TypeCollection
	}
	if r.IsGeospatial(typeName) {
		return TypeGeospatial
	}
	if r.PrimitiveKindOf(typeName) != edm.KindUnknown {
		return TypePrimitive
	}
	if er, ok := r.(edm.EnumResolver); ok && er.IsEnum(typeName) {
		return TypeEnum
	}
	return TypeStructured
}
