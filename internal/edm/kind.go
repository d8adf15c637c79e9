package edm

import (
	"strings"

	"github.com/zmcp/odata-codec/internal/constants"
)

// PrimitiveKind is the primitive category of an Edm type
type PrimitiveKind int

// Primitive kinds. KindUnknown means the type is not primitive (entity, complex or enum).
const (
	KindUnknown PrimitiveKind = iota
	KindBinary
	KindBoolean
	KindByte
	KindSByte
	KindInt16
	KindInt32
	KindInt64
	KindSingle
	KindDouble
	KindDecimal
	KindString
	KindGuid
	KindDateTime
	KindDateTimeOffset
	KindTime
	KindDate
	KindTimeOfDay
	KindDuration
	KindStream
	KindGeography
	KindGeometry
)

var kindNames = map[PrimitiveKind]string{
	KindBinary:         constants.EdmBinary,
	KindBoolean:        constants.EdmBoolean,
	KindByte:           constants.EdmByte,
	KindSByte:          constants.EdmSByte,
	KindInt16:          constants.EdmInt16,
	KindInt32:          constants.EdmInt32,
	KindInt64:          constants.EdmInt64,
	KindSingle:         constants.EdmSingle,
	KindDouble:         constants.EdmDouble,
	KindDecimal:        constants.EdmDecimal,
	KindString:         constants.EdmString,
	KindGuid:           constants.EdmGuid,
	KindDateTime:       constants.EdmDateTime,
	KindDateTimeOffset: constants.EdmDateTimeOffset,
	KindTime:           constants.EdmTime,
	KindDate:           constants.EdmDate,
	KindTimeOfDay:      constants.EdmTimeOfDay,
	KindDuration:       constants.EdmDuration,
	KindStream:         constants.EdmStream,
	KindGeography:      constants.EdmGeography,
	KindGeometry:       constants.EdmGeometry,
}

var kindsByName = func() map[string]PrimitiveKind {
	m := make(map[string]PrimitiveKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// TypeName returns the Edm name of the kind, "" for KindUnknown
func (k PrimitiveKind) TypeName() string {
	return kindNames[k]
}

// String implements fmt.Stringer
func (k PrimitiveKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsNumeric reports whether literals of the kind are written as bare numbers
func (k PrimitiveKind) IsNumeric() bool {
	switch k {
	case KindByte, KindSByte, KindInt16, KindInt32, KindInt64, KindSingle, KindDouble, KindDecimal:
		return true
	}
	return false
}

// IsIntegral reports whether the kind is an integer kind
func (k PrimitiveKind) IsIntegral() bool {
	switch k {
	case KindByte, KindSByte, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

// IsFloating reports whether the kind is Single or Double
func (k PrimitiveKind) IsFloating() bool {
	return k == KindSingle || k == KindDouble
}

// IsGeospatial reports whether the kind is Geography or Geometry
func (k PrimitiveKind) IsGeospatial() bool {
	return k == KindGeography || k == KindGeometry
}

// builtinKind resolves Edm.* names, including every Edm.Geography*/Edm.Geometry* shape
func builtinKind(typeName string) PrimitiveKind {
	if k, ok := kindsByName[typeName]; ok {
		return k
	}
	switch {
	case strings.HasPrefix(typeName, constants.EdmGeography):
		if isShapeSuffix(typeName[len(constants.EdmGeography):]) {
			return KindGeography
		}
	case strings.HasPrefix(typeName, constants.EdmGeometry):
		if isShapeSuffix(typeName[len(constants.EdmGeometry):]) {
			return KindGeometry
		}
	}
	return KindUnknown
}

func isShapeSuffix(s string) bool {
	switch s {
	case "Point", "LineString", "Polygon", "MultiPoint", "MultiLineString", "MultiPolygon", "Collection":
		return true
	}
	return false
}

// IsBuiltin reports whether typeName is a name in the Edm namespace
func IsBuiltin(typeName string) bool {
	return strings.HasPrefix(typeName, constants.EdmNamespacePrefix)
}
