package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/edm"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/utils"
)

// ParseScalar decodes literal text under an optional declared type.
// Without a type the text is kept as Edm.String; non-primitive types with a scalar
// representation are enums.
func (b *Base) ParseScalar(typeName, text string) (*models.Value, error) {
	if typeName == "" {
		return models.NewPrimitive(constants.EdmString, text), nil
	}
	switch Classify(b.Opts.Resolver, typeName) {
	case TypePrimitive:
		kind := b.Opts.Resolver.PrimitiveKindOf(typeName)
		v, err := edm.ParseLiteral(kind, text, b.Opts.Resolver.FacetsOf(typeName))
		if err != nil {
			return nil, retype(err, typeName)
		}
		return models.NewPrimitive(typeName, v), nil
	case TypeEnum, TypeStructured:
		return models.NewEnum(typeName, text), nil
	}
	return nil, models.NewMalformedValue(text, typeName, errors.New("type has no scalar representation"))
}

// retype points a MalformedValueError at the declared type instead of its primitive base
func retype(err error, typeName string) error {
	var mv *models.MalformedValueError
	if errors.As(err, &mv) {
		mv.Type = typeName
	}
	return err
}

// FormatScalar renders a primitive or enum value. The returned kind tells the
// JSON writer whether the literal is a bare number or boolean.
func (b *Base) FormatScalar(v *models.Value) (string, edm.PrimitiveKind, error) {
	switch v.Kind {
	case models.EnumValue:
		return v.Enum, edm.KindString, nil
	case models.PrimitiveValue:
		typeName := v.TypeName
		kind := edm.KindUnknown
		if typeName != "" {
			kind = b.Opts.Resolver.PrimitiveKindOf(typeName)
		}
		if kind == edm.KindUnknown {
			kind = GoKind(v.Primitive)
			if typeName == "" {
				typeName = kind.TypeName()
			}
		}
		text, err := edm.FormatLiteral(kind, v.Primitive, b.Opts.Resolver.FacetsOf(typeName))
		if err != nil {
			return "", kind, retype(err, typeName)
		}
		return text, kind, nil
	}
	return "", edm.KindUnknown, fmt.Errorf("%w: %s value is not scalar", models.ErrMalformedValue, v.Kind)
}

// LegacyDateType returns the type a v3 reader gives an untyped /Date(ms)/
// string, "" for any other string
func (b *Base) LegacyDateType(text string) string {
	if b.Version().IsV4() || !utils.IsODataLegacyDate(text) {
		return ""
	}
	if _, offset, _ := utils.ParseODataLegacyDate(text); offset != "" {
		return constants.EdmDateTimeOffset
	}
	return constants.EdmDateTime
}

// FormatLegacyDate renders a date-time primitive as /Date(ms)/ when LegacyDates is set on v3
func (b *Base) FormatLegacyDate(v *models.Value, kind edm.PrimitiveKind) (string, bool) {
	if !b.Opts.LegacyDates || b.Version().IsV4() || v.Kind != models.PrimitiveValue {
		return "", false
	}
	if kind != edm.KindDateTime && kind != edm.KindDateTimeOffset {
		return "", false
	}
	t, ok := v.Primitive.(time.Time)
	if !ok {
		return "", false
	}
	return utils.FormatODataLegacyDate(t, kind == edm.KindDateTimeOffset), true
}

// GoKind maps the Go type of a primitive to its natural Edm kind, Edm.String when unknown
func GoKind(v interface{}) edm.PrimitiveKind {
	switch x := v.(type) {
	case bool:
		return edm.KindBoolean
	case uint8:
		return edm.KindByte
	case int8:
		return edm.KindSByte
	case int16:
		return edm.KindInt16
	case int32:
		return edm.KindInt32
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return edm.KindInt32
		}
		return edm.KindInt64
	case int64, uint16, uint32, uint, uint64:
		return edm.KindInt64
	case float32:
		return edm.KindSingle
	case float64:
		return edm.KindDouble
	case decimal.Decimal, *decimal.Decimal:
		return edm.KindDecimal
	case uuid.UUID:
		return edm.KindGuid
	case []byte:
		return edm.KindBinary
	case time.Time:
		return edm.KindDateTimeOffset
	case time.Duration:
		return edm.KindDuration
	default:
		return edm.KindString
	}
}

// InferNumber types an untyped JSON number: integers become Int32, Int64 or
// Decimal by magnitude; anything with a fraction or exponent becomes Double.
func InferNumber(text string) (*models.Value, error) {
	if utils.IsIntegerLiteral(text) {
		if n, err := strconv.ParseInt(text, 10, 32); err == nil {
			return models.NewPrimitive(constants.EdmInt32, int32(n)), nil
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return models.NewPrimitive(constants.EdmInt64, n), nil
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, models.NewMalformedValue(text, constants.EdmDecimal, err)
		}
		return models.NewPrimitive(constants.EdmDecimal, d), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		d, derr := decimal.NewFromString(text)
		if derr != nil {
			return nil, models.NewMalformedValue(text, constants.EdmDouble, err)
		}
		return models.NewPrimitive(constants.EdmDecimal, d), nil
	}
	return models.NewPrimitive(constants.EdmDouble, f), nil
}

// CheckHomogeneous verifies that every non-null item has the kind of the first non-null one
func CheckHomogeneous(items []*models.Value) error {
	first := models.NullValue
	for i, item := range items {
		if item.IsNull() {
			continue
		}
		if first == models.NullValue {
			first = item.Kind
			continue
		}
		if item.Kind != first {
			return fmt.Errorf("%w: item %d is %s, expected %s", models.ErrHeterogeneousCollection, i, item.Kind, first)
		}
	}
	return nil
}

// ItemType returns the element type of a collection type name, or ""
func ItemType(typeName string) string {
	return constants.CollectionItemType(typeName)
}

// CollectionType derives Collection(X) from the first typed item when no type was declared
func CollectionType(declared string, items []*models.Value) string {
	if declared != "" {
		return declared
	}
	for _, item := range items {
		if !item.IsNull() && item.TypeName != "" {
			return constants.CollectionOf(item.TypeName)
		}
	}
	return ""
}
