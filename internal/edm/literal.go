package edm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/utils"
)

var errNoLiteral = errors.New("type has no literal form")

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

// ParseLiteral converts literal text into the Go value of kind.
// Failures are *models.MalformedValueError.
func ParseLiteral(kind PrimitiveKind, text string, facets Facets) (interface{}, error) {
	v, err := parseLiteral(kind, text, facets)
	if err != nil {
		return nil, models.NewMalformedValue(text, kind.TypeName(), err)
	}
	return v, nil
}

func parseLiteral(kind PrimitiveKind, text string, facets Facets) (interface{}, error) {
	switch kind {
	case KindString, KindStream:
		return text, nil
	case KindBoolean:
		switch strings.TrimSpace(text) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, errors.New("expected true or false")
	case KindByte:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 8)
		return uint8(n), err
	case KindSByte:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 8)
		return int8(n), err
	case KindInt16:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 16)
		return int16(n), err
	case KindInt32:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		return int32(n), err
	case KindInt64:
		return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	case KindSingle:
		f, err := utils.ParseFloat(text, 32)
		return float32(f), err
	case KindDouble:
		return utils.ParseFloat(text, 64)
	case KindDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, err
		}
		if err := checkPrecision(d, facets); err != nil {
			return nil, err
		}
		return d, nil
	case KindGuid:
		return uuid.Parse(strings.TrimSpace(text))
	case KindBinary:
		return decodeBinary(text)
	case KindDateTime:
		return parseDateTime(text)
	case KindDateTimeOffset:
		return parseDateTimeOffset(text)
	case KindDate:
		return time.Parse("2006-01-02", strings.TrimSpace(text))
	case KindTimeOfDay:
		return parseTimeOfDay(strings.TrimSpace(text))
	case KindTime, KindDuration:
		return parseISODuration(strings.TrimSpace(text))
	default:
		return nil, errNoLiteral
	}
}

func decodeBinary(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(text); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}

func parseDateTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, ok := utils.LegacyDateToTime(text); ok {
		return t.UTC(), nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid date-time")
}

func parseDateTimeOffset(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, ok := utils.LegacyDateToTime(text); ok {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t, nil
	}
	// v3 servers sometimes omit the offset; read as UTC
	if t, err := parseDateTime(text); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("invalid date-time offset")
}

func checkPrecision(d decimal.Decimal, facets Facets) error {
	if facets.Precision == nil {
		return nil
	}
	digits := len(strings.TrimLeft(d.Coefficient().String(), "-"))
	if digits > *facets.Precision {
		return fmt.Errorf("%d digits exceed precision %d", digits, *facets.Precision)
	}
	return nil
}

// FormatLiteral renders v as the canonical literal of kind.
// String inputs are parsed under kind first so the output is always canonical.
func FormatLiteral(kind PrimitiveKind, v interface{}, facets Facets) (string, error) {
	s, err := formatLiteral(kind, v, facets)
	if err != nil {
		return "", models.NewMalformedValue(fmt.Sprintf("%v", v), kind.TypeName(), err)
	}
	return s, nil
}

func formatLiteral(kind PrimitiveKind, v interface{}, facets Facets) (string, error) {
	if s, ok := v.(string); ok && kind != KindString && kind != KindStream {
		parsed, err := parseLiteral(kind, s, facets)
		if err != nil {
			return "", err
		}
		v = parsed
	}

	switch kind {
	case KindString, KindStream:
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		if facets.MaxLength != nil && utf8.RuneCountInString(s) > *facets.MaxLength {
			return "", fmt.Errorf("length exceeds max length %d", *facets.MaxLength)
		}
		return s, nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		return strconv.FormatBool(b), nil
	case KindByte, KindSByte, KindInt16, KindInt32, KindInt64:
		return formatIntegral(kind, v)
	case KindSingle, KindDouble:
		return formatFloating(kind, v)
	case KindDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return "", err
		}
		if err := checkPrecision(d, facets); err != nil {
			return "", err
		}
		if facets.Scale != nil {
			return d.StringFixed(int32(*facets.Scale)), nil
		}
		return d.String(), nil
	case KindGuid:
		switch g := v.(type) {
		case uuid.UUID:
			return g.String(), nil
		case [16]byte:
			return uuid.UUID(g).String(), nil
		}
		return "", typeMismatch(kind, v)
	case KindBinary:
		b, ok := v.([]byte)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case KindDateTime, KindDateTimeOffset, KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		return formatTime(kind, t, facets.Precision), nil
	case KindTimeOfDay:
		d, ok := v.(time.Duration)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		return formatTimeOfDay(d, facets.Precision)
	case KindTime, KindDuration:
		d, ok := v.(time.Duration)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		return formatISODuration(d), nil
	default:
		return "", errNoLiteral
	}
}

func typeMismatch(kind PrimitiveKind, v interface{}) error {
	return fmt.Errorf("cannot format %T as %s", v, kind)
}

var integralRanges = map[PrimitiveKind][2]int64{
	KindByte:  {0, math.MaxUint8},
	KindSByte: {math.MinInt8, math.MaxInt8},
	KindInt16: {math.MinInt16, math.MaxInt16},
	KindInt32: {math.MinInt32, math.MaxInt32},
	KindInt64: {math.MinInt64, math.MaxInt64},
}

func formatIntegral(kind PrimitiveKind, v interface{}) (string, error) {
	var n int64
	switch x := v.(type) {
	case uint64:
		if x > math.MaxInt64 {
			return "", fmt.Errorf("%d out of range for %s", x, kind)
		}
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return "", fmt.Errorf("%d out of range for %s", x, kind)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return "", fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case decimal.Decimal:
		if !x.IsInteger() {
			return "", fmt.Errorf("%s is not an integer", x)
		}
		n = x.IntPart()
	default:
		s, ok := utils.ConvertNumericToString(v)
		if !ok {
			return "", typeMismatch(kind, v)
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", fmt.Errorf("%v is not an integer", v)
		}
		n = parsed
	}

	r := integralRanges[kind]
	if n < r[0] || n > r[1] {
		return "", fmt.Errorf("%d out of range for %s", n, kind)
	}
	return strconv.FormatInt(n, 10), nil
}

func formatFloating(kind PrimitiveKind, v interface{}) (string, error) {
	bits := 64
	if kind == KindSingle {
		bits = 32
	}
	switch x := v.(type) {
	case float32:
		return utils.FormatFloat(float64(x), 32), nil
	case float64:
		return utils.FormatFloat(x, bits), nil
	case decimal.Decimal:
		f, _ := x.Float64()
		return utils.FormatFloat(f, bits), nil
	}
	s, ok := utils.ConvertNumericToString(v)
	if !ok {
		return "", typeMismatch(kind, v)
	}
	return s, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, errors.New("nil decimal")
		}
		return *x, nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, fmt.Errorf("%v has no decimal form", x)
		}
		return decimal.NewFromFloat(x), nil
	}
	s, ok := utils.ConvertNumericToString(v)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("cannot format %T as %s", v, KindDecimal)
	}
	return decimal.NewFromString(s)
}

func formatTime(kind PrimitiveKind, t time.Time, precision *int) string {
	switch kind {
	case KindDate:
		return t.Format("2006-01-02")
	case KindDateTime:
		return t.UTC().Format("2006-01-02T15:04:05" + fractionLayout(precision))
	default:
		return t.Format("2006-01-02T15:04:05" + fractionLayout(precision) + "Z07:00")
	}
}

// fractionLayout trims trailing zeros unless a precision facet fixes the digit count
func fractionLayout(precision *int) string {
	if precision == nil {
		return ".999999999"
	}
	p := *precision
	if p <= 0 {
		return ""
	}
	if p > 9 {
		p = 9
	}
	return "." + strings.Repeat("0", p)
}
