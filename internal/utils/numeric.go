package utils

import (
	"math"
	"strconv"
	"strings"
)

// Special floating point literals
const (
	LiteralINF    = "INF"
	LiteralNegINF = "-INF"
	LiteralNaN    = "NaN"
)

// ConvertNumericToString renders any Go numeric as its literal text.
// ok is false when value is not a Go numeric type.
func ConvertNumericToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return FormatFloat(float64(v), 32), true
	case float64:
		return FormatFloat(v, 64), true
	default:
		return "", false
	}
}

// FormatFloat renders a float with the shortest round-tripping text, using INF/-INF/NaN for specials
func FormatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return LiteralNaN
	case math.IsInf(f, 1):
		return LiteralINF
	case math.IsInf(f, -1):
		return LiteralNegINF
	}
	return strconv.FormatFloat(f, 'G', -1, bitSize)
}

// ParseFloat parses a float literal including INF/-INF/NaN
func ParseFloat(s string, bitSize int) (float64, error) {
	switch s {
	case LiteralNaN:
		return math.NaN(), nil
	case LiteralINF, "Infinity":
		return math.Inf(1), nil
	case LiteralNegINF, "-Infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), bitSize)
}

// IsSpecialFloat reports whether s is one of INF, -INF or NaN
func IsSpecialFloat(s string) bool {
	return s == LiteralINF || s == LiteralNegINF || s == LiteralNaN
}

// IsIntegerLiteral reports whether s is an optionally signed run of digits
func IsIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
