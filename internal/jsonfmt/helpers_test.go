package jsonfmt

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func mustInf() float64 {
	return math.Inf(1)
}
