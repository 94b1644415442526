package gateway

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyExponents lists the minor-unit exponent of currencies the gateway settles in.
var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

var currencyExponents = map[string]int32{
	"XOF": 0,
	"XAF": 0,
	"GNF": 0,
	"CDF": 2,
	"USD": 2,
	"EUR": 2,
}

func exponent(currency string) int32 {
	if e, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// ToMinorUnits converts a major-unit amount. ok is false when the amount has more
// precision than the currency allows or does not fit in an int64.
func ToMinorUnits(amount decimal.Decimal, currency string) (minor int64, ok bool) {
	shifted := amount.Shift(exponent(currency))
	if !shifted.IsInteger() {
		return 0, false
	}
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, false
	}
	return shifted.IntPart(), true
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -exponent(currency))
}
