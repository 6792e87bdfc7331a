// Package money holds the decimal helpers shared by the pricing engine and
// the stores. All intermediate arithmetic keeps full decimal precision;
// amounts are rounded to the currency's minor unit only at result boundaries.
package money

import "github.com/shopspring/decimal"

// minorUnitPlaces is the number of decimal places kept at rest.
const minorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// Round snaps an amount to the currency's minor unit.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

// Percent returns base * rate / 100 at full precision.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred)
}

// FloorZero clamps negative amounts to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MustParse parses a decimal literal, returning zero on malformed input.
// Intended for seed data and tests where the literal is known good.
func MustParse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
