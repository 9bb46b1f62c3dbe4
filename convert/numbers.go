package convert

import "github.com/shopspring/decimal"

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
	mwhKwh  = decimal.NewFromInt(1000)
)

// RoundHalfUp rounds towards positive infinity on ties, -1.005 becomes -1.00 and 1.005 becomes 1.01.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// Cents2 rounds half-up to two decimals and returns the float used in API payloads.
func Cents2(d decimal.Decimal) float64 {
	return RoundHalfUp(d, 2).InexactFloat64()
}

func EurToCents(eur decimal.Decimal) decimal.Decimal {
	return eur.Mul(hundred)
}

func MwhToKwh(perMwh decimal.Decimal) decimal.Decimal {
	return perMwh.Div(mwhKwh)
}
