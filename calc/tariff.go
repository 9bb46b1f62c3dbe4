package calc

import (
	"github.com/angas/spotwindow/convert"
	"github.com/shopspring/decimal"
)

// Tariff holds the fixed consumer surcharges in cents/kWh added on top of the spot price.
type Tariff struct {
	ExchangeCents decimal.Decimal
	MarginCents   decimal.Decimal
}

func DefaultTariff() Tariff {
	return NewTariff(6.7, 0.5)
}

func NewTariff(exchangeCents, marginCents float64) Tariff {
	return Tariff{
		ExchangeCents: decimal.NewFromFloat(exchangeCents),
		MarginCents:   decimal.NewFromFloat(marginCents),
	}
}

func (t Tariff) Total() decimal.Decimal {
	return t.ExchangeCents.Add(t.MarginCents)
}

// AllInCents converts a spot price in EUR/kWh to the consumer price in cents/kWh.
func (t Tariff) AllInCents(spotEurKwh decimal.Decimal) decimal.Decimal {
	return convert.EurToCents(spotEurKwh).Add(t.Total())
}

// Savings compares a candidate window against the baseline, both in cents/kWh.
// A zero baseline yields a zero percentage.
func Savings(baselineCents, candidateCents decimal.Decimal) (amount, percentage float64) {
	diff := baselineCents.Sub(candidateCents)
	amount = convert.Cents2(diff)
	if baselineCents.IsZero() {
		return amount, 0
	}
	return amount, convert.Cents2(diff.Div(baselineCents).Mul(decimal.NewFromInt(100)))
}
