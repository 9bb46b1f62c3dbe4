package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceInterval is a spot price for [Start, End). Price is in EUR/kWh including VAT
// but excluding the consumer tariffs.
type PriceInterval struct {
	Start time.Time
	End   time.Time
	Price decimal.Decimal
}

func (p PriceInterval) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Contains reports whether t is within [Start, End).
func (p PriceInterval) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

type PriceProvider interface {
	GetCurrentPrice(ctx context.Context) (PriceInterval, error)
	GetTodayPrices(ctx context.Context) ([]PriceInterval, error)
	// Tomorrow's prices are published once a day, an empty slice is a normal answer.
	GetTomorrowPrices(ctx context.Context) ([]PriceInterval, error)
	GetFuturePrices(ctx context.Context) ([]PriceInterval, error)
}

type PriceStore interface {
	QueryRange(ctx context.Context, from, to time.Time) ([]PriceInterval, error)
	UpsertPrices(ctx context.Context, prices []PriceInterval) (int, error)
}

// PriceFeed is an upstream source of price intervals.
type PriceFeed interface {
	FetchRange(ctx context.Context, start, end time.Time) ([]PriceInterval, error)
}
