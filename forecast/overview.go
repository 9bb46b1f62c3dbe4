package forecast

import (
	"context"
	"fmt"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/convert"
	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

func (a *Assembler) Overview(ctx context.Context) (Overview, error) {
	cur, err := a.provider.GetCurrentPrice(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("current price: %w", err)
	}
	future, err := a.provider.GetFuturePrices(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("future prices: %w", err)
	}

	now := a.clock.Now()
	limit := now.Add(nearTermWindow)
	next := slice.Filter(future, func(iv types.PriceInterval) bool { return iv.Start.Before(limit) })

	return Overview{
		Current:     a.Current(cur),
		Next12Hours: a.Summary(next),
		Future:      a.Summary(future),
	}, nil
}

func (a *Assembler) Current(iv types.PriceInterval) CurrentPrice {
	cents := convert.Cents2(a.tariff.AllInCents(iv.Price))
	return CurrentPrice{Price: cents, PriceCategory: calc.Categorize(cents)}
}

// Summary averages the all-in prices of the intervals. No intervals gives a zero average.
func (a *Assembler) Summary(intervals []types.PriceInterval) PriceSummary {
	if len(intervals) == 0 {
		a.logger.Warn("no prices available for summary")
		return PriceSummary{PriceAvg: 0, PriceCategory: calc.Categorize(0), PricePoints: []PricePoint{}}
	}

	sum := decimal.Zero
	points := make([]PricePoint, len(intervals))
	for i, iv := range intervals {
		cents := a.tariff.AllInCents(iv.Price)
		sum = sum.Add(cents)
		points[i] = PricePoint{StartTime: iv.Start.UTC(), EndTime: iv.End.UTC(), Price: convert.Cents2(cents)}
	}

	avg := convert.Cents2(sum.Div(decimal.NewFromInt(int64(len(intervals)))))
	return PriceSummary{PriceAvg: avg, PriceCategory: calc.Categorize(avg), PricePoints: points}
}

