package provider

import (
	"context"
	"time"

	"github.com/angas/spotwindow/types"
)

// futurePrices joins today's intervals that have not ended yet with tomorrow's intervals.
// Tomorrow failing is never an error here.
func futurePrices(ctx context.Context, p types.PriceProvider, now time.Time) ([]types.PriceInterval, error) {
	today, err := p.GetTodayPrices(ctx)
	if err != nil {
		return nil, err
	}
	tomorrow, err := p.GetTomorrowPrices(ctx)
	if err != nil {
		tomorrow = nil
	}
	return Future(today, tomorrow, now), nil
}

// Future returns the intervals of today and tomorrow whose end is after now, in order.
func Future(today, tomorrow []types.PriceInterval, now time.Time) []types.PriceInterval {
	res := make([]types.PriceInterval, 0, len(today)+len(tomorrow))
	for _, iv := range today {
		if iv.End.After(now) {
			res = append(res, iv)
		}
	}
	for _, iv := range tomorrow {
		if iv.End.After(now) {
			res = append(res, iv)
		}
	}
	return res
}
