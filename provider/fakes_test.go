package provider

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	current  types.PriceInterval
	today    []types.PriceInterval
	tomorrow []types.PriceInterval
	err      error
	tmrwErr  error
}

func (f *fakeProvider) hit(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *fakeProvider) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) GetCurrentPrice(context.Context) (types.PriceInterval, error) {
	f.hit("current")
	return f.current, f.err
}

func (f *fakeProvider) GetTodayPrices(context.Context) ([]types.PriceInterval, error) {
	f.hit("today")
	if f.err != nil {
		return nil, f.err
	}
	return f.today, nil
}

func (f *fakeProvider) GetTomorrowPrices(context.Context) ([]types.PriceInterval, error) {
	f.hit("tomorrow")
	if f.tmrwErr != nil {
		return nil, f.tmrwErr
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tomorrow, nil
}

func (f *fakeProvider) GetFuturePrices(ctx context.Context) ([]types.PriceInterval, error) {
	f.hit("future")
	return nil, f.err
}

type fakeStore struct {
	prices []types.PriceInterval
	err    error
}

func (s *fakeStore) QueryRange(_ context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	if s.err != nil {
		return nil, s.err
	}
	var res []types.PriceInterval
	for _, p := range s.prices {
		if !p.Start.Before(from) && p.Start.Before(to) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *fakeStore) UpsertPrices(_ context.Context, prices []types.PriceInterval) (int, error) {
	s.prices = append(s.prices, prices...)
	return len(prices), s.err
}

type fakeFeed struct {
	prices   []types.PriceInterval
	err      error
	deadline bool
}

func (f *fakeFeed) FetchRange(ctx context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	var res []types.PriceInterval
	for _, p := range f.prices {
		if !p.Start.Before(from) && p.Start.Before(to) {
			res = append(res, p)
		}
	}
	return res, nil
}

type fakeCurrentFeed struct {
	fakeFeed
	current types.PriceInterval
	calls   int
}

func (f *fakeCurrentFeed) Current(ctx context.Context) (types.PriceInterval, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return types.PriceInterval{}, f.err
	}
	return f.current, nil
}

// quarters builds n consecutive 15 minute intervals starting at start, all at price.
func quarters(start time.Time, n int, price float64) []types.PriceInterval {
	res := make([]types.PriceInterval, n)
	for i := range res {
		s := start.Add(time.Duration(i) * 15 * time.Minute)
		res[i] = types.PriceInterval{Start: s, End: s.Add(15 * time.Minute), Price: decimal.NewFromFloat(price)}
	}
	return res
}
