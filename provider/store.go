package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/types"
)

// StoreProvider reads prices ingested into the local price store.
type StoreProvider struct {
	logger *slog.Logger
	clock  hours.Clock
	store  types.PriceStore
}

func NewStoreProvider(logger *slog.Logger, clock hours.Clock, store types.PriceStore) *StoreProvider {
	return &StoreProvider{logger: logger, clock: clock, store: store}
}

func (p *StoreProvider) GetCurrentPrice(ctx context.Context) (types.PriceInterval, error) {
	now := p.clock.Now()
	// one day back covers any interval length the feeds produce
	prices, err := p.store.QueryRange(ctx, now.AddDate(0, 0, -1), now.Add(1))
	if err != nil {
		return types.PriceInterval{}, fmt.Errorf("query current price: %w: %w", types.ErrUnavailable, err)
	}
	for i := len(prices) - 1; i >= 0; i-- {
		if prices[i].Contains(now) {
			return prices[i], nil
		}
	}
	return types.PriceInterval{}, fmt.Errorf("current price at %s: %w", now.UTC().Format("2006-01-02T15:04:05Z"), types.ErrNotFound)
}

func (p *StoreProvider) GetTodayPrices(ctx context.Context) ([]types.PriceInterval, error) {
	prices, err := p.day(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no stored prices for today: %w", types.ErrNotFound)
	}
	return prices, nil
}

func (p *StoreProvider) GetTomorrowPrices(ctx context.Context) ([]types.PriceInterval, error) {
	prices, err := p.day(ctx, 1)
	if err != nil {
		p.logger.Warn("error fetching tomorrow's prices from store", slog.Any("error", err))
		return []types.PriceInterval{}, nil
	}
	return prices, nil
}

func (p *StoreProvider) GetFuturePrices(ctx context.Context) ([]types.PriceInterval, error) {
	return futurePrices(ctx, p, p.clock.Now())
}

func (p *StoreProvider) day(ctx context.Context, offset int) ([]types.PriceInterval, error) {
	from, to := hours.DayRange(p.clock.Now(), offset)
	prices, err := p.store.QueryRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices %s - %s: %w: %w", hours.FormatMarket(from), hours.FormatMarket(to), types.ErrUnavailable, err)
	}
	return prices, nil
}
