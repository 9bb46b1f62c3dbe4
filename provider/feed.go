package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types"
)

const defaultFeedTimeout = 10 * time.Second

// FeedProvider answers directly from a live upstream feed.
type FeedProvider struct {
	logger  *slog.Logger
	clock   hours.Clock
	feed    types.PriceFeed
	timeout time.Duration
}

func NewFeedProvider(logger *slog.Logger, clock hours.Clock, feed types.PriceFeed) *FeedProvider {
	return &FeedProvider{logger: logger, clock: clock, feed: feed, timeout: defaultFeedTimeout}
}

// currentFeed is implemented by feeds with a dedicated endpoint for the running interval.
type currentFeed interface {
	Current(ctx context.Context) (types.PriceInterval, error)
}

func (p *FeedProvider) GetCurrentPrice(ctx context.Context) (types.PriceInterval, error) {
	if cf, ok := p.feed.(currentFeed); ok {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		iv, err := cf.Current(ctx)
		if err != nil {
			return types.PriceInterval{}, fmt.Errorf("current price from feed: %w", err)
		}
		return iv, nil
	}

	now := p.clock.Now()
	prices, err := p.fetch(ctx, hours.TopOfHour(now), hours.TopOfHour(now).Add(time.Hour))
	if err != nil {
		return types.PriceInterval{}, err
	}
	if iv, ok := slice.Find(prices, func(iv types.PriceInterval) bool { return iv.Contains(now) }); ok {
		return iv, nil
	}
	return types.PriceInterval{}, fmt.Errorf("current price from feed: %w", types.ErrNotFound)
}

func (p *FeedProvider) GetTodayPrices(ctx context.Context) ([]types.PriceInterval, error) {
	from, to := hours.DayRange(p.clock.Now(), 0)
	prices, err := p.fetch(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices for today from feed: %w", types.ErrNotFound)
	}
	return prices, nil
}

func (p *FeedProvider) GetTomorrowPrices(ctx context.Context) ([]types.PriceInterval, error) {
	from, to := hours.DayRange(p.clock.Now(), 1)
	prices, err := p.fetch(ctx, from, to)
	if err != nil {
		p.logger.Info("tomorrow's prices not available from feed", slog.Any("error", err))
		return []types.PriceInterval{}, nil
	}
	return prices, nil
}

func (p *FeedProvider) GetFuturePrices(ctx context.Context) ([]types.PriceInterval, error) {
	return futurePrices(ctx, p, p.clock.Now())
}

func (p *FeedProvider) fetch(ctx context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prices, err := p.feed.FetchRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch %s - %s: %w", hours.FormatMarket(from), hours.FormatMarket(to), err)
	}
	return prices, nil
}
