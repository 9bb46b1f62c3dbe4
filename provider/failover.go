package provider

import (
	"context"
	"log/slog"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/metrics"
	"github.com/angas/spotwindow/types"
)

// Failover answers every call from the primary provider and falls back to the secondary
// when the primary fails. The decision is made per call, nothing is remembered between calls.
type Failover struct {
	logger    *slog.Logger
	clock     hours.Clock
	primary   types.PriceProvider
	secondary types.PriceProvider
}

func NewFailover(logger *slog.Logger, clock hours.Clock, primary, secondary types.PriceProvider) *Failover {
	return &Failover{logger: logger, clock: clock, primary: primary, secondary: secondary}
}

// attempt runs op on the primary, then on the secondary. When both fail the primary error is returned.
func attempt[T any](ctx context.Context, f *Failover, name string, op func(types.PriceProvider) (T, error)) (T, error) {
	res, err := op(f.primary)
	if err == nil {
		return res, nil
	}
	f.logger.Warn("primary price provider failed, trying secondary",
		slog.String("operation", name),
		slog.Any("error", err))

	if ctx.Err() != nil {
		return res, err
	}

	fallback, fbErr := op(f.secondary)
	metrics.RecordFallback(name, fbErr == nil)
	if fbErr != nil {
		f.logger.Error("secondary price provider failed",
			slog.String("operation", name),
			slog.Any("error", fbErr))
		return res, err
	}
	return fallback, nil
}

func (f *Failover) GetCurrentPrice(ctx context.Context) (types.PriceInterval, error) {
	return attempt(ctx, f, "current", func(p types.PriceProvider) (types.PriceInterval, error) {
		return p.GetCurrentPrice(ctx)
	})
}

func (f *Failover) GetTodayPrices(ctx context.Context) ([]types.PriceInterval, error) {
	return attempt(ctx, f, "today", func(p types.PriceProvider) ([]types.PriceInterval, error) {
		return p.GetTodayPrices(ctx)
	})
}

// GetTomorrowPrices never fails, unpublished or unreachable data is an empty slice.
func (f *Failover) GetTomorrowPrices(ctx context.Context) ([]types.PriceInterval, error) {
	prices, err := attempt(ctx, f, "tomorrow", func(p types.PriceProvider) ([]types.PriceInterval, error) {
		return p.GetTomorrowPrices(ctx)
	})
	if err != nil {
		f.logger.Info("tomorrow's prices not available", slog.Any("error", err))
		return []types.PriceInterval{}, nil
	}
	return prices, nil
}

func (f *Failover) GetFuturePrices(ctx context.Context) ([]types.PriceInterval, error) {
	return futurePrices(ctx, f, f.clock.Now())
}
