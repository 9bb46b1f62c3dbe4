package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/metrics"
	"github.com/angas/spotwindow/types"
)

const ingestionTimeout = 30 * time.Second

// Ingestion copies upstream prices into the price store. Feeds are tried in order,
// the first one that answers wins. A feed without prices for a range covering today
// does not count as an answer.
type Ingestion struct {
	logger *slog.Logger
	clock  hours.Clock
	feeds  []types.PriceFeed
	store  types.PriceStore
}

func NewIngestion(logger *slog.Logger, clock hours.Clock, store types.PriceStore, feeds ...types.PriceFeed) *Ingestion {
	if len(feeds) == 0 {
		panic("no price feeds")
	}
	return &Ingestion{logger: logger, clock: clock, feeds: feeds, store: store}
}

// Run fetches the market days at the given offsets from today (0 today, 1 tomorrow) and
// upserts them. It returns the number of stored intervals.
func (i *Ingestion) Run(ctx context.Context, dayOffsets ...int) (int, error) {
	if len(dayOffsets) == 0 {
		dayOffsets = []int{0, 1}
	}
	now := i.clock.Now()
	start, _ := hours.DayRange(now, dayOffsets[0])
	_, end := hours.DayRange(now, dayOffsets[len(dayOffsets)-1])

	coversToday := !now.Before(start) && now.Before(end)

	var errs []error
	answered := false
	for _, feed := range i.feeds {
		prices, err := feed.FetchRange(ctx, start, end)
		if err != nil {
			i.logger.Warn("price feed failed", slog.String("feed", fmt.Sprintf("%T", feed)), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if len(prices) == 0 && coversToday {
			i.logger.Warn("price feed has no prices for today", slog.String("feed", fmt.Sprintf("%T", feed)))
			answered = true
			continue
		}

		n, err := i.store.UpsertPrices(ctx, prices)
		if err != nil {
			return 0, fmt.Errorf("store prices: %w", err)
		}
		metrics.AddIngested(n)
		return n, nil
	}

	if answered {
		return 0, nil
	}
	return 0, fmt.Errorf("all price feeds failed: %w", errors.Join(errs...))
}

// HasToday reports whether the store already holds prices for the current market day.
func (i *Ingestion) HasToday(ctx context.Context) (bool, error) {
	from, to := hours.DayRange(i.clock.Now(), 0)
	prices, err := i.store.QueryRange(ctx, from, to)
	if err != nil {
		return false, err
	}
	return len(prices) > 0, nil
}

func NewPriceIngestionTask(logger *slog.Logger, ing *Ingestion) func() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ok, err := ing.HasToday(ctx); err != nil || !ok {
		logger.Info("need an immediate update of electricity prices")
		runPriceIngestionTask(logger, ing)
	} else {
		logger.Debug("no need for immediate update of electricity prices")
	}

	return func() { runPriceIngestionTask(logger, ing) }
}

func runPriceIngestionTask(logger *slog.Logger, ing *Ingestion) {
	logger.Debug("running price ingestion task...")
	ctx, cancel := context.WithTimeout(context.Background(), ingestionTimeout)
	defer cancel()

	n, err := ing.Run(ctx, 0, 1)
	metrics.RecordTaskRun("price_ingestion", err == nil)
	if err != nil {
		logger.Error("price ingestion task error", slog.Any("error", err))
		return
	}

	logger.Info("price ingestion task done", slog.Int("noOfIntervalsUpdated", n))
}

// NewTomorrowPriceTask fetches the next market day once the day-ahead auction is published.
// Nothing published yet is expected around noon and not an error.
func NewTomorrowPriceTask(logger *slog.Logger, ing *Ingestion) func() {
	return func() {
		logger.Debug("running tomorrow price task...")
		ctx, cancel := context.WithTimeout(context.Background(), ingestionTimeout)
		defer cancel()

		n, err := ing.Run(ctx, 1)
		metrics.RecordTaskRun("tomorrow_price", err == nil)
		if err != nil {
			logger.Error("tomorrow price task error", slog.Any("error", err))
			return
		}
		if n == 0 {
			logger.Info("tomorrow's prices are not published yet")
			return
		}
		logger.Info("tomorrow price task done", slog.Int("noOfIntervalsUpdated", n))
	}
}
