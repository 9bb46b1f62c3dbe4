package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/optimize"
	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types"
	"github.com/angas/spotwindow/types/maybe"
)

// Snapshot is the price data a forecast is computed from.
type Snapshot struct {
	Now      time.Time
	Today    []types.PriceInterval
	Tomorrow []types.PriceInterval
	Future   []types.PriceInterval // today and tomorrow, ending after Now
}

// Window selects the intervals a candidate is searched in.
type Window struct {
	Name   string
	Select func(s Snapshot) []types.PriceInterval
	// Required windows fail the forecast with ErrInsufficientData when no period is found.
	Required bool
	// Beat names an earlier window this one must be strictly cheaper than.
	// When that window produced nothing the candidate is kept.
	Beat string
}

// Plan describes one use case: how long the appliance runs and where to look for cheap windows.
type Plan struct {
	DurationHours    int
	PowerKwh         float64
	BaselineRequired bool
	Windows          []Window
}

type Result struct {
	Now      *OptimalTime
	Windows  map[string]*OptimalTime
	Defaults Defaults
}

type Assembler struct {
	logger   *slog.Logger
	clock    hours.Clock
	provider types.PriceProvider
	tariff   calc.Tariff
}

func NewAssembler(logger *slog.Logger, clock hours.Clock, provider types.PriceProvider, tariff calc.Tariff) *Assembler {
	return &Assembler{logger: logger, clock: clock, provider: provider, tariff: tariff}
}

func (a *Assembler) Snapshot(ctx context.Context) (Snapshot, error) {
	now := a.clock.Now()
	today, err := a.provider.GetTodayPrices(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("today's prices: %w", err)
	}
	tomorrow, err := a.provider.GetTomorrowPrices(ctx)
	if err != nil {
		a.logger.Warn("tomorrow's prices not available yet", slog.Any("error", err))
		tomorrow = nil
	}

	s := Snapshot{Now: now, Today: today, Tomorrow: tomorrow}
	s.Future = endingAfter(append(append([]types.PriceInterval{}, today...), tomorrow...), now)
	return s, nil
}

func (a *Assembler) Assemble(ctx context.Context, plan Plan) (Result, error) {
	s, err := a.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	return a.AssembleSnapshot(s, plan)
}

// AssembleSnapshot evaluates plan against already fetched prices.
func (a *Assembler) AssembleSnapshot(s Snapshot, plan Plan) (Result, error) {
	res := Result{
		Windows:  make(map[string]*OptimalTime, len(plan.Windows)),
		Defaults: a.defaults(plan),
	}

	baseline, err := a.baseline(s, plan.DurationHours)
	if err != nil {
		if plan.BaselineRequired {
			return Result{}, err
		}
		a.logger.Debug("no baseline for forecast", slog.Any("error", err))
	} else {
		now := a.optimalTime(baseline, nil, s.Now)
		res.Now = &now
	}

	found := make(map[string]optimize.OptimalPeriod, len(plan.Windows))
	for _, w := range plan.Windows {
		p, ok := optimize.Cheapest(w.Select(s), plan.DurationHours, a.tariff)
		if !ok {
			if w.Required {
				return Result{}, fmt.Errorf("no %d hour window in %s: %w", plan.DurationHours, w.Name, types.ErrInsufficientData)
			}
			continue
		}
		found[w.Name] = p

		if w.Beat != "" {
			if other, ok := found[w.Beat]; ok && p.Average().Cmp(other.Average()) >= 0 {
				continue
			}
		}

		var base *optimize.OptimalPeriod
		if res.Now != nil {
			base = &baseline
		}
		ot := a.optimalTime(p, base, s.Now)
		res.Windows[w.Name] = &ot
	}

	return res, nil
}

// baseline is the cost of starting right away, the first durationHours of future prices.
func (a *Assembler) baseline(s Snapshot, durationHours int) (optimize.OptimalPeriod, error) {
	n := durationHours * optimize.IntervalsPerHour(s.Future)
	if len(s.Future) < n {
		return optimize.OptimalPeriod{}, fmt.Errorf("%d intervals available, %d needed: %w", len(s.Future), n, types.ErrInsufficientData)
	}
	p, ok := optimize.Cheapest(s.Future[:n], durationHours, a.tariff)
	if !ok {
		return optimize.OptimalPeriod{}, fmt.Errorf("upcoming intervals are not consecutive: %w", types.ErrInsufficientData)
	}
	return p, nil
}

// optimalTime converts a period into the API shape. Savings against baseline are left out when
// there is no baseline or the current hour already lies within the period.
func (a *Assembler) optimalTime(p optimize.OptimalPeriod, baseline *optimize.OptimalPeriod, now time.Time) OptimalTime {
	ot := OptimalTime{
		StartTime:                  p.Start.UTC(),
		EndTime:                    p.End.UTC(),
		PriceAvg:                   p.AveragePriceCents,
		PriceCategory:              p.Category,
		EstimatedTotalPrice:        p.AveragePriceCents,
		PotentialSavings:           maybe.None[float64](),
		PotentialSavingsPercentage: maybe.None[float64](),
		PricePoints:                toPricePoints(p.PricePoints),
	}

	top := hours.TopOfHour(now)
	if baseline == nil || (!top.Before(p.Start) && top.Before(p.End)) {
		return ot
	}

	amount, pct := calc.Savings(baseline.Average(), p.Average())
	ot.PotentialSavings = maybe.Some(amount)
	ot.PotentialSavingsPercentage = maybe.Some(pct)
	return ot
}

func (a *Assembler) defaults(plan Plan) Defaults {
	return Defaults{
		ExchangeTariffCentsKwh: a.tariff.ExchangeCents.InexactFloat64(),
		MarginTariffCentsKwh:   a.tariff.MarginCents.InexactFloat64(),
		PowerConsumptionKwh:    plan.PowerKwh,
		PeriodHours:            plan.DurationHours,
	}
}

func endingAfter(intervals []types.PriceInterval, now time.Time) []types.PriceInterval {
	return slice.Filter(intervals, func(iv types.PriceInterval) bool { return iv.End.After(now) })
}
