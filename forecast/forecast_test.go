package forecast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/provider"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	// 2025-10-03 00:00 in Helsinki
	dayStart = time.Date(2025, 10, 2, 21, 0, 0, 0, time.UTC)
)

type fakeProvider struct {
	clock    hours.Clock
	today    []types.PriceInterval
	tomorrow []types.PriceInterval
	err      error
}

func (f *fakeProvider) GetCurrentPrice(context.Context) (types.PriceInterval, error) {
	if f.err != nil {
		return types.PriceInterval{}, f.err
	}
	now := f.clock.Now()
	for _, iv := range append(f.today, f.tomorrow...) {
		if iv.Contains(now) {
			return iv, nil
		}
	}
	return types.PriceInterval{}, types.ErrNotFound
}

func (f *fakeProvider) GetTodayPrices(context.Context) ([]types.PriceInterval, error) {
	return f.today, f.err
}

func (f *fakeProvider) GetTomorrowPrices(context.Context) ([]types.PriceInterval, error) {
	return f.tomorrow, nil
}

func (f *fakeProvider) GetFuturePrices(context.Context) ([]types.PriceInterval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return provider.Future(f.today, f.tomorrow, f.clock.Now()), nil
}

// day expands 24 hourly prices (EUR/kWh) into 15 minute intervals starting at start.
func day(start time.Time, hourly map[int]float64, fallback float64) []types.PriceInterval {
	res := make([]types.PriceInterval, 0, 96)
	for h := 0; h < 24; h++ {
		price, ok := hourly[h]
		if !ok {
			price = fallback
		}
		for q := 0; q < 4; q++ {
			s := start.Add(time.Duration(h)*time.Hour + time.Duration(q)*15*time.Minute)
			res = append(res, types.PriceInterval{Start: s, End: s.Add(15 * time.Minute), Price: decimal.NewFromFloat(price)})
		}
	}
	return res
}

func local(h, m int) time.Time {
	return dayStart.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

// today: expensive all day except 13-15 (9.2 c/kWh all-in), already passed cheap night hours
// tomorrow: cheapest at 02-04 (7.7), a daytime dip at 11-13 (10.2)
func fixture(now time.Time) (*fakeProvider, *Assembler) {
	clock := hours.FixedClock(now)
	p := &fakeProvider{
		clock:    clock,
		today:    day(dayStart, map[int]float64{2: 0.01, 3: 0.01, 13: 0.02, 14: 0.02}, 0.10),
		tomorrow: day(dayStart.Add(24*time.Hour), map[int]float64{2: 0.005, 3: 0.005, 11: 0.03, 12: 0.03}, 0.10),
	}
	return p, NewAssembler(discard, clock, p, calc.DefaultTariff())
}

func TestWashingDaytime(t *testing.T) {
	_, a := fixture(local(10, 5))

	fc, err := a.Washing(context.Background())
	require.NoError(t, err)

	require.NotNil(t, fc.Now)
	assert.Equal(t, 17.2, fc.Now.PriceAvg)
	assert.True(t, fc.Now.StartTime.Equal(local(10, 0)))
	assert.False(t, fc.Now.PotentialSavings.IsValid())

	require.NotNil(t, fc.Today)
	assert.True(t, fc.Today.StartTime.Equal(local(13, 0)))
	assert.Equal(t, 9.2, fc.Today.PriceAvg)
	assert.Equal(t, calc.Normal, fc.Today.PriceCategory)
	assert.Equal(t, 8.0, fc.Today.PotentialSavings.Value())
	assert.Equal(t, 46.51, fc.Today.PotentialSavingsPercentage.Value())
	assert.Len(t, fc.Today.PricePoints, 8)

	require.NotNil(t, fc.Tonight, "tonight is cheaper than today")
	assert.True(t, fc.Tonight.StartTime.Equal(local(26, 0)))
	assert.Equal(t, 7.7, fc.Tonight.PriceAvg)
	assert.Equal(t, 9.5, fc.Tonight.PotentialSavings.Value())
	assert.Equal(t, 55.23, fc.Tonight.PotentialSavingsPercentage.Value())

	assert.Nil(t, fc.Tomorrow, "tomorrow is more expensive than today")

	assert.Equal(t, Defaults{ExchangeTariffCentsKwh: 6.7, MarginTariffCentsKwh: 0.5, PowerConsumptionKwh: 0.7, PeriodHours: 2}, fc.Defaults)
}

func TestWashingAtNight(t *testing.T) {
	_, a := fixture(local(22, 30))

	fc, err := a.Washing(context.Background())
	require.NoError(t, err)

	assert.Nil(t, fc.Today, "today is only offered during daytime")
	require.NotNil(t, fc.Now)
	assert.True(t, fc.Now.StartTime.Equal(local(22, 30)))

	require.NotNil(t, fc.Tonight)
	assert.Equal(t, 7.7, fc.Tonight.PriceAvg)
	require.NotNil(t, fc.Tomorrow, "without today tomorrow is always included")
	assert.True(t, fc.Tomorrow.StartTime.Equal(local(24+11, 0)))
	assert.Equal(t, 10.2, fc.Tomorrow.PriceAvg)
}

func TestWashingWithoutBaseline(t *testing.T) {
	p, a := fixture(local(10, 5))
	p.today = p.today[:42] // prices end at 10:30
	p.tomorrow = nil

	fc, err := a.Washing(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fc.Now)
	assert.Nil(t, fc.Today)
	assert.Nil(t, fc.Tonight)
	assert.Nil(t, fc.Tomorrow)
	assert.Equal(t, 2, fc.Defaults.PeriodHours)
}

func TestWashingSavingsAbsentWhenOptimalIsNow(t *testing.T) {
	_, a := fixture(local(13, 0))

	fc, err := a.Washing(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fc.Today)
	assert.True(t, fc.Today.StartTime.Equal(local(13, 0)))
	assert.False(t, fc.Today.PotentialSavings.IsValid())
	assert.False(t, fc.Today.PotentialSavingsPercentage.IsValid())

	b, err := json.Marshal(fc.Today)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"potentialSavings":null`)
}

func TestWashingTodayFailure(t *testing.T) {
	p, a := fixture(local(10, 5))
	p.err = types.ErrUnavailable

	_, err := a.Washing(context.Background())
	assert.ErrorIs(t, err, types.ErrUnavailable)
}

func TestCharging(t *testing.T) {
	_, a := fixture(local(10, 5))

	fc, err := a.Charging(context.Background())
	require.NoError(t, err)

	require.NotNil(t, fc.Now)
	assert.Equal(t, 15.2, fc.Now.PriceAvg)
	assert.False(t, fc.Now.PotentialSavings.IsValid())

	require.NotNil(t, fc.Next12Hours)
	assert.True(t, fc.Next12Hours.StartTime.Equal(local(11, 0)))
	assert.Equal(t, 13.2, fc.Next12Hours.PriceAvg)
	assert.Equal(t, 2.0, fc.Next12Hours.PotentialSavings.Value())
	assert.Equal(t, 13.16, fc.Next12Hours.PotentialSavingsPercentage.Value())

	require.NotNil(t, fc.Extended)
	assert.True(t, fc.Extended.StartTime.Equal(local(24, 0)))
	assert.Equal(t, 12.45, fc.Extended.PriceAvg)
	assert.Equal(t, 2.75, fc.Extended.PotentialSavings.Value())
	assert.Equal(t, 18.09, fc.Extended.PotentialSavingsPercentage.Value())

	assert.Equal(t, 11.0, fc.Defaults.PowerConsumptionKwh)
	assert.Equal(t, 4, fc.Defaults.PeriodHours)
}

func TestChargingExtendedOnlyWhenCheaper(t *testing.T) {
	p, a := fixture(local(10, 5))
	p.tomorrow = nil

	fc, err := a.Charging(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, fc.Next12Hours)
	assert.Nil(t, fc.Extended)
}

func TestChargingInsufficientData(t *testing.T) {
	p, a := fixture(local(10, 5))
	p.today = p.today[:44] // prices end at 11:00
	p.tomorrow = nil

	_, err := a.Charging(context.Background())
	assert.ErrorIs(t, err, types.ErrInsufficientData)
}

func TestOverview(t *testing.T) {
	_, a := fixture(local(13, 20))

	ov, err := a.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CurrentPrice{Price: 9.2, PriceCategory: calc.Normal}, ov.Current)

	// starts from 13:15 up to 01:15 tomorrow, 7 cheap quarters and 42 at 17.2
	assert.Len(t, ov.Next12Hours.PricePoints, 49)
	assert.Equal(t, 16.06, ov.Next12Hours.PriceAvg)
	assert.Equal(t, calc.Expensive, ov.Next12Hours.PriceCategory)

	assert.Len(t, ov.Future.PricePoints, 43+96)
	assert.True(t, ov.Future.PricePoints[0].StartTime.Equal(local(13, 15)))
	assert.Equal(t, time.UTC, ov.Future.PricePoints[0].StartTime.Location())
}

func TestSummaryEmpty(t *testing.T) {
	_, a := fixture(local(10, 0))
	s := a.Summary(nil)
	assert.Equal(t, 0.0, s.PriceAvg)
	assert.Equal(t, calc.VeryCheap, s.PriceCategory)
	assert.NotNil(t, s.PricePoints)
}

func TestAssembleSnapshotBeatIsStrict(t *testing.T) {
	_, a := fixture(local(10, 5))
	flat := day(dayStart, nil, 0.05)
	s := Snapshot{Now: local(10, 5), Today: flat, Future: endingAfter(flat, local(10, 5))}

	plan := Plan{
		DurationHours: 1,
		Windows: []Window{
			{Name: "first", Select: func(s Snapshot) []types.PriceInterval { return s.Future }},
			{Name: "second", Select: func(s Snapshot) []types.PriceInterval { return s.Future }, Beat: "first"},
		},
	}

	res, err := a.AssembleSnapshot(s, plan)
	require.NoError(t, err)
	assert.NotNil(t, res.Windows["first"])
	assert.Nil(t, res.Windows["second"], "an equal price is not cheaper")
}
