package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	// 2025-10-03 12:20 in Helsinki
	now = time.Date(2025, 10, 3, 9, 20, 0, 0, time.UTC)
)

type fakeFeed struct {
	prices []types.PriceInterval
	err    error
	ranges [][2]time.Time
}

func (f *fakeFeed) FetchRange(_ context.Context, start, end time.Time) ([]types.PriceInterval, error) {
	f.ranges = append(f.ranges, [2]time.Time{start, end})
	return f.prices, f.err
}

type memStore struct {
	mu     sync.Mutex
	prices map[int64]types.PriceInterval
	err    error
}

func newMemStore() *memStore {
	return &memStore{prices: map[int64]types.PriceInterval{}}
}

func (s *memStore) QueryRange(_ context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []types.PriceInterval
	for _, p := range s.prices {
		if !p.Start.Before(from) && p.Start.Before(to) {
			res = append(res, p)
		}
	}
	return res, s.err
}

func (s *memStore) UpsertPrices(_ context.Context, prices []types.PriceInterval) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	for _, p := range prices {
		s.prices[p.Start.Unix()] = p
	}
	return len(prices), nil
}

func day(offset int) []types.PriceInterval {
	start, _ := hours.DayRange(now, offset)
	res := make([]types.PriceInterval, 96)
	for i := range res {
		s := start.Add(time.Duration(i) * 15 * time.Minute)
		res[i] = types.PriceInterval{Start: s, End: s.Add(15 * time.Minute), Price: decimal.NewFromFloat(0.05)}
	}
	return res
}

func TestIngestionRun(t *testing.T) {
	store := newMemStore()
	feed := &fakeFeed{prices: append(day(0), day(1)...)}
	ing := NewIngestion(discard, hours.FixedClock(now), store, feed)

	n, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 192, n)

	todayStart, _ := hours.DayRange(now, 0)
	_, tomorrowEnd := hours.DayRange(now, 1)
	require.Len(t, feed.ranges, 1)
	assert.True(t, feed.ranges[0][0].Equal(todayStart))
	assert.True(t, feed.ranges[0][1].Equal(tomorrowEnd))

	ok, err := ing.HasToday(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngestionFallsBackToNextFeed(t *testing.T) {
	store := newMemStore()
	primary := &fakeFeed{err: types.ErrUnavailable}
	secondary := &fakeFeed{prices: day(1)}
	ing := NewIngestion(discard, hours.FixedClock(now), store, primary, secondary)

	n, err := ing.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 96, n)
	assert.Len(t, primary.ranges, 1)
	assert.Len(t, secondary.ranges, 1)
}

func TestIngestionSkipsFeedWithoutToday(t *testing.T) {
	store := newMemStore()
	primary := &fakeFeed{prices: []types.PriceInterval{}}
	secondary := &fakeFeed{prices: append(day(0), day(1)...)}
	ing := NewIngestion(discard, hours.FixedClock(now), store, primary, secondary)

	n, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 192, n)
	assert.Len(t, primary.ranges, 1)
	assert.Len(t, secondary.ranges, 1)

	// nothing anywhere is not a feed failure
	ing = NewIngestion(discard, hours.FixedClock(now), newMemStore(), primary, &fakeFeed{err: types.ErrUnavailable})
	n, err = ing.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestionTomorrowEmptyStopsAtFirstFeed(t *testing.T) {
	primary := &fakeFeed{prices: []types.PriceInterval{}}
	secondary := &fakeFeed{prices: day(1)}
	ing := NewIngestion(discard, hours.FixedClock(now), newMemStore(), primary, secondary)

	n, err := ing.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, secondary.ranges)
}

func TestIngestionAllFeedsFail(t *testing.T) {
	ing := NewIngestion(discard, hours.FixedClock(now), newMemStore(),
		&fakeFeed{err: types.ErrUnavailable}, &fakeFeed{err: errors.New("boom")})

	_, err := ing.Run(context.Background())
	assert.ErrorIs(t, err, types.ErrUnavailable)
}

func TestIngestionStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk full")
	ing := NewIngestion(discard, hours.FixedClock(now), store, &fakeFeed{prices: day(0)})

	_, err := ing.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestPriceIngestionTaskRunsAtStartupWhenTodayMissing(t *testing.T) {
	store := newMemStore()
	feed := &fakeFeed{prices: day(0)}
	task := NewPriceIngestionTask(discard, NewIngestion(discard, hours.FixedClock(now), store, feed))

	assert.Len(t, feed.ranges, 1, "fetched right away")
	task()
	assert.Len(t, feed.ranges, 2)
}

func TestPriceIngestionTaskSkipsStartupWhenTodayStored(t *testing.T) {
	store := newMemStore()
	_, _ = store.UpsertPrices(context.Background(), day(0))
	feed := &fakeFeed{prices: day(0)}

	NewPriceIngestionTask(discard, NewIngestion(discard, hours.FixedClock(now), store, feed))
	assert.Empty(t, feed.ranges)
}

func TestTomorrowTaskToleratesNothingPublished(t *testing.T) {
	feed := &fakeFeed{prices: []types.PriceInterval{}}
	task := NewTomorrowPriceTask(discard, NewIngestion(discard, hours.FixedClock(now), newMemStore(), feed))

	assert.NotPanics(t, task)
	tomorrowStart, tomorrowEnd := hours.DayRange(now, 1)
	require.Len(t, feed.ranges, 1)
	assert.True(t, feed.ranges[0][0].Equal(tomorrowStart))
	assert.True(t, feed.ranges[0][1].Equal(tomorrowEnd))
}

type fakeMaintainer struct {
	calls []string
}

func (m *fakeMaintainer) Backup(context.Context) (string, error) {
	m.calls = append(m.calls, "backup")
	return "", errors.New("read-only file system")
}

func (m *fakeMaintainer) PurgeBackups(days int) (int, error) {
	m.calls = append(m.calls, "purgeBackups")
	return 0, nil
}

func (m *fakeMaintainer) PurgeLog(_ context.Context, max int) error {
	m.calls = append(m.calls, "purgeLog")
	return nil
}

func (m *fakeMaintainer) PurgeElectricityPrice(_ context.Context, days int) error {
	m.calls = append(m.calls, "purgePrices")
	return nil
}

func TestMaintenanceTaskContinuesAfterFailure(t *testing.T) {
	m := &fakeMaintainer{}
	NewMaintenanceTask(discard, m, &config.AppConfig{})()
	assert.Equal(t, []string{"backup", "purgeBackups", "purgeLog", "purgePrices"}, m.calls)
}

type retentionOnly struct {
	days int
}

func (r *retentionOnly) PurgeElectricityPrice(_ context.Context, days int) error {
	r.days = days
	return nil
}

func TestMaintenanceTaskPurgesPricesOnly(t *testing.T) {
	r := &retentionOnly{}
	NewMaintenanceTask(discard, r, &config.AppConfig{})()
	assert.Equal(t, 90, r.days)
}

type recordingSink struct {
	topics   []string
	payloads []any
	err      error
}

func (s *recordingSink) Publish(topic string, payload any) error {
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
	return s.err
}

type currentOnly struct {
	types.PriceProvider
	iv  types.PriceInterval
	err error
}

func (c currentOnly) GetCurrentPrice(context.Context) (types.PriceInterval, error) {
	return c.iv, c.err
}

func TestPublishTask(t *testing.T) {
	start := time.Date(2025, 10, 3, 9, 15, 0, 0, time.UTC)
	p := currentOnly{iv: types.PriceInterval{Start: start, End: start.Add(15 * time.Minute), Price: decimal.RequireFromString("0.0125")}}
	a := forecast.NewAssembler(discard, hours.FixedClock(now), p, calc.DefaultTariff())

	failing := &recordingSink{err: errors.New("offline")}
	ok := &recordingSink{}
	NewPublishTask(discard, p, a, failing, ok)()

	require.Len(t, ok.payloads, 1)
	assert.Equal(t, CurrentPriceTopic, ok.topics[0])
	assert.Equal(t, CurrentPriceMessage{
		StartTime:     start,
		EndTime:       start.Add(15 * time.Minute),
		Price:         8.45,
		PriceCategory: calc.Normal,
	}, ok.payloads[0])
	assert.Len(t, failing.payloads, 1, "one failing sink does not stop the others")
}

func TestPublishTaskWithoutPrice(t *testing.T) {
	p := currentOnly{err: types.ErrNotFound}
	a := forecast.NewAssembler(discard, hours.FixedClock(now), p, calc.DefaultTariff())
	sink := &recordingSink{}

	NewPublishTask(discard, p, a, sink)()
	assert.Empty(t, sink.payloads)
}

func TestTasksSchedule(t *testing.T) {
	store := newMemStore()
	_, _ = store.UpsertPrices(context.Background(), day(0))
	ing := NewIngestion(discard, hours.FixedClock(now), store, &fakeFeed{})
	p := currentOnly{err: types.ErrNotFound}
	a := forecast.NewAssembler(discard, hours.FixedClock(now), p, calc.DefaultTariff())

	tasks := NewTasks(ing, &fakeMaintainer{}, p, a, nil, &config.AppConfig{})
	tasks.Run()
	defer tasks.Stop()

	assert.Len(t, tasks.Entries(), 4)

	withoutMaintenance := NewTasks(ing, nil, p, a, nil, &config.AppConfig{})
	assert.Nil(t, withoutMaintenance.MaintenanceTask)
}
