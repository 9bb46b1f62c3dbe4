package spothinta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.spot-hinta.fi"
	timeout        = 10 * time.Second
	quarter        = 15 * time.Minute
)

type rawPrice struct {
	Rank         int             `json:"Rank"`
	DateTime     time.Time       `json:"DateTime"`
	PriceNoTax   decimal.Decimal `json:"PriceNoTax"`
	PriceWithTax decimal.Decimal `json:"PriceWithTax"`
}

type SpotHinta struct {
	baseURL string
	client  *http.Client
	clock   hours.Clock
}

func New(baseURL string, clock hours.Clock) SpotHinta {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return SpotHinta{baseURL: baseURL, client: &http.Client{Timeout: timeout}, clock: clock}
}

// FetchRange serves the market days the range touches from /Today and /Tomorrow.
// Days outside today and tomorrow are not available from this API.
func (s SpotHinta) FetchRange(ctx context.Context, start, end time.Time) ([]types.PriceInterval, error) {
	now := s.clock.Now()
	prices := make([]types.PriceInterval, 0)

	for offset, path := range []string{"/Today", "/Tomorrow"} {
		from, to := hours.DayRange(now, offset)
		if !start.Before(to) || !end.After(from) {
			continue
		}
		day, err := s.getPrices(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s prices: %w", path, err)
		}
		prices = append(prices, day...)
	}

	res := make([]types.PriceInterval, 0, len(prices))
	for _, p := range prices {
		if !p.Start.Before(start) && p.Start.Before(end) {
			res = append(res, p)
		}
	}
	return res, nil
}

// Current returns the interval covering now from /JustNow.
func (s SpotHinta) Current(ctx context.Context) (types.PriceInterval, error) {
	var raw rawPrice
	found, err := s.get(ctx, "/JustNow", &raw)
	if err != nil {
		return types.PriceInterval{}, err
	}
	if !found {
		return types.PriceInterval{}, fmt.Errorf("no current price: %w", types.ErrNotFound)
	}

	now := s.clock.Now()
	for _, iv := range split([]rawPrice{raw}) {
		if iv.Contains(now) {
			return iv, nil
		}
	}
	return types.PriceInterval{}, fmt.Errorf("current price starts at %s: %w", raw.DateTime, types.ErrNotFound)
}

func (s SpotHinta) getPrices(ctx context.Context, path string) ([]types.PriceInterval, error) {
	var raw []rawPrice
	found, err := s.get(ctx, path, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return []types.PriceInterval{}, nil
	}
	return split(raw), nil
}

func (s SpotHinta) get(ctx context.Context, path string, dest any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to fetch prices: %w: %w", types.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status code %d: %w", resp.StatusCode, types.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("failed to decode response: %w: %w", types.ErrUnavailable, err)
	}
	return true, nil
}

// split turns the entries into 15 minute intervals. Hourly entries become four quarters at the same price.
func split(raw []rawPrice) []types.PriceInterval {
	step := time.Hour
	if len(raw) > 1 {
		step = raw[1].DateTime.Sub(raw[0].DateTime)
		if step <= 0 || step > time.Hour {
			step = time.Hour
		}
	}

	res := make([]types.PriceInterval, 0, len(raw)*int(step/quarter))
	for _, r := range raw {
		start := r.DateTime.UTC()
		for t := start; t.Before(start.Add(step)); t = t.Add(quarter) {
			res = append(res, types.PriceInterval{Start: t, End: t.Add(quarter), Price: r.PriceWithTax})
		}
	}
	return res
}
