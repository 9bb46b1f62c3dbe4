package entsoe

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/angas/spotwindow/convert"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"
	FinlandDomain  = "10YFI-1--------U"
	DefaultVAT     = 1.255

	periodLayout = "200601021504"
	timeout      = 10 * time.Second
	quarter      = 15 * time.Minute
)

type Entsoe struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	token   string
	domain  string
	vat     decimal.Decimal
}

func New(baseURL, token, domain string, vat float64) Entsoe {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if domain == "" {
		domain = FinlandDomain
	}
	if vat <= 0 {
		vat = DefaultVAT
	}
	return Entsoe{
		logger:  slog.Default().With(slog.String("module", "entsoe")),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		domain:  domain,
		vat:     decimal.NewFromFloat(vat),
	}
}

// FetchRange returns day-ahead prices in EUR/kWh including VAT as 15 minute intervals starting within [start, end).
func (e Entsoe) FetchRange(ctx context.Context, start, end time.Time) ([]types.PriceInterval, error) {
	q := url.Values{}
	q.Set("securityToken", e.token)
	q.Set("documentType", "A44")
	q.Set("processType", "A01")
	q.Set("in_Domain", e.domain)
	q.Set("out_Domain", e.domain)
	q.Set("periodStart", start.UTC().Format(periodLayout))
	q.Set("periodEnd", end.UTC().Format(periodLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w: %w", types.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %w", types.ErrUnavailable, err)
	}

	// "no matching data" is reported as an acknowledgement, sometimes with a 400
	if ack, ok := acknowledgement(body); ok {
		e.logger.Debug("no prices published", slog.String("reason", ack))
		return []types.PriceInterval{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %w", resp.StatusCode, types.ErrUnavailable)
	}

	var doc publicationDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w: %w", types.ErrUnavailable, err)
	}

	prices, err := doc.intervals(e.vat)
	if err != nil {
		return nil, err
	}

	prices = slices.DeleteFunc(prices, func(p types.PriceInterval) bool {
		return p.Start.Before(start) || !p.Start.Before(end)
	})
	return prices, nil
}

type quarterPrice struct {
	price      decimal.Decimal
	resolution time.Duration
}

// intervals returns the document as sorted 15 minute intervals. Coarser periods are split into
// quarters and where periods overlap the finest resolution wins.
func (d publicationDocument) intervals(vat decimal.Decimal) ([]types.PriceInterval, error) {
	quarters := make(map[time.Time]quarterPrice)
	for _, ts := range d.TimeSeries {
		for _, period := range ts.Periods {
			res, err := resolution(period.Resolution)
			if err != nil {
				return nil, err
			}
			start, err := parseTime(period.Interval.Start)
			if err != nil {
				return nil, err
			}
			end, err := parseTime(period.Interval.End)
			if err != nil {
				return nil, err
			}

			slots := int(end.Sub(start) / res)
			byPosition := make(map[int]decimal.Decimal, len(period.Points))
			for _, p := range period.Points {
				byPosition[p.Position] = p.Amount
			}

			// positions left out repeat the previous price (curve type A03)
			var last decimal.Decimal
			known := false
			for pos := 1; pos <= slots; pos++ {
				if amount, ok := byPosition[pos]; ok {
					last = amount
					known = true
				}
				if !known {
					continue
				}
				price := convert.MwhToKwh(last).Mul(vat)
				s := start.Add(time.Duration(pos-1) * res).UTC()
				for q := s; q.Before(s.Add(res)); q = q.Add(quarter) {
					if prev, ok := quarters[q]; ok && prev.resolution <= res {
						continue
					}
					quarters[q] = quarterPrice{price: price, resolution: res}
				}
			}
		}
	}

	prices := make([]types.PriceInterval, 0, len(quarters))
	for start, qp := range quarters {
		prices = append(prices, types.PriceInterval{Start: start, End: start.Add(quarter), Price: qp.price})
	}
	slices.SortFunc(prices, func(a, b types.PriceInterval) int { return a.Start.Compare(b.Start) })
	return prices, nil
}

func resolution(r string) (time.Duration, error) {
	switch r {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M", "PT1H":
		return time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported resolution %q: %w", r, types.ErrUnavailable)
}

// timeInterval values come without seconds, "2025-10-02T21:00Z".
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: %w", s, types.ErrUnavailable)
}

func acknowledgement(body []byte) (string, bool) {
	var ack acknowledgementDocument
	if err := xml.Unmarshal(body, &ack); err != nil || ack.XMLName.Local != "Acknowledgement_MarketDocument" {
		return "", false
	}
	return ack.Reason.Text, true
}
