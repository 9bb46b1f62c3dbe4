package optimize

import (
	"slices"
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/convert"
	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

const DefaultMaxResults = 5

type PricePoint struct {
	Start      time.Time
	End        time.Time
	PriceCents float64 // All-in price, spot + tariffs
}

type OptimalPeriod struct {
	Start             time.Time
	End               time.Time
	AveragePriceCents float64
	Category          calc.PriceCategory
	PricePoints       []PricePoint

	avg decimal.Decimal // AveragePriceCents without the float conversion
}

// Average returns AveragePriceCents as a decimal for exact comparisons and savings math.
func (p OptimalPeriod) Average() decimal.Decimal {
	return p.avg
}

// TotalPriceCents sums the all-in point prices.
func (p OptimalPeriod) TotalPriceCents() float64 {
	sum := decimal.Zero
	for _, pp := range p.PricePoints {
		sum = sum.Add(decimal.NewFromFloat(pp.PriceCents))
	}
	return convert.Cents2(sum)
}

// IntervalsPerHour infers the granularity from the first interval, 1 for hourly and 4 for quarter-hour data.
func IntervalsPerHour(intervals []types.PriceInterval) int {
	if len(intervals) == 0 {
		return 1
	}
	minutes := int(intervals[0].Duration() / time.Minute)
	if minutes <= 0 || minutes >= 60 {
		return 1
	}
	return 60 / minutes
}

// FindOptimalPeriods slides a durationHours wide window over the intervals and returns the
// cheapest consecutive blocks, cheapest first. Every interval of a window must have the length
// inferred from the first interval, so a window always covers exactly durationHours. Windows containing
// a gap, an overlap or an interval of another length are skipped. Ties keep the earlier window first.
func FindOptimalPeriods(intervals []types.PriceInterval, durationHours, maxResults int, tariff calc.Tariff) []OptimalPeriod {
	if durationHours <= 0 || maxResults <= 0 || len(intervals) == 0 {
		return []OptimalPeriod{}
	}

	perHour := IntervalsPerHour(intervals)
	size := durationHours * perHour
	step := time.Hour / time.Duration(perHour)
	if len(intervals) < size {
		return []OptimalPeriod{}
	}

	allIn := make([]decimal.Decimal, len(intervals))
	for i, iv := range intervals {
		allIn[i] = tariff.AllInCents(iv.Price)
	}

	count := decimal.NewFromInt(int64(size))
	periods := make([]OptimalPeriod, 0, len(intervals)-size+1)
	for i := 0; i+size <= len(intervals); i++ {
		block := intervals[i : i+size]
		if !consecutive(block, step) {
			continue
		}

		sum := decimal.Zero
		points := make([]PricePoint, size)
		for j, iv := range block {
			sum = sum.Add(allIn[i+j])
			points[j] = PricePoint{
				Start:      iv.Start,
				End:        iv.End,
				PriceCents: convert.Cents2(allIn[i+j]),
			}
		}

		avg := convert.RoundHalfUp(sum.Div(count), 2)
		cents := avg.InexactFloat64()
		periods = append(periods, OptimalPeriod{
			Start:             block[0].Start,
			End:               block[size-1].End,
			AveragePriceCents: cents,
			Category:          calc.Categorize(cents),
			PricePoints:       points,
			avg:               avg,
		})
	}

	slices.SortStableFunc(periods, func(a, b OptimalPeriod) int {
		return a.avg.Cmp(b.avg)
	})

	if len(periods) > maxResults {
		periods = periods[:maxResults]
	}
	return periods
}

// Cheapest is FindOptimalPeriods limited to the single best window.
func Cheapest(intervals []types.PriceInterval, durationHours int, tariff calc.Tariff) (OptimalPeriod, bool) {
	res := FindOptimalPeriods(intervals, durationHours, 1, tariff)
	if len(res) == 0 {
		return OptimalPeriod{}, false
	}
	return res[0], true
}

func consecutive(block []types.PriceInterval, step time.Duration) bool {
	for j, iv := range block {
		if iv.Duration() != step {
			return false
		}
		if j > 0 && !block[j-1].End.Equal(iv.Start) {
			return false
		}
	}
	return true
}
