package www

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/types"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 1280
	chartHeight = 480
)

// NewChartHandler renders the upcoming all-in prices as a PNG line chart.
func NewChartHandler(logger *slog.Logger, a *forecast.Assembler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}

		o, err := a.Overview(r.Context())
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		points := o.Future.PricePoints
		if len(points) < 2 {
			writeError(logger, w, r, fmt.Errorf("%d future prices: %w", len(points), types.ErrInsufficientData))
			return
		}

		buf, err := renderChart(points, o.Future.PriceAvg)
		if err != nil {
			writeError(logger, w, r, fmt.Errorf("render chart: %w", err))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func renderChart(points []forecast.PricePoint, avg float64) (*bytes.Buffer, error) {
	x := make([]float64, 0, len(points)*2)
	y := make([]float64, 0, len(points)*2)
	for _, p := range points {
		// two samples per interval draw a step line
		x = append(x, chart.TimeToFloat64(p.StartTime), chart.TimeToFloat64(p.EndTime))
		y = append(y, p.Price, p.Price)
	}

	avgX := []float64{x[0], x[len(x)-1]}
	avgY := []float64{avg, avg}

	centsFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: marketTimeFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "c/kWh",
			ValueFormatter: centsFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Price",
				XValues: x,
				YValues: y,
			},
			chart.ContinuousSeries{
				Name:    "Average",
				XValues: avgX,
				YValues: avgY,
				Style: chart.Style{
					StrokeDashArray: []float64{5, 5},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

// go-chart formats times in the process zone, axis labels use the market zone instead.
func marketTimeFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return time.Unix(0, int64(f)).In(hours.Location()).Format("02.01. 15:04")
}
