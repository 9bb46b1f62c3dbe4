package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/metrics"
	"github.com/angas/spotwindow/types"
)

const CurrentPriceTopic = "price/current"

// Sink receives the current price, implemented by the MQTT publisher and the websocket hub.
type Sink interface {
	Publish(topic string, payload any) error
}

type CurrentPriceMessage struct {
	StartTime     time.Time          `json:"startTime"`
	EndTime       time.Time          `json:"endTime"`
	Price         float64            `json:"price"` // cents/kWh including tariffs
	PriceCategory calc.PriceCategory `json:"priceCategory"`
}

func CurrentPrice(ctx context.Context, p types.PriceProvider, a *forecast.Assembler) (CurrentPriceMessage, error) {
	iv, err := p.GetCurrentPrice(ctx)
	if err != nil {
		return CurrentPriceMessage{}, err
	}
	cur := a.Current(iv)
	return CurrentPriceMessage{
		StartTime:     iv.Start.UTC(),
		EndTime:       iv.End.UTC(),
		Price:         cur.Price,
		PriceCategory: cur.PriceCategory,
	}, nil
}

func NewPublishTask(logger *slog.Logger, p types.PriceProvider, a *forecast.Assembler, sinks ...Sink) func() {
	return func() {
		logger.Debug("running publish task...")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		msg, err := CurrentPrice(ctx, p, a)
		if err != nil {
			metrics.RecordTaskRun("publish", false)
			logger.Error("publish task error, no current price", slog.Any("error", err))
			return
		}

		ok := true
		for _, sink := range sinks {
			if err := sink.Publish(CurrentPriceTopic, msg); err != nil {
				logger.Warn("publish task error", slog.Any("error", err))
				ok = false
			}
		}
		metrics.RecordTaskRun("publish", ok)
		logger.Debug("publish task done", slog.Float64("price", msg.Price), slog.String("category", string(msg.PriceCategory)))
	}
}
