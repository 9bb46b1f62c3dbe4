package forecast

import (
	"time"

	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/optimize"
	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types/maybe"
)

type PricePoint struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Price     float64   `json:"price"` // cents/kWh
}

// OptimalTime is a recommended window. Prices are all-in cents/kWh.
type OptimalTime struct {
	StartTime                  time.Time            `json:"startTime"`
	EndTime                    time.Time            `json:"endTime"`
	PriceAvg                   float64              `json:"priceAvg"`
	PriceCategory              calc.PriceCategory   `json:"priceCategory"`
	EstimatedTotalPrice        float64              `json:"estimatedTotalPrice"`
	PotentialSavings           maybe.Maybe[float64] `json:"potentialSavings"`
	PotentialSavingsPercentage maybe.Maybe[float64] `json:"potentialSavingsPercentage"`
	PricePoints                []PricePoint         `json:"pricePoints"`
}

type Defaults struct {
	ExchangeTariffCentsKwh float64 `json:"exchangeTariffCentsKwh"`
	MarginTariffCentsKwh   float64 `json:"marginTariffCentsKwh"`
	PowerConsumptionKwh    float64 `json:"powerConsumptionKwh"`
	PeriodHours            int     `json:"periodHours"`
}

type WashingForecast struct {
	Now      *OptimalTime `json:"now,omitempty"`
	Today    *OptimalTime `json:"today,omitempty"`
	Tonight  *OptimalTime `json:"tonight,omitempty"`
	Tomorrow *OptimalTime `json:"tomorrow,omitempty"`
	Defaults Defaults     `json:"defaults"`
}

type ChargeForecast struct {
	Now         *OptimalTime `json:"now"`
	Next12Hours *OptimalTime `json:"next12Hours"`
	Extended    *OptimalTime `json:"extended,omitempty"`
	Defaults    Defaults     `json:"defaults"`
}

type CurrentPrice struct {
	Price         float64            `json:"price"`
	PriceCategory calc.PriceCategory `json:"priceCategory"`
}

type PriceSummary struct {
	PriceAvg      float64            `json:"priceAvg"`
	PriceCategory calc.PriceCategory `json:"priceCategory"`
	PricePoints   []PricePoint       `json:"pricePoints"`
}

type Overview struct {
	Current     CurrentPrice `json:"current"`
	Next12Hours PriceSummary `json:"next12Hours"`
	Future      PriceSummary `json:"future"`
}

func toPricePoints(points []optimize.PricePoint) []PricePoint {
	return slice.Map(points, func(p optimize.PricePoint) PricePoint {
		return PricePoint{StartTime: p.Start.UTC(), EndTime: p.End.UTC(), Price: p.PriceCents}
	})
}
