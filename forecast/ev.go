package forecast

import (
	"context"
	"time"

	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types"
)

const (
	ChargingHours    = 4
	ChargingPowerKwh = 11.0
	nearTermWindow   = 12 * time.Hour
)

var ChargingPlan = Plan{
	DurationHours:    ChargingHours,
	PowerKwh:         ChargingPowerKwh,
	BaselineRequired: true,
	Windows: []Window{
		{Name: "next12Hours", Select: next12Hours, Required: true},
		{Name: "extended", Select: func(s Snapshot) []types.PriceInterval { return s.Future }, Beat: "next12Hours"},
	},
}

func (a *Assembler) Charging(ctx context.Context) (ChargeForecast, error) {
	res, err := a.Assemble(ctx, ChargingPlan)
	if err != nil {
		return ChargeForecast{}, err
	}
	return ChargeForecast{
		Now:         res.Now,
		Next12Hours: res.Windows["next12Hours"],
		Extended:    res.Windows["extended"],
		Defaults:    res.Defaults,
	}, nil
}

func next12Hours(s Snapshot) []types.PriceInterval {
	limit := s.Now.Add(nearTermWindow)
	return slice.Filter(s.Future, func(iv types.PriceInterval) bool {
		return iv.Start.Before(limit)
	})
}
