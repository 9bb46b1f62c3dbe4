package forecast

import (
	"context"
	"time"

	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/slice"
	"github.com/angas/spotwindow/types"
)

const (
	WashingHours    = 2
	WashingPowerKwh = 0.7
)

var WashingPlan = Plan{
	DurationHours: WashingHours,
	PowerKwh:      WashingPowerKwh,
	Windows: []Window{
		{Name: "today", Select: todayDaytime},
		{Name: "tonight", Select: tonight, Beat: "today"},
		{Name: "tomorrow", Select: tomorrowDaytime, Beat: "today"},
	},
}

func (a *Assembler) Washing(ctx context.Context) (WashingForecast, error) {
	res, err := a.Assemble(ctx, WashingPlan)
	if err != nil {
		return WashingForecast{}, err
	}
	return WashingForecast{
		Now:      res.Now,
		Today:    res.Windows["today"],
		Tonight:  res.Windows["tonight"],
		Tomorrow: res.Windows["tomorrow"],
		Defaults: res.Defaults,
	}, nil
}

// todayDaytime is only offered while it is still daytime.
func todayDaytime(s Snapshot) []types.PriceInterval {
	if !hours.IsDaytime(s.Now) {
		return nil
	}
	return slice.Filter(s.Today, func(iv types.PriceInterval) bool {
		return iv.End.After(s.Now) && hours.IsDaytime(iv.Start)
	})
}

// tonight is the upcoming night, up to the next 06:00.
func tonight(s Snapshot) []types.PriceInterval {
	morning := nextMorning(s.Now)
	return slice.Filter(s.Future, func(iv types.PriceInterval) bool {
		return hours.IsNight(iv.Start) && iv.Start.Before(morning)
	})
}

func tomorrowDaytime(s Snapshot) []types.PriceInterval {
	return slice.Filter(s.Tomorrow, func(iv types.PriceInterval) bool {
		return iv.End.After(s.Now) && hours.IsDaytime(iv.Start)
	})
}

func nextMorning(now time.Time) time.Time {
	morning := hours.StartOfDay(now).Add(hours.DayStartHour * time.Hour)
	if !now.Before(morning) {
		_, tomorrow := hours.DayRange(now, 0)
		morning = tomorrow.Add(hours.DayStartHour * time.Hour)
	}
	return morning
}
