package hours

import (
	"fmt"
	"time"
)

const (
	DayStartHour = 6
	DayEndHour   = 20
)

var marketLocation *time.Location

func init() {
	var err error
	marketLocation, err = time.LoadLocation("Europe/Helsinki")
	if err != nil {
		panic(fmt.Sprintf("failed to load Helsinki location: %v", err))
	}
}

// SetMarketTimezone changes the civil time zone used for day boundaries,
// daytime/night windows and cache boundaries.
func SetMarketTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	marketLocation = loc
	return nil
}

func Location() *time.Location {
	return marketLocation
}

func InMarket(t time.Time) time.Time {
	return t.In(marketLocation)
}

// StartOfDay returns local midnight of the market day containing t.
func StartOfDay(t time.Time) time.Time {
	l := t.In(marketLocation)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, marketLocation)
}

// DayRange returns [start, end) of the market day offset days from the one containing t.
// Days are 23 or 25 hours long on DST transitions.
func DayRange(t time.Time, offset int) (time.Time, time.Time) {
	start := StartOfDay(t).AddDate(0, 0, offset)
	return start, start.AddDate(0, 0, 1)
}

// IsDaytime reports whether the civil hour of t is within [06, 20].
func IsDaytime(t time.Time) bool {
	h := t.In(marketLocation).Hour()
	return h >= DayStartHour && h <= DayEndHour
}

func IsNight(t time.Time) bool {
	return !IsDaytime(t)
}

// TopOfHour truncates t to the civil hour, stepping back instead of rebuilding
// the date so a repeated DST hour keeps its own offset.
func TopOfHour(t time.Time) time.Time {
	l := t.In(marketLocation)
	return l.Add(-time.Duration(l.Minute())*time.Minute -
		time.Duration(l.Second())*time.Second -
		time.Duration(l.Nanosecond()))
}

// NextBoundary returns the first instant strictly after t where the civil minute is a
// multiple of granularityMinutes. The top of the next hour is always a boundary.
func NextBoundary(t time.Time, granularityMinutes int) time.Time {
	if granularityMinutes <= 0 || granularityMinutes > 60 {
		granularityMinutes = 60
	}
	top := TopOfHour(t)
	for m := granularityMinutes; m < 60; m += granularityMinutes {
		if b := top.Add(time.Duration(m) * time.Minute); b.After(t) {
			return b
		}
	}
	return top.Add(time.Hour)
}

func FormatMarket(t time.Time) string {
	return t.In(marketLocation).Format("2006-01-02 15:04")
}
