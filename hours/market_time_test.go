package hours

import (
	"testing"
	"time"
)

func helsinki(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", value, Location())
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(time.Date(2025, 10, 3, 22, 30, 0, 0, time.UTC)) // 01:30 on the 4th in Helsinki
	expected := time.Date(2025, 10, 3, 21, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("StartOfDay() expected %v, got %v", expected, got)
	}
}

func TestDayRangeAcrossDST(t *testing.T) {
	start, end := DayRange(helsinki(t, "2025-10-25 12:00:00"), 1)
	if d := end.Sub(start); d != 25*time.Hour {
		t.Errorf("DayRange() expected a 25h day on fall-back, got %v", d)
	}
	start, end = DayRange(helsinki(t, "2025-03-29 12:00:00"), 1)
	if d := end.Sub(start); d != 23*time.Hour {
		t.Errorf("DayRange() expected a 23h day on spring-forward, got %v", d)
	}
}

func TestIsDaytime(t *testing.T) {
	tests := []struct {
		local    string
		expected bool
	}{
		{"2025-10-03 05:59:59", false},
		{"2025-10-03 06:00:00", true},
		{"2025-10-03 20:45:00", true},
		{"2025-10-03 21:00:00", false},
		{"2025-10-03 00:15:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			ts := helsinki(t, tt.local)
			if got := IsDaytime(ts); got != tt.expected {
				t.Errorf("IsDaytime(%s) expected %v, got %v", tt.local, tt.expected, got)
			}
			if IsNight(ts) == tt.expected {
				t.Errorf("IsNight(%s) must be the opposite of IsDaytime", tt.local)
			}
		})
	}
}

func TestTopOfHour(t *testing.T) {
	got := TopOfHour(helsinki(t, "2025-10-03 13:12:30"))
	if expected := helsinki(t, "2025-10-03 13:00:00"); !got.Equal(expected) {
		t.Errorf("TopOfHour() expected %v, got %v", expected, got)
	}

	// 03:30 EET, the second pass through 03:xx on fall-back day
	repeated := time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC)
	if got := TopOfHour(repeated); !got.Equal(time.Date(2025, 10, 26, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("TopOfHour() in repeated hour got %v", got.UTC())
	}
}

func TestNextBoundary(t *testing.T) {
	tests := []struct {
		name        string
		now         string
		granularity int
		expected    string
	}{
		{"quarter mid interval", "2025-10-03 13:12:30", 15, "2025-10-03 13:15:00"},
		{"quarter exactly on boundary", "2025-10-03 13:15:00", 15, "2025-10-03 13:30:00"},
		{"quarter last slot", "2025-10-03 13:50:00", 15, "2025-10-03 14:00:00"},
		{"hourly", "2025-10-03 13:12:30", 60, "2025-10-03 14:00:00"},
		{"hourly crossing midnight", "2025-10-03 23:59:30", 60, "2025-10-04 00:00:00"},
		{"invalid granularity falls back to hourly", "2025-10-03 13:12:30", 0, "2025-10-03 14:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBoundary(helsinki(t, tt.now), tt.granularity)
			if expected := helsinki(t, tt.expected); !got.Equal(expected) {
				t.Errorf("NextBoundary() expected %v, got %v", expected, got)
			}
		})
	}
}

func TestFixedClock(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var c Clock = FixedClock(ts)
	if !c.Now().Equal(ts) {
		t.Errorf("FixedClock.Now() expected %v, got %v", ts, c.Now())
	}
}
