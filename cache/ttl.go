package cache

import (
	"time"

	"github.com/angas/spotwindow/hours"
)

const MinTTL = 60 * time.Second

// TTL returns the time left until the next price boundary in the market zone,
// truncated to whole seconds and never below MinTTL.
func TTL(now time.Time, granularityMinutes int) time.Duration {
	left := hours.NextBoundary(now, granularityMinutes).Sub(now).Truncate(time.Second)
	if left < MinTTL {
		return MinTTL
	}
	return left
}
