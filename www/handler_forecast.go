package www

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotwindow/cache"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/metrics"
)

// NewCachedHandler serves the JSON built by build. Responses are cached until the next price
// boundary, a nil cache disables caching.
func NewCachedHandler[T any](
	logger *slog.Logger,
	c cache.Cache,
	clock hours.Clock,
	granularity int,
	route string,
	build func(context.Context) (T, error),
) http.HandlerFunc {
	key := "forecast:" + route
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		ctx := r.Context()
		ttl := cache.TTL(clock.Now(), granularity)

		var body json.RawMessage
		if c != nil {
			hit, err := c.Get(ctx, key, &body)
			if err != nil {
				logger.Warn("cache lookup failed", slog.String("key", key), slog.Any("error", err))
			}
			metrics.RecordCacheLookup(route, hit)
			if hit {
				writeCached(w, body, ttl)
				return
			}
		}

		v, err := build(ctx)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		body, err = json.Marshal(v)
		if err != nil {
			writeError(logger, w, r, fmt.Errorf("encode %s response: %w", route, err))
			return
		}

		if c != nil {
			if err := c.Set(ctx, key, body, ttl); err != nil {
				logger.Warn("cache store failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		writeCached(w, body, ttl)
	}
}

func writeCached(w http.ResponseWriter, body []byte, ttl time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(ttl.Seconds())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
