package www

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/angas/spotwindow/database"
	"github.com/angas/spotwindow/logging"
	"github.com/angas/spotwindow/types"
)

type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

// NewRefreshHandler fetches today's and tomorrow's prices right away.
func NewRefreshHandler(logger *slog.Logger, ing Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if ing == nil {
			writeError(logger, w, r, fmt.Errorf("no price ingestion configured: %w", types.ErrUnavailable))
			return
		}

		n, err := ing.Run(r.Context())
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		logger.Info("prices refreshed", slog.Int("updated", n), slog.String("requestId", RequestID(r.Context())))
		writeJSON(w, http.StatusOK, map[string]int{"updated": n})
	}
}

const (
	defaultLogPageSize = 25
	maxLogPageSize     = 500
)

type logPage struct {
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
	Entries  []database.LogEntryRow `json:"entries"`
}

func NewLogHandler(logger *slog.Logger, logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if logs == nil {
			writeError(logger, w, r, fmt.Errorf("log is kept only with the sqlite driver: %w", types.ErrNotFound))
			return
		}

		page, err := intParam(r.URL, "page", 1, math.MaxInt32)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		pageSize, err := intParam(r.URL, "pageSize", defaultLogPageSize, maxLogPageSize)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		level := "DEBUG"
		if l := r.URL.Query().Get("level"); l != "" {
			level = l
		}

		e, err := logs.GetLogEntries(r.Context(), logging.LevelFromString(&level), page, pageSize)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		if e == nil {
			e = []database.LogEntryRow{}
		}
		writeJSON(w, http.StatusOK, logPage{Page: page, PageSize: pageSize, Entries: e})
	}
}

var startedAt = time.Now()

func NewHealthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(startedAt).Truncate(time.Second).String(),
		})
	}
}
