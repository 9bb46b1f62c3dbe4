package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotwindow/cache"
	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/metrics"
	"golang.org/x/time/rate"
)

// Refresher fetches prices from the upstream feeds into the store, implemented by task.Ingestion.
type Refresher interface {
	Run(ctx context.Context, dayOffsets ...int) (int, error)
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	hub     *Hub
	handler http.Handler
}

type Options struct {
	Config    *config.AppConfig
	Clock     hours.Clock
	Assembler *forecast.Assembler
	Cache     cache.Cache
	Refresher Refresher
	Logs      LogReader // nil when the store keeps no log table
	Hub       *Hub
	Version   string
}

func NewServer(opts Options) *Server {
	logger := slog.Default().With("module", "www")
	if opts.Clock == nil {
		opts.Clock = hours.SystemClock{}
	}

	s := &Server{
		logger: logger,
		config: opts.Config.Api,
		hub:    opts.Hub,
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr),
				slog.String("requestId", RequestID(r.Context())))
			next.ServeHTTP(w, r)
		})
	}

	limited := rateLimitMW(opts.Config.RateLimit.GetRps(), opts.Config.RateLimit.GetBurst())
	route := func(name string, h http.Handler) http.Handler {
		return metrics.InstrumentHandler(name, limited(h))
	}

	granularity := opts.Config.Market.GetGranularity()
	a := opts.Assembler
	mux := http.NewServeMux()

	mux.Handle("/wash-laundry/optimal-schedule", route("wash", NewCachedHandler(
		logger.With(slog.String("handler", "wash")),
		opts.Cache, opts.Clock, granularity, "wash", a.Washing)))

	mux.Handle("/charge-ev/optimal-schedule", route("ev", NewCachedHandler(
		logger.With(slog.String("handler", "ev")),
		opts.Cache, opts.Clock, granularity, "ev", a.Charging)))

	mux.Handle("/overview", route("overview", NewCachedHandler(
		logger.With(slog.String("handler", "overview")),
		opts.Cache, opts.Clock, granularity, "overview", a.Overview)))

	mux.Handle("/overview/chart.png", route("chart", NewChartHandler(
		logger.With(slog.String("handler", "chart")), a)))

	mux.Handle("/prices/refresh", route("refresh", NewRefreshHandler(
		logger.With(slog.String("handler", "refresh")), opts.Refresher)))

	mux.Handle("/log", route("log", NewLogHandler(
		logger.With(slog.String("handler", "log")), opts.Logs)))

	mux.Handle("/healthz", NewHealthHandler(opts.Version))
	mux.Handle("/metrics", metrics.Handler())

	// the upgrade needs the raw writer, so /ws skips instrumentation
	if s.hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get("User-Agent")
			client, err := NewClient(s.hub, w, r, name)
			if err != nil {
				s.logger.Error("new websocket client failed", slog.Any("error", err))
				return
			}
			if !s.hub.register(client) {
				client.conn.Close()
				return
			}
			go client.WritePump()
			go client.ReadPump()
		})
	}

	s.handler = requestIDMW(logReqMW(mux))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.GetPort())
	s.logger.Info("starting server...", slog.String("address", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("server stopped")
		return nil
	}
}

func rateLimitMW(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
