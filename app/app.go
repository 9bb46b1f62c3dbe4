// Package app wires the configured stores, feeds and providers for the service and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/cache"
	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/database"
	"github.com/angas/spotwindow/entsoe"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/pgstore"
	"github.com/angas/spotwindow/provider"
	"github.com/angas/spotwindow/spothinta"
	"github.com/angas/spotwindow/task"
	"github.com/angas/spotwindow/types"
)

// Store is the configured price store. SQLite is nil with the postgres driver.
type Store struct {
	Prices     types.PriceStore
	Maintainer task.Maintainer
	SQLite     *database.Database
	close      func()
}

func OpenStore(ctx context.Context, cnfg *config.AppConfig) (*Store, error) {
	switch cnfg.Database.GetDriver() {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cnfg.Database.DSN, cnfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		pg := pgstore.NewStore(pool, sourceName(cnfg))
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &Store{Prices: pg, Maintainer: pg, close: pg.Close}, nil

	default:
		db, err := database.New(ctx, cnfg.Database.GetPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetSource(sourceName(cnfg))
		return &Store{Prices: db, Maintainer: db, SQLite: db, close: db.Close}, nil
	}
}

func (s *Store) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

func sourceName(cnfg *config.AppConfig) string {
	if cnfg.Entsoe.Token == "" {
		return "spot-hinta"
	}
	return database.DefaultSource
}

// Feeds lists the ingestion feeds in the order they are tried. ENTSO-E needs a token, the
// spot-hinta.fi feed is always available and doubles as the live fallback provider.
func Feeds(cnfg *config.AppConfig, clock hours.Clock) ([]types.PriceFeed, spothinta.SpotHinta) {
	live := spothinta.New(cnfg.SpotHinta.BaseUrl, clock)
	feeds := make([]types.PriceFeed, 0, 2)
	if cnfg.Entsoe.Token != "" {
		feeds = append(feeds, entsoe.New(cnfg.Entsoe.BaseUrl, cnfg.Entsoe.Token, cnfg.Entsoe.Domain, cnfg.Entsoe.GetVat()))
	} else {
		slog.Default().Warn("no ENTSO-E token configured, prices are fetched from spot-hinta.fi only")
	}
	return append(feeds, live), live
}

// PriceProvider serves stored prices and falls back to the live feed.
func PriceProvider(logger *slog.Logger, clock hours.Clock, store types.PriceStore, live types.PriceFeed) types.PriceProvider {
	return provider.NewFailover(
		logger.With(slog.String("module", "provider")),
		clock,
		provider.NewStoreProvider(logger.With(slog.String("provider", "store")), clock, store),
		provider.NewFeedProvider(logger.With(slog.String("provider", "spot-hinta")), clock, live))
}

func NewCache(ctx context.Context, logger *slog.Logger, cnfg config.AppConfigCache) (cache.Cache, error) {
	if cnfg.GetBackend() == "redis" {
		r := cache.NewRedis(cnfg.Redis.Addr, cnfg.Redis.Password, cnfg.Redis.DB, cnfg.Redis.Prefix)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			// lookups fail soft, the handlers keep serving uncached responses
			logger.Warn("redis not reachable", slog.String("addr", cnfg.Redis.Addr), slog.Any("error", err))
		}
		return r, nil
	}
	m, err := cache.NewMemory(cnfg.GetSize())
	if err != nil {
		return nil, err
	}
	return m, nil
}
