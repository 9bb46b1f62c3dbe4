package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angas/spotwindow/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the store was created without a pool.
var ErrNotConfigured = errors.New("pgstore: pool not configured")

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS electricity_prices (
        price_start_at timestamptz PRIMARY KEY,
        price_end_at   timestamptz NOT NULL,
        price_eur_kwh  numeric     NOT NULL,
        source         text        NOT NULL,
        updated_at     timestamptz NOT NULL DEFAULT now()
    );`

	upsertPriceSQL = `INSERT INTO electricity_prices (
        price_start_at,
        price_end_at,
        price_eur_kwh,
        source
    ) VALUES (
        $1,$2,$3::numeric,$4
    )
    ON CONFLICT (price_start_at) DO UPDATE
    SET
        price_end_at  = EXCLUDED.price_end_at,
        price_eur_kwh = EXCLUDED.price_eur_kwh,
        source        = EXCLUDED.source,
        updated_at    = now();`

	listPricesBetweenSQL = `SELECT
        price_start_at,
        price_end_at,
        price_eur_kwh::text
    FROM electricity_prices
    WHERE price_start_at >= $1
      AND price_start_at < $2
    ORDER BY price_start_at;`

	deletePricesBeforeSQL = `DELETE FROM electricity_prices WHERE price_end_at <= $1;`
)

// NewPool configures a PostgreSQL connection pool.
func NewPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// Store keeps electricity prices in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	source string
}

func NewStore(pool *pgxpool.Pool, source string) *Store {
	return &Store{pool: pool, source: source}
}

func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// EnsureSchema creates the prices table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPrices stores all prices in one transaction, replacing intervals with the same start.
func (s *Store) UpsertPrices(ctx context.Context, prices []types.PriceInterval) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin price upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(upsertPriceSQL, p.Start.UTC(), p.End.UTC(), p.Price.String(), s.source)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit prices: %w", err)
	}
	return len(prices), nil
}

// QueryRange returns the intervals starting within [from, to), ordered by start.
func (s *Store) QueryRange(ctx context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listPricesBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list prices between: %w", err)
	}
	defer rows.Close()

	prices := make([]types.PriceInterval, 0)
	for rows.Next() {
		var (
			start, end time.Time
			raw        string
		)
		if err := rows.Scan(&start, &end, &raw); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", raw, err)
		}
		prices = append(prices, types.PriceInterval{Start: start.UTC(), End: end.UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return prices, nil
}

// DeletePricesBefore removes intervals that ended before olderThan and returns how many were deleted.
func (s *Store) DeletePricesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, deletePricesBeforeSQL, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete prices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeElectricityPrice deletes intervals that ended more than retentionDays ago.
func (s *Store) PurgeElectricityPrice(ctx context.Context, retentionDays int) error {
	_, err := s.DeletePricesBefore(ctx, time.Now().AddDate(0, 0, -retentionDays))
	return err
}
