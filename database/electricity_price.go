package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotwindow/types"
	"github.com/shopspring/decimal"
)

type electricityPriceRow struct {
	StartAt int64           `db:"start_at"`
	EndAt   int64           `db:"end_at"`
	Price   decimal.Decimal `db:"price_eur_kwh"`
	Source  string          `db:"source"`
}

// UpsertPrices stores all prices in one transaction, replacing intervals with the same start.
func (d *Database) UpsertPrices(ctx context.Context, prices []types.PriceInterval) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("start transaction for prices: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO electricity_price (start_at, end_at, price_eur_kwh, source, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(start_at) DO UPDATE SET
			end_at = excluded.end_at,
			price_eur_kwh = excluded.price_eur_kwh,
			source = excluded.source,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare price upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, p := range prices {
		_, err := stmt.ExecContext(ctx, p.Start.Unix(), p.End.Unix(), p.Price.String(), d.source, now)
		if err != nil {
			return 0, fmt.Errorf("upsert price at %s: %w", p.Start.UTC().Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prices: %w", err)
	}

	d.logger.Debug(fmt.Sprintf("upserted %d prices", len(prices)), slog.String("source", d.source))
	return len(prices), nil
}

// QueryRange returns the intervals starting within [from, to), ordered by start.
func (d *Database) QueryRange(ctx context.Context, from, to time.Time) ([]types.PriceInterval, error) {
	var rows []electricityPriceRow
	err := d.read.SelectContext(ctx, &rows, `
		SELECT start_at, end_at, price_eur_kwh, source
		FROM electricity_price
		WHERE start_at >= ? AND start_at < ?
		ORDER BY start_at ASC`,
		ceilUnix(from), ceilUnix(to))
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}

	prices := make([]types.PriceInterval, len(rows))
	for i, r := range rows {
		prices[i] = types.PriceInterval{
			Start: time.Unix(r.StartAt, 0).UTC(),
			End:   time.Unix(r.EndAt, 0).UTC(),
			Price: r.Price,
		}
	}
	return prices, nil
}

// HasPrices reports whether any interval starts within [from, to).
func (d *Database) HasPrices(ctx context.Context, from, to time.Time) (bool, error) {
	var n int
	err := d.read.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM electricity_price WHERE start_at >= ? AND start_at < ?`,
		ceilUnix(from), ceilUnix(to))
	if err != nil {
		return false, fmt.Errorf("count prices: %w", err)
	}
	return n > 0, nil
}

func (d *Database) PurgeElectricityPrice(ctx context.Context, retentionDays int) error {
	d.logger.Debug("purging table electricity_price")
	before := time.Now().Add(-24 * time.Hour * time.Duration(retentionDays))
	res, err := d.write.ExecContext(ctx, `DELETE FROM electricity_price WHERE end_at <= ?`, before.Unix())
	if err != nil {
		return fmt.Errorf("error when purging electricity_price: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "electricity_price"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from electricity_price", rows))
	}
	return nil
}

// ceilUnix rounds up to whole seconds so sub-second bounds keep their meaning.
func ceilUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}
