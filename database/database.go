package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"
)

const (
	DefaultSource = "entsoe"

	maxReaders  = 10
	connMaxIdle = time.Minute
)

// Database keeps electricity prices and the application log in a SQLite file. Reads go
// through a pooled sqlx handle, all writes through a single connection.
type Database struct {
	logger *slog.Logger
	read   *sqlx.DB
	write  *sql.DB
	path   string
	source string
}

// pragmas run on every new connection.
const pragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	PRAGMA trusted_schema = OFF;
`

var registerDriver sync.Once

func New(ctx context.Context, path string) (*Database, error) {
	registerDriver.Do(func() {
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), pragmas, nil)
			return err
		})
	})

	read, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s for reading: %w", path, err)
	}
	configurePool(read.DB, maxReaders)

	write, err := sql.Open("sqlite", path)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}
	configurePool(write, 1)

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
		source: DefaultSource,
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return d, nil
}

func configurePool(db *sql.DB, maxOpen int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxIdleTime(connMaxIdle)
}

func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetSource names the feed stored alongside upserted prices.
func (d *Database) SetSource(source string) {
	d.source = source
}

func (d *Database) Ping(ctx context.Context) error {
	return d.read.PingContext(ctx)
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}
