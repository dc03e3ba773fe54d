package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/persist/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection pool together with the migration registry
// that owns its schema. It implements domain.Database.
type DB struct {
	SqlDB      *sql.DB
	migrations *migrations.Registry
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode, foreign keys and a busy timeout.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Enable foreign key enforcement.
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db, migrations: migrations.NewRegistry()}, nil
}

// Migrations returns the registry migrations must be registered with before Migrate.
func (d *DB) Migrations() *migrations.Registry {
	return d.migrations
}

// Migrate applies every registered migration that has not been applied yet.
func (d *DB) Migrate(ctx context.Context) error {
	return d.migrations.Run(ctx, d.SqlDB)
}

// Revert reverts the most recently applied batch of migrations.
func (d *DB) Revert(ctx context.Context) error {
	return d.migrations.Revert(ctx, d.SqlDB)
}

// Records returns the raw-SQL record store for the persistence cache.
func (d *DB) Records() *RecordStore {
	return NewRecordStore(d)
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.SqlDB.Close()
}
