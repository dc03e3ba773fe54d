package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/persist/internal/config"
	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/metrics"
	"github.com/msomdec/persist/internal/persist"
	"github.com/msomdec/persist/internal/repository/gormdb"
	"github.com/msomdec/persist/internal/repository/sqlite"
)

// OpenDatabase opens the SQLite database and registers the cache schema
// migration. It does not migrate.
func OpenDatabase(cfg config.DatabaseConfig) (*sqlite.DB, error) {
	db, err := sqlite.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrations().Register(persist.Migration{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	return db, nil
}

// OpenAndMigrate opens the database and applies pending migrations.
func OpenAndMigrate(ctx context.Context, cfg config.DatabaseConfig) (*sqlite.DB, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// NewRecordStore returns the record store selected by driver.
func NewRecordStore(db *sqlite.DB, driver string, log *slog.Logger) (domain.RecordStore, error) {
	switch driver {
	case config.DriverSQL:
		return db.Records(), nil
	case config.DriverGorm:
		gdb, err := gormdb.Open(db.SqlDB, log)
		if err != nil {
			return nil, err
		}
		return gormdb.NewRecordStore(gdb), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", domain.ErrInvalidInput, driver)
	}
}

// NewStore builds the persistence cache over db. m may be nil.
func NewStore(db *sqlite.DB, cfg *config.Config, log *slog.Logger, m *metrics.CacheMetrics) (*persist.Store, error) {
	records, err := NewRecordStore(db, cfg.Database.Driver, log)
	if err != nil {
		return nil, err
	}

	codec, err := codecFor(cfg.Persist.Codec)
	if err != nil {
		return nil, err
	}

	return persist.New(records,
		persist.WithCodec(codec),
		persist.WithReapInterval(cfg.Persist.ReapInterval),
		persist.WithLogger(log),
		persist.WithMetrics(m),
	), nil
}

func codecFor(name string) (persist.Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return persist.JSONCodec{}, nil
	case "gob":
		return persist.GobCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", domain.ErrInvalidInput, name)
	}
}
