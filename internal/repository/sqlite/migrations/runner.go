package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/msomdec/persist/internal/domain"
)

// Registry holds the migrations an application wants applied, in registration
// order. Applied migrations are tracked in a schema_migrations table, grouped
// into batches so that the most recent Run can be reverted as a unit.
type Registry struct {
	mu         sync.Mutex
	migrations []domain.Migration
	names      map[string]bool
}

// NewRegistry creates an empty migration registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register adds migrations to the registry. A migration name may only be
// registered once; later duplicates fail with domain.ErrDuplicateMigration and
// nothing from the call is registered.
func (r *Registry) Register(ms ...domain.Migration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		name := m.Name()
		if name == "" {
			return fmt.Errorf("%w: migration name is empty", domain.ErrInvalidInput)
		}
		if r.names[name] || seen[name] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMigration, name)
		}
		seen[name] = true
	}

	for _, m := range ms {
		r.names[m.Name()] = true
		r.migrations = append(r.migrations, m)
	}
	return nil
}

// Migrations returns the registered migrations in registration order.
func (r *Registry) Migrations() []domain.Migration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// Run applies all registered migrations that have not been applied yet.
// Every migration applied by one call is recorded under the same batch number.
func (r *Registry) Run(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	batch, err := nextBatch(ctx, db)
	if err != nil {
		return fmt.Errorf("next batch: %w", err)
	}

	for _, m := range r.Migrations() {
		if applied[m.Name()] {
			slog.Debug("migration already applied", "name", m.Name())
			continue
		}

		if err := applyMigration(ctx, db, m, batch); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name(), err)
		}
		slog.Info("migration applied", "name", m.Name(), "batch", batch)
	}

	return nil
}

// Revert reverts every migration of the latest batch, newest first.
// It is a no-op when nothing has been applied.
func (r *Registry) Revert(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	names, err := lastBatch(ctx, db)
	if err != nil {
		return fmt.Errorf("get last batch: %w", err)
	}

	byName := make(map[string]domain.Migration)
	for _, m := range r.Migrations() {
		byName[m.Name()] = m
	}

	for _, name := range names {
		m, ok := byName[name]
		if !ok {
			return fmt.Errorf("migration %s is applied but not registered", name)
		}
		if err := revertMigration(ctx, db, m); err != nil {
			return fmt.Errorf("revert migration %s: %w", name, err)
		}
		slog.Info("migration reverted", "name", name)
	}

	return nil
}

// Applied returns the names of applied migrations in the order they were applied.
func Applied(ctx context.Context, db *sql.DB) ([]string, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM schema_migrations ORDER BY batch, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			batch INTEGER NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func getAppliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func nextBatch(ctx context.Context, db *sql.DB) (int, error) {
	var batch int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(batch), 0) + 1 FROM schema_migrations").Scan(&batch)
	return batch, err
}

func lastBatch(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM schema_migrations
		WHERE batch = (SELECT MAX(batch) FROM schema_migrations)
		ORDER BY rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, m domain.Migration, batch int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.Prepare(ctx, NewSchema(tx)); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (name, batch) VALUES (?, ?)", m.Name(), batch); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

func revertMigration(ctx context.Context, db *sql.DB, m domain.Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.Revert(ctx, NewSchema(tx)); err != nil {
		return fmt.Errorf("revert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE name = ?", m.Name()); err != nil {
		return fmt.Errorf("forget migration: %w", err)
	}

	return tx.Commit()
}
