package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation owns its migration registry and strategy, ensuring
// the entire backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Revert(ctx context.Context) error
	Close() error
}
