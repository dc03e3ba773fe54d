package domain

import "context"

// ColumnType is a portable column type understood by every Schema implementation.
type ColumnType string

const (
	ColumnString    ColumnType = "string"
	ColumnBytes     ColumnType = "bytes"
	ColumnTimestamp ColumnType = "timestamp"
)

// Column describes one column of a Table.
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	Required   bool
}

// Table describes a table to be created by a migration.
type Table struct {
	Name    string
	Columns []Column
}

// Schema is handed to migrations so they can change the database layout
// without knowing which dialect they run against.
type Schema interface {
	CreateTable(ctx context.Context, table Table) error
	DropTable(ctx context.Context, name string) error
	CreateIndex(ctx context.Context, table, name string, columns ...string) error
}

// Migration is a reversible schema change. Name must be stable across releases
// because it is what the runner records as applied.
type Migration interface {
	Name() string
	Prepare(ctx context.Context, schema Schema) error
	Revert(ctx context.Context, schema Schema) error
}
