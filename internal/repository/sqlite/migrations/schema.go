package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/msomdec/persist/internal/domain"
)

// Schema implements domain.Schema by rendering SQLite DDL and executing it
// inside the migration's transaction.
type Schema struct {
	tx *sql.Tx
}

// NewSchema returns a schema builder bound to tx.
func NewSchema(tx *sql.Tx) *Schema {
	return &Schema{tx: tx}
}

func (s *Schema) CreateTable(ctx context.Context, table domain.Table) error {
	stmt, err := CreateTableSQL(table)
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}
	return nil
}

func (s *Schema) DropTable(ctx context.Context, name string) error {
	if _, err := s.tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

func (s *Schema) CreateIndex(ctx context.Context, table, name string, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: index %s has no columns", domain.ErrInvalidInput, name)
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(name), quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := s.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement for table.
func CreateTableSQL(table domain.Table) (string, error) {
	if table.Name == "" {
		return "", fmt.Errorf("%w: table name is empty", domain.ErrInvalidInput)
	}
	if len(table.Columns) == 0 {
		return "", fmt.Errorf("%w: table %s has no columns", domain.ErrInvalidInput, table.Name)
	}

	defs := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		typ, err := columnType(c.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		def := quoteIdent(c.Name) + " " + typ
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		if c.PrimaryKey || c.Required {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(table.Name), strings.Join(defs, ",\n\t")), nil
}

// Timestamps are stored as Unix nanoseconds so range filters compare numerically.
func columnType(t domain.ColumnType) (string, error) {
	switch t {
	case domain.ColumnString:
		return "TEXT", nil
	case domain.ColumnBytes:
		return "BLOB", nil
	case domain.ColumnTimestamp:
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("%w: unknown column type %q", domain.ErrInvalidInput, t)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
