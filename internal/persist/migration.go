package persist

import (
	"context"

	"github.com/msomdec/persist/internal/domain"
)

// Migration creates the table backing the persistence cache. Register it once
// with the database's migration registry before the store is first used.
type Migration struct{}

func (Migration) Name() string { return "create_persist_records" }

func (Migration) Prepare(ctx context.Context, schema domain.Schema) error {
	err := schema.CreateTable(ctx, domain.Table{
		Name: domain.RecordTable,
		Columns: []domain.Column{
			{Name: "id", Type: domain.ColumnString, PrimaryKey: true},
			{Name: "data", Type: domain.ColumnBytes, Required: true},
			{Name: "expires", Type: domain.ColumnTimestamp},
		},
	})
	if err != nil {
		return err
	}
	return schema.CreateIndex(ctx, domain.RecordTable, "idx_persist_records_expires", "expires")
}

func (Migration) Revert(ctx context.Context, schema domain.Schema) error {
	return schema.DropTable(ctx, domain.RecordTable)
}
