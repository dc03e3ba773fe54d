package cli

import (
	"fmt"
	"strings"

	"github.com/msomdec/persist/internal/app"
	"github.com/msomdec/persist/internal/repository/sqlite/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cache table if it does not exist",
		Args:  noArgs("migrate"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(cmd, secretOptional); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := app.OpenAndMigrate(ctx, g.cfg.Database)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer db.Close()

			applied, err := migrations.Applied(ctx, db.SqlDB)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, err = fmt.Fprintf(g.out, "applied migrations: %s\n", strings.Join(applied, ", "))
			return err
		},
	}
}

func newRevertCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "revert",
		Short: "Revert the most recent batch of migrations, dropping the cache table",
		Args:  noArgs("revert"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(cmd, secretOptional); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := app.OpenDatabase(g.cfg.Database)
			if err != nil {
				return fmt.Errorf("revert: %w", err)
			}
			defer db.Close()

			if err := db.Revert(ctx); err != nil {
				return fmt.Errorf("revert: %w", err)
			}

			applied, err := migrations.Applied(ctx, db.SqlDB)
			if err != nil {
				return fmt.Errorf("revert: %w", err)
			}
			_, err = fmt.Fprintf(g.out, "remaining migrations: %d\n", len(applied))
			return err
		},
	}
}
