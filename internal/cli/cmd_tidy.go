package cli

import (
	"fmt"

	"github.com/msomdec/persist/internal/app"
	"github.com/spf13/cobra"
)

func newTidyCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tidy",
		Short: "Delete expired cache entries once and exit",
		Args:  noArgs("tidy"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(cmd, secretOptional); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := app.OpenAndMigrate(ctx, g.cfg.Database)
			if err != nil {
				return fmt.Errorf("tidy: %w", err)
			}
			defer db.Close()

			store, err := app.NewStore(db, g.cfg, g.log, nil)
			if err != nil {
				return fmt.Errorf("tidy: %w", err)
			}

			removed := store.Tidy(ctx)
			_, err = fmt.Fprintf(g.out, "removed %d expired entries\n", removed)
			return err
		},
	}
}
