package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/persist/internal/app"
	"github.com/spf13/cobra"
)

func newServeCommand(g *globals) *cobra.Command {
	var (
		port         string
		reapInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache HTTP API and the expiration reaper",
		Args:  noArgs("serve"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(cmd, secretIfAuth); err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				g.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("reap-interval") {
				if reapInterval <= 0 {
					return usageErrorf("--reap-interval must be positive")
				}
				g.cfg.Persist.ReapInterval = reapInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := app.NewServer(ctx, g.cfg, g.log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if err := srv.Run(ctx, g.cfg.Server.ShutdownTimeout); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			g.log.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP listen port (PORT)")
	cmd.Flags().DurationVar(&reapInterval, "reap-interval", 0, "interval between expiration sweeps (PERSIST_REAP_INTERVAL)")
	return cmd
}
