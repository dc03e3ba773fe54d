package cli

import (
	"fmt"
	"time"

	"github.com/msomdec/persist/internal/service"
	"github.com/spf13/cobra"
)

func newTokenCommand(g *globals) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the cache API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("token requires exactly one subject")
			}
			if err := g.setup(cmd, secretRequired); err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = g.cfg.Auth.TokenTTL
			} else if ttl <= 0 {
				return usageErrorf("--ttl must be positive")
			}

			token, err := service.NewTokenService(g.cfg.Auth.JWTSecret, ttl).Issue(args[0])
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			_, err = fmt.Fprintln(g.out, token)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (TOKEN_TTL)")
	return cmd
}
