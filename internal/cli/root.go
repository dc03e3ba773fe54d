// Package cli implements the persist command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/msomdec/persist/internal/config"
	"github.com/msomdec/persist/internal/logging"
	"github.com/spf13/cobra"
)

// globals is the state shared by all commands, filled in before any RunE.
type globals struct {
	out io.Writer

	databasePath string
	driver       string
	logLevel     string
	logFormat    string

	cfg      *config.Config
	log      *slog.Logger
	closeLog io.Closer
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, out io.Writer, args []string) int {
	g := &globals{out: out}
	defer g.close()

	cmd := newRootCommand(g)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return ExitCodeSuccess
}

func newRootCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "persist",
		Short:         "Key-value persistence cache backed by SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(g.out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.databasePath, "database", "", "SQLite database path (DATABASE_PATH)")
	flags.StringVar(&g.driver, "driver", "", "record store driver: sql or gorm (DATABASE_DRIVER)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (LOG_LEVEL)")
	flags.StringVar(&g.logFormat, "log-format", "", "log format: text, json, both (LOG_FORMAT)")

	cmd.AddCommand(newServeCommand(g))
	cmd.AddCommand(newMigrateCommand(g))
	cmd.AddCommand(newRevertCommand(g))
	cmd.AddCommand(newTidyCommand(g))
	cmd.AddCommand(newTokenCommand(g))
	return cmd
}

// secretPolicy decides whether a command needs JWT_SECRET.
type secretPolicy int

const (
	secretOptional secretPolicy = iota
	secretRequired
	// secretIfAuth requires the secret only when AUTH_REQUIRED is set.
	secretIfAuth
)

// setup loads configuration, applies flag overrides and configures logging.
func (g *globals) setup(cmd *cobra.Command, secret secretPolicy) error {
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("database") {
		cfg.Database.Path = g.databasePath
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = g.driver
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = g.logFormat
	}

	requireSecret := secret == secretRequired || (secret == secretIfAuth && cfg.Auth.Required)
	if err := cfg.Validate(requireSecret); err != nil {
		return configError(err)
	}

	log, closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return configError(err)
	}

	g.cfg = cfg
	g.log = log
	g.closeLog = closer
	return nil
}

func (g *globals) close() {
	if g.closeLog != nil {
		g.closeLog.Close()
	}
}

func noArgs(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return usageErrorf("%s does not accept positional arguments", name)
		}
		return nil
	}
}
