// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/msomdec/persist/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds a logger from cfg, installs it as the slog default and
// returns it. The returned closer flushes the rotated log file, if any.
func Setup(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// New builds a logger writing text to stdout and/or JSON to stderr depending
// on cfg.Format, plus JSON to a rotated file when cfg.File is set.
func New(cfg config.LoggingConfig, stdout, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handlers = append(handlers, slog.NewTextHandler(stdout, opts))
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(stderr, opts))
	case "both", "":
		handlers = append(handlers,
			slog.NewTextHandler(stdout, opts),
			slog.NewJSONHandler(stderr, opts),
		)
	default:
		return nil, nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, opts))
		closer = rotator
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(slog.NewMultiHandler(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
