package gormdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Logger routes gorm's log output to slog. Missing rows and key conflicts are
// expected by the cache and logged at debug level only.
type Logger struct {
	log   *slog.Logger
	level logger.LogLevel
}

// NewLogger returns a gorm logger writing warnings and errors to log.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log.With("component", "gorm"), level: logger.Warn}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *Logger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && (errors.Is(err, gorm.ErrRecordNotFound) || IsDuplicateKey(err)):
		sql, rows := fc()
		l.log.DebugContext(ctx, "gorm query", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case err != nil && l.level >= logger.Error:
		sql, rows := fc()
		l.log.ErrorContext(ctx, "gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "gorm slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.DebugContext(ctx, "gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
