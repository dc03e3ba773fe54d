package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Hook is one component of the application lifecycle. Either function may be nil.
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// App starts hooks in the order they were added and stops them in reverse.
type App struct {
	log *slog.Logger

	mu      sync.Mutex
	hooks   []Hook
	started []Hook
	fatal   chan error
}

// New creates an empty App.
func New(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{log: log, fatal: make(chan error, 1)}
}

// Add appends hooks to the lifecycle.
func (a *App) Add(hooks ...Hook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hooks...)
}

// Start runs every OnStart in order. If one fails, the hooks already started
// are stopped again and the error is returned.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.hooks[len(a.started):]
	a.mu.Unlock()

	for _, h := range hooks {
		if h.OnStart != nil {
			if err := h.OnStart(ctx); err != nil {
				startErr := fmt.Errorf("start %s: %w", h.Name, err)
				if stopErr := a.Shutdown(context.WithoutCancel(ctx)); stopErr != nil {
					return errors.Join(startErr, stopErr)
				}
				return startErr
			}
		}
		a.log.Debug("component started", "component", h.Name)

		a.mu.Lock()
		a.started = append(a.started, h)
		a.mu.Unlock()
	}
	return nil
}

// Shutdown runs OnStop for every started hook in reverse order. All hooks are
// stopped even if some fail; the failures are joined.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.started = nil
	a.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		h := started[i]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			a.log.Error("component stop failed", "component", h.Name, "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", h.Name, err))
			continue
		}
		a.log.Debug("component stopped", "component", h.Name)
	}
	return errors.Join(errs...)
}

// Fail reports an error from a running component. Run then shuts the App down
// and returns err. Only the first reported error is kept.
func (a *App) Fail(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

// Run starts the App, blocks until ctx is cancelled or a component fails, and
// then shuts down within shutdownTimeout.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case runErr = <-a.fatal:
		a.log.Error("component failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}
