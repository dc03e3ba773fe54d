package persist

import (
	"context"
	"time"
)

type reaper struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the background reaper. It runs until Shutdown is called or
// ctx is cancelled. Calling Start on a running store is a no-op.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reaper != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &reaper{cancel: cancel, done: make(chan struct{})}
	go s.runReaper(ctx, r.done)
	s.reaper = r
	return nil
}

// Shutdown stops the reaper and waits for an in-flight sweep to finish, or for
// ctx to expire.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	r := s.reaper
	s.reaper = nil
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) runReaper(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	s.log.Info("reaper started", "interval", s.reapInterval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reaper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one tidy, bounded by the reap interval.
func (s *Store) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.reapInterval)
	defer cancel()

	removed := s.Tidy(ctx)
	s.log.Debug("reaper sweep completed", "removed", removed)
}
