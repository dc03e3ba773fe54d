package persist

import (
	"log/slog"
	"time"

	"github.com/msomdec/persist/internal/metrics"
)

// DefaultReapInterval is how often the reaper purges expired records.
const DefaultReapInterval = time.Minute

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used for stored payloads.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithReapInterval sets the interval between reaper sweeps.
func WithReapInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reapInterval = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. The store adds a component attribute.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WriteOption configures a single Create or Set call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	expiresIn *time.Duration
}

// ExpiresIn makes the written key expire d after the write. Without it the key
// never expires. A zero or negative d expires the key immediately.
func ExpiresIn(d time.Duration) WriteOption {
	return func(o *writeOptions) { o.expiresIn = &d }
}
