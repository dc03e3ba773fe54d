package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/metrics"
)

// maxSetAttempts bounds how often Set retries when the conflicting row is
// removed between the failed insert and the update.
const maxSetAttempts = 3

// Store is a typed key-value cache with optional per-key expiration, layered
// over any domain.RecordStore. It is safe for concurrent use.
type Store struct {
	records      domain.RecordStore
	codec        Codec
	reapInterval time.Duration
	now          func() time.Time
	log          *slog.Logger
	metrics      *metrics.CacheMetrics

	mu     sync.Mutex
	reaper *reaper
}

// New creates a Store on top of records. The reaper is not running until Start.
func New(records domain.RecordStore, opts ...Option) *Store {
	s := &Store{
		records:      records,
		codec:        JSONCodec{},
		reapInterval: DefaultReapInterval,
		now:          time.Now,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "persist")
	return s
}

// Create stores value under key. It fails with domain.ErrDuplicateKey if a
// record for key already exists, expired or not.
func (s *Store) Create(ctx context.Context, key string, value any, opts ...WriteOption) error {
	started := time.Now()

	rec, err := s.newRecord(key, value, opts)
	if err != nil {
		s.metrics.ObserveOperation("create", metrics.OutcomeError, started)
		return fmt.Errorf("create %q: %w", key, err)
	}

	result, err := s.records.Insert(ctx, rec)
	switch result {
	case domain.Inserted:
		s.metrics.ObserveOperation("create", metrics.OutcomeOK, started)
		return nil
	case domain.KeyConflict:
		s.metrics.ObserveOperation("create", metrics.OutcomeConflict, started)
		return fmt.Errorf("create %q: %w", key, domain.ErrDuplicateKey)
	default:
		s.metrics.ObserveOperation("create", metrics.OutcomeError, started)
		return fmt.Errorf("create %q: %w", key, err)
	}
}

// Set stores value under key, replacing any existing record. Payload and
// expiration are both overwritten; without ExpiresIn the key never expires.
func (s *Store) Set(ctx context.Context, key string, value any, opts ...WriteOption) error {
	started := time.Now()

	err := s.set(ctx, key, value, opts)
	if err != nil {
		s.metrics.ObserveOperation("set", metrics.OutcomeError, started)
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.metrics.ObserveOperation("set", metrics.OutcomeOK, started)
	return nil
}

func (s *Store) set(ctx context.Context, key string, value any, opts []WriteOption) error {
	rec, err := s.newRecord(key, value, opts)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		// Insert first: the primary key check is atomic, a lookup is not.
		result, err := s.records.Insert(ctx, rec)
		switch result {
		case domain.Inserted:
			return nil
		case domain.InsertFailed:
			return err
		}

		existing, err := s.records.Find(ctx, key)
		if err == nil {
			if existing.Expired(s.now()) {
				s.log.Debug("overwriting expired record", "key", key)
			}
			existing.Data = rec.Data
			existing.ExpiresAt = rec.ExpiresAt
			err = s.records.Update(ctx, existing)
			if err == nil {
				return nil
			}
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if attempt == maxSetAttempts {
			// Not %w: the key exists as far as the caller is concerned.
			return fmt.Errorf("record kept disappearing after %d attempts: %v", attempt, err)
		}
		s.log.Debug("record removed during set, retrying insert", "key", key, "attempt", attempt)
	}
}

// Get decodes the value stored under key into dst, which must be a pointer.
// It reports false without error when the key is absent or expired.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	started := time.Now()

	rec, err := s.records.FindLive(ctx, key, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.ObserveOperation("get", metrics.OutcomeMiss, started)
			return false, nil
		}
		s.metrics.ObserveOperation("get", metrics.OutcomeError, started)
		return false, fmt.Errorf("get %q: %w", key, err)
	}

	if err := s.codec.Unmarshal(rec.Data, dst); err != nil {
		s.metrics.ObserveOperation("get", metrics.OutcomeError, started)
		return false, fmt.Errorf("get %q: %w: %w", key, domain.ErrInvalidConversion, err)
	}

	s.metrics.ObserveOperation("get", metrics.OutcomeHit, started)
	return true, nil
}

// GetAs is Get for a value of type T.
func GetAs[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var v T
	ok, err := s.Get(ctx, key, &v)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// Remove deletes the record for key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	started := time.Now()

	if err := s.records.Delete(ctx, key); err != nil {
		s.metrics.ObserveOperation("remove", metrics.OutcomeError, started)
		return fmt.Errorf("remove %q: %w", key, err)
	}
	s.metrics.ObserveOperation("remove", metrics.OutcomeOK, started)
	return nil
}

// Tidy deletes every record that expired before now and returns how many were
// removed. Failures are logged, never returned.
func (s *Store) Tidy(ctx context.Context) int64 {
	removed, err := s.records.DeleteExpired(ctx, s.now())
	s.metrics.ObserveTidy(removed, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Debug("tidy cancelled", "error", err)
		} else {
			s.log.Warn("tidy failed", "error", err)
		}
		return 0
	}
	return removed
}

func (s *Store) newRecord(key string, value any, opts []WriteOption) (*domain.StoredRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrInvalidInput)
	}

	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := s.codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}

	rec := &domain.StoredRecord{Key: key, Data: data}
	if o.expiresIn != nil {
		expiresAt := s.now().Add(*o.expiresIn)
		if expiresAt.After(domain.MaxExpiry) {
			expiresAt = domain.MaxExpiry
		}
		rec.ExpiresAt = &expiresAt
	}
	return rec, nil
}
