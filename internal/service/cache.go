package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/persist"
)

// CacheService exposes the persistence cache to the HTTP API. Values are
// opaque JSON documents.
type CacheService struct {
	store         *persist.Store
	maxKeyLength  int
	maxValueBytes int64
}

// NewCacheService creates a new CacheService.
func NewCacheService(store *persist.Store, maxKeyLength int, maxValueBytes int64) *CacheService {
	return &CacheService{
		store:         store,
		maxKeyLength:  maxKeyLength,
		maxValueBytes: maxValueBytes,
	}
}

// Create stores value under key and fails with domain.ErrDuplicateKey if the key exists.
// expiresIn is a Go duration string; empty means the key never expires.
func (s *CacheService) Create(ctx context.Context, key string, value json.RawMessage, expiresIn string) error {
	opts, err := s.validateWrite(key, value, expiresIn)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, key, value, opts...)
}

// Set stores value under key, replacing both the value and the expiration of
// any existing entry.
func (s *CacheService) Set(ctx context.Context, key string, value json.RawMessage, expiresIn string) error {
	opts, err := s.validateWrite(key, value, expiresIn)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, value, opts...)
}

// Get returns the value stored under key, or domain.ErrNotFound if the key is
// absent or expired.
func (s *CacheService) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := s.validateKey(key); err != nil {
		return nil, err
	}

	value, ok, err := persist.GetAs[json.RawMessage](ctx, s.store, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return value, nil
}

// Delete removes key. Deleting an absent key succeeds.
func (s *CacheService) Delete(ctx context.Context, key string) error {
	if err := s.validateKey(key); err != nil {
		return err
	}
	return s.store.Remove(ctx, key)
}

// Tidy purges expired entries and returns how many were removed.
func (s *CacheService) Tidy(ctx context.Context) int64 {
	return s.store.Tidy(ctx)
}

func (s *CacheService) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", domain.ErrInvalidInput)
	}
	if len(key) > s.maxKeyLength {
		return fmt.Errorf("%w: key must be at most %d bytes", domain.ErrInvalidInput, s.maxKeyLength)
	}
	return nil
}

func (s *CacheService) validateWrite(key string, value json.RawMessage, expiresIn string) ([]persist.WriteOption, error) {
	if err := s.validateKey(key); err != nil {
		return nil, err
	}

	if len(value) == 0 {
		return nil, fmt.Errorf("%w: value is required", domain.ErrInvalidInput)
	}
	if int64(len(value)) > s.maxValueBytes {
		return nil, fmt.Errorf("%w: value must be at most %d bytes", domain.ErrInvalidInput, s.maxValueBytes)
	}
	if !json.Valid(value) {
		return nil, fmt.Errorf("%w: value is not valid JSON", domain.ErrInvalidInput)
	}

	if expiresIn == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expiresIn %q", domain.ErrInvalidInput, expiresIn)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w: expiresIn must be positive", domain.ErrInvalidInput)
	}
	return []persist.WriteOption{persist.ExpiresIn(d)}, nil
}
