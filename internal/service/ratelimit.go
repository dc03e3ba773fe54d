package service

import (
	"context"
	"sync"
	"time"
)

const (
	bucketCleanupInterval = 5 * time.Minute
	bucketIdleTimeout     = 10 * time.Minute
)

// TokenBucket is a simple in-memory per-key rate limiter using the token bucket algorithm.
// It is safe for concurrent use. Stale buckets are removed while Start is running.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens added per second
	capacity float64 // maximum tokens

	stop chan struct{}
	done chan struct{}
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a rate limiter that allows up to capacity tokens per key,
// refilling at the given rate (tokens per second).
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	return &TokenBucket{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
	}
}

// Allow reports whether the given key is allowed to proceed under the rate limit.
// Each call consumes one token. Returns false if the bucket is empty.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*tb.rate, tb.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Start launches the background cleanup of idle buckets.
func (tb *TokenBucket) Start(ctx context.Context) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.stop != nil {
		return nil
	}
	tb.stop = make(chan struct{})
	tb.done = make(chan struct{})
	go tb.cleanup(ctx, tb.stop, tb.done)
	return nil
}

// Shutdown stops the background cleanup.
func (tb *TokenBucket) Shutdown(ctx context.Context) error {
	tb.mu.Lock()
	stop, done := tb.stop, tb.done
	tb.stop, tb.done = nil, nil
	tb.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cleanup runs periodically and removes buckets that haven't been accessed recently.
func (tb *TokenBucket) cleanup(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(bucketCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			tb.removeIdle(time.Now().Add(-bucketIdleTimeout))
		}
	}
}

func (tb *TokenBucket) removeIdle(cutoff time.Time) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	removed := 0
	for key, b := range tb.buckets {
		if b.last.Before(cutoff) {
			delete(tb.buckets, key)
			removed++
		}
	}
	return removed
}
