package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/msomdec/persist/internal/service"
)

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	tb := service.NewTokenBucket(1, 3) // rate=1/s, capacity=3

	// Should allow 3 requests immediately (full bucket).
	for i := 0; i < 3; i++ {
		if !tb.Allow("test-key") {
			t.Fatalf("request %d should be allowed (bucket not yet empty)", i+1)
		}
	}

	// 4th request should be denied (bucket empty).
	if tb.Allow("test-key") {
		t.Fatal("4th request should be denied (bucket empty)")
	}
}

func TestTokenBucket_DifferentKeysAreIndependent(t *testing.T) {
	tb := service.NewTokenBucket(1, 1) // capacity=1

	if !tb.Allow("ip-a") {
		t.Fatal("ip-a first request should be allowed")
	}
	if tb.Allow("ip-a") {
		t.Fatal("ip-a second request should be denied")
	}

	// ip-b has its own bucket.
	if !tb.Allow("ip-b") {
		t.Fatal("ip-b first request should be allowed (independent bucket)")
	}
}

func TestTokenBucket_ZeroRateNeverRefills(t *testing.T) {
	tb := service.NewTokenBucket(0, 2) // never refills

	if !tb.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if !tb.Allow("k") {
		t.Fatal("second request should be allowed")
	}
	if tb.Allow("k") {
		t.Fatal("third request should be denied (no refill)")
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	tb := service.NewTokenBucket(100, 1) // one token every 10ms

	if !tb.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if tb.Allow("k") {
		t.Fatal("second request should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !tb.Allow("k") {
		t.Fatal("request after refill should be allowed")
	}
}

func TestTokenBucket_StartShutdown(t *testing.T) {
	tb := service.NewTokenBucket(1, 1)
	ctx := context.Background()

	if err := tb.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tb.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := tb.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := tb.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
