package service_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/persist"
	"github.com/msomdec/persist/internal/repository/sqlite"
	"github.com/msomdec/persist/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestCacheService(t *testing.T) (*service.CacheService, *fakeClock) {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrations().Register(persist.Migration{}))
	require.NoError(t, db.Migrate(context.Background()))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := persist.New(db.Records(), persist.WithClock(clock.Now))
	return service.NewCacheService(store, 16, 64), clock
}

func TestCacheService_CreateGet(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "greeting", json.RawMessage(`{"text": "hello"}`), ""))

	got, err := svc.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, string(got))

	err = svc.Create(ctx, "greeting", json.RawMessage(`1`), "")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestCacheService_SetExpires(t *testing.T) {
	svc, clock := newTestCacheService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", json.RawMessage(`[1,2,3]`), "1m"))

	got, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(got))

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = svc.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, int64(1), svc.Tidy(ctx))
}

func TestCacheService_Delete(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", json.RawMessage(`"v"`), ""))
	require.NoError(t, svc.Delete(ctx, "k"))
	require.NoError(t, svc.Delete(ctx, "k"))

	_, err := svc.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheService_Validation(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		key       string
		value     string
		expiresIn string
	}{
		{name: "empty key", key: "", value: `1`},
		{name: "long key", key: strings.Repeat("k", 17), value: `1`},
		{name: "empty value", key: "k", value: ``},
		{name: "invalid json", key: "k", value: `{nope`},
		{name: "value too large", key: "k", value: `"` + strings.Repeat("x", 64) + `"`},
		{name: "bad duration", key: "k", value: `1`, expiresIn: "soon"},
		{name: "negative duration", key: "k", value: `1`, expiresIn: "-5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Set(ctx, tt.key, json.RawMessage(tt.value), tt.expiresIn)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
