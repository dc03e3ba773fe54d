package persist_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/persist"
	"github.com/msomdec/persist/internal/repository/gormdb"
	"github.com/msomdec/persist/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock shared by the store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	name string
	open func(t *testing.T, db *sqlite.DB) domain.RecordStore
}

var backends = []backend{
	{
		name: "sql",
		open: func(t *testing.T, db *sqlite.DB) domain.RecordStore {
			return db.Records()
		},
	},
	{
		name: "gorm",
		open: func(t *testing.T, db *sqlite.DB) domain.RecordStore {
			gdb, err := gormdb.Open(db.SqlDB, nil)
			require.NoError(t, err)
			return gormdb.NewRecordStore(gdb)
		},
	},
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrations().Register(persist.Migration{}))
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// forEachBackend runs fn once per record store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, store *persist.Store, clock *testClock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db := newTestDB(t)
			clock := newTestClock()
			store := persist.New(b.open(t, db), persist.WithClock(clock.Now))
			fn(t, store, clock)
		})
	}
}

type session struct {
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles"`
}

func TestStore_GetNeverWritten(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		var v string
		ok, err := store.Get(context.Background(), "missing", &v)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()
		want := session{UserID: 42, Roles: []string{"admin", "editor"}}

		require.NoError(t, store.Create(ctx, "session:42", want))

		got, ok, err := persist.GetAs[session](ctx, store, "session:42")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})
}

func TestStore_CreateDuplicateKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, "k", "v1"))

		err := store.Create(ctx, "k", "v2")
		require.ErrorIs(t, err, domain.ErrDuplicateKey)

		got, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v1", got)
	})
}

func TestStore_SetOverwrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v1"))
		require.NoError(t, store.Set(ctx, "k", "v2"))

		got, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", got)
	})
}

func TestStore_SetClearsExpirationWhenOmitted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v1", persist.ExpiresIn(time.Minute)))
		require.NoError(t, store.Set(ctx, "k", "v2"))

		clock.Advance(24 * time.Hour)
		assert.Zero(t, store.Tidy(ctx))

		got, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", got)
	})
}

func TestStore_LazyExpiration(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v", persist.ExpiresIn(0)))
		clock.Advance(time.Millisecond)

		_, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		assert.False(t, ok, "expired key must read as absent")

		// The row is still physically present, so this goes through the
		// conflict-then-update path.
		require.NoError(t, store.Set(ctx, "k", "v2", persist.ExpiresIn(time.Hour)))

		got, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", got)
	})
}

func TestStore_CreateOnExpiredButPresentKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, "k", "v", persist.ExpiresIn(time.Second)))
		clock.Advance(time.Minute)

		err := store.Create(ctx, "k", "v2")
		require.ErrorIs(t, err, domain.ErrDuplicateKey)

		assert.Equal(t, int64(1), store.Tidy(ctx))
		require.NoError(t, store.Create(ctx, "k", "v2"))
	})
}

func TestStore_RemoveAbsentKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		require.NoError(t, store.Remove(context.Background(), "never-written"))
	})
}

func TestStore_RemoveIgnoresExpiration(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v", persist.ExpiresIn(time.Hour)))
		require.NoError(t, store.Remove(ctx, "k"))

		_, ok, err := persist.GetAs[string](ctx, store, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_TidyOnlyRemovesExpired(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "short", 1, persist.ExpiresIn(time.Second)))
		require.NoError(t, store.Set(ctx, "long", 2, persist.ExpiresIn(time.Hour)))
		require.NoError(t, store.Set(ctx, "forever", 3))

		clock.Advance(time.Minute)
		assert.Equal(t, int64(1), store.Tidy(ctx))
		assert.Zero(t, store.Tidy(ctx), "tidy is idempotent")

		for _, key := range []string{"long", "forever"} {
			_, ok, err := persist.GetAs[int](ctx, store, key)
			require.NoError(t, err)
			assert.True(t, ok, key)
		}
	})
}

func TestStore_InvalidConversion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "not a number"))

		_, _, err := persist.GetAs[int](ctx, store, "k")
		require.ErrorIs(t, err, domain.ErrInvalidConversion)
	})
}

func TestStore_SerializationError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		err := store.Set(ctx, "k", make(chan int))
		require.ErrorIs(t, err, domain.ErrSerialization)

		err = store.Create(ctx, "k", func() {})
		require.ErrorIs(t, err, domain.ErrSerialization)

		// Nothing was written.
		require.NoError(t, store.Create(ctx, "k", "ok"))
	})
}

func TestStore_EmptyKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		err := store.Set(context.Background(), "", "v")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestStore_CancelledContext(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.Set(ctx, "k", "v")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

func TestStore_EndToEnd(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, "a", "x"))
		got, ok, err := persist.GetAs[string](ctx, store, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "x", got)

		require.ErrorIs(t, store.Create(ctx, "a", "y"), domain.ErrDuplicateKey)

		require.NoError(t, store.Set(ctx, "a", "z"))
		got, ok, err = persist.GetAs[string](ctx, store, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "z", got)

		require.NoError(t, store.Remove(ctx, "a"))
		_, ok, err = persist.GetAs[string](ctx, store, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_ConcurrentTidyAndWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			require.NoError(t, store.Set(ctx, fmt.Sprintf("expired-%d", i), i, persist.ExpiresIn(time.Second)))
		}
		clock.Advance(time.Minute)

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("live-%d", i)
				if err := store.Set(ctx, key, i, persist.ExpiresIn(time.Hour)); err != nil {
					errs <- err
					return
				}
				got, ok, err := persist.GetAs[int](ctx, store, key)
				if err != nil {
					errs <- err
					return
				}
				if !ok || got != i {
					errs <- fmt.Errorf("key %s: got %d, %v", key, got, ok)
				}
			}(i)
			go func() {
				defer wg.Done()
				store.Tidy(ctx)
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Error(err)
		}
	})
}

func TestStore_ConcurrentSetSameKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, _ *testClock) {
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Set(ctx, "shared", i))
			}(i)
		}
		wg.Wait()

		got, ok, err := persist.GetAs[int](ctx, store, "shared")
		require.NoError(t, err)
		require.True(t, ok)
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, 10)
	})
}

func TestStore_GobCodec(t *testing.T) {
	db := newTestDB(t)
	store := persist.New(db.Records(), persist.WithCodec(persist.GobCodec{}))
	ctx := context.Background()

	want := session{UserID: 7, Roles: []string{"viewer"}}
	require.NoError(t, store.Set(ctx, "gob", want))

	got, ok, err := persist.GetAs[session](ctx, store, "gob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_ExpiryBeyondStorableRangeIsClamped(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *persist.Store, clock *testClock) {
		ctx := context.Background()

		// Longer than Unix nanoseconds can represent from the test clock.
		require.NoError(t, store.Set(ctx, "k", "v", persist.ExpiresIn(2562047*time.Hour)))
		require.NoError(t, store.Create(ctx, "k2", "v", persist.ExpiresIn(math.MaxInt64)))

		clock.Advance(100 * 365 * 24 * time.Hour)
		assert.Zero(t, store.Tidy(ctx))

		for _, key := range []string{"k", "k2"} {
			got, ok, err := persist.GetAs[string](ctx, store, key)
			require.NoError(t, err)
			require.True(t, ok, key)
			assert.Equal(t, "v", got)
		}
	})
}

// vanishingRecords reports a conflict on every insert but never finds the row.
type vanishingRecords struct {
	domain.RecordStore
	inserts int
}

func (r *vanishingRecords) Insert(context.Context, *domain.StoredRecord) (domain.InsertResult, error) {
	r.inserts++
	return domain.KeyConflict, nil
}

func (r *vanishingRecords) Find(context.Context, string) (*domain.StoredRecord, error) {
	return nil, domain.ErrNotFound
}

func TestStore_SetGivesUpWithoutNotFound(t *testing.T) {
	records := &vanishingRecords{}
	store := persist.New(records)

	err := store.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 3, records.inserts)
}
