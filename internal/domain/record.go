package domain

import (
	"context"
	"math"
	"time"
)

// RecordTable is the table backing the persistence cache. The leading
// underscore keeps it apart from application tables.
const RecordTable = "_persist_records"

// MaxExpiry is the latest expiration a store can hold. Expirations are
// persisted as Unix nanoseconds, which overflow after this instant.
var MaxExpiry = time.Unix(0, math.MaxInt64).UTC()

// StoredRecord is a single key/payload/expiration row of the persistence table.
type StoredRecord struct {
	Key       string
	Data      []byte     // Opaque, produced and consumed by the caller's codec
	ExpiresAt *time.Time // nil means the record never expires
}

// Expired reports whether the record is logically absent at the given time.
func (r *StoredRecord) Expired(at time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(at)
}

// InsertResult classifies the outcome of RecordStore.Insert.
type InsertResult int

const (
	// Inserted means the row was written.
	Inserted InsertResult = iota
	// KeyConflict means a row with the same key already exists. The error is nil.
	KeyConflict
	// InsertFailed means the store failed for any other reason. The error is set.
	InsertFailed
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case KeyConflict:
		return "key_conflict"
	case InsertFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordStore is the row-level capability the persistence cache needs from a
// database collaborator. Implementations exist for raw SQL and for gorm.
type RecordStore interface {
	Insert(ctx context.Context, record *StoredRecord) (InsertResult, error)
	// Find returns the row for key regardless of its expiration.
	Find(ctx context.Context, key string) (*StoredRecord, error)
	// FindLive returns the row for key only when it has not expired at the given time.
	FindLive(ctx context.Context, key string, at time.Time) (*StoredRecord, error)
	// Update overwrites data and expiration. Returns ErrNotFound if no row matched.
	Update(ctx context.Context, record *StoredRecord) error
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes rows expiring strictly before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
