package gormdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/repository/sqlite"
	"gorm.io/gorm"
)

// recordModel maps the persistence table. Expires holds Unix nanoseconds.
type recordModel struct {
	ID      string `gorm:"column:id;primaryKey"`
	Data    []byte `gorm:"column:data;not null"`
	Expires *int64 `gorm:"column:expires"`
}

func (recordModel) TableName() string { return domain.RecordTable }

// RecordStore implements domain.RecordStore with gorm.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore creates a gorm-backed RecordStore.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (r *RecordStore) Insert(ctx context.Context, record *domain.StoredRecord) (domain.InsertResult, error) {
	m := toModel(record)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if IsDuplicateKey(err) {
			return domain.KeyConflict, nil
		}
		return domain.InsertFailed, fmt.Errorf("insert record: %w", err)
	}
	return domain.Inserted, nil
}

func (r *RecordStore) Find(ctx context.Context, key string) (*domain.StoredRecord, error) {
	var m recordModel
	err := r.db.WithContext(ctx).Where("id = ?", key).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query record: %w", err)
	}
	return fromModel(m), nil
}

func (r *RecordStore) FindLive(ctx context.Context, key string, at time.Time) (*domain.StoredRecord, error) {
	var m recordModel
	err := r.db.WithContext(ctx).
		Where("id = ?", key).
		Where("expires IS NULL OR expires > ?", at.UnixNano()).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query live record: %w", err)
	}
	return fromModel(m), nil
}

func (r *RecordStore) Update(ctx context.Context, record *domain.StoredRecord) error {
	m := toModel(record)
	// A map so that a nil expiration is written as NULL instead of skipped.
	result := r.db.WithContext(ctx).
		Model(&recordModel{}).
		Where("id = ?", record.Key).
		Updates(map[string]any{"data": m.Data, "expires": m.Expires})
	if result.Error != nil {
		return fmt.Errorf("update record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RecordStore) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", key).Delete(&recordModel{}).Error; err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (r *RecordStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires < ?", before.UnixNano()).Delete(&recordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// IsDuplicateKey reports whether err is a uniqueness violation, whether or
// not gorm translated it.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || sqlite.IsUniqueConstraintError(err)
}

func toModel(record *domain.StoredRecord) recordModel {
	m := recordModel{ID: record.Key, Data: record.Data}
	if record.ExpiresAt != nil {
		n := record.ExpiresAt.UnixNano()
		m.Expires = &n
	}
	return m
}

func fromModel(m recordModel) *domain.StoredRecord {
	rec := &domain.StoredRecord{Key: m.ID, Data: m.Data}
	if m.Expires != nil {
		t := time.Unix(0, *m.Expires).UTC()
		rec.ExpiresAt = &t
	}
	return rec
}
