package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/persist/internal/domain"
)

// RecordStore implements domain.RecordStore with plain SQL against the
// persistence table.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a new SQLite-backed RecordStore.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db.SqlDB}
}

func (r *RecordStore) Insert(ctx context.Context, record *domain.StoredRecord) (domain.InsertResult, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+domain.RecordTable+` (id, data, expires) VALUES (?, ?, ?)`,
		record.Key, record.Data, toNullUnix(record.ExpiresAt),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return domain.KeyConflict, nil
		}
		return domain.InsertFailed, fmt.Errorf("insert record: %w", err)
	}
	return domain.Inserted, nil
}

func (r *RecordStore) Find(ctx context.Context, key string) (*domain.StoredRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, data, expires FROM `+domain.RecordTable+` WHERE id = ?`, key,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

func (r *RecordStore) FindLive(ctx context.Context, key string, at time.Time) (*domain.StoredRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, data, expires FROM `+domain.RecordTable+`
		 WHERE id = ? AND (expires IS NULL OR expires > ?)`, key, at.UnixNano(),
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("query live record: %w", err)
	}
	return rec, nil
}

func (r *RecordStore) Update(ctx context.Context, record *domain.StoredRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE `+domain.RecordTable+` SET data = ?, expires = ? WHERE id = ?`,
		record.Data, toNullUnix(record.ExpiresAt), record.Key,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RecordStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM `+domain.RecordTable+` WHERE id = ?`, key)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (r *RecordStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM `+domain.RecordTable+` WHERE expires < ?`, before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

func scanRecord(row *sql.Row) (*domain.StoredRecord, error) {
	var (
		rec     domain.StoredRecord
		expires sql.NullInt64
	)
	if err := row.Scan(&rec.Key, &rec.Data, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.ExpiresAt = fromNullUnix(expires)
	return &rec, nil
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
