package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const recordColumns = `id, owner_id, file_name, storage_key, file_size, content_type, checksum, upload_timestamp`

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts metadata for a new upload. A previous record with the same owner and name
// points at the same storage key and is replaced in the same transaction.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var stored Record
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM files WHERE owner_id = $1 AND file_name = $2;`, rec.OwnerID, rec.FileName); err != nil {
			return fmt.Errorf("replace previous record: %w", err)
		}

		query := `
INSERT INTO files (owner_id, file_name, storage_key, file_size, content_type, checksum, upload_timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + recordColumns + `;`

		row := tx.QueryRow(ctx, query,
			rec.OwnerID,
			rec.FileName,
			rec.StorageKey,
			rec.FileSize,
			rec.ContentType,
			rec.Checksum,
			rec.UploadTimestamp,
		)
		var err error
		stored, err = scanRecord(row)
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("create file record: %w", err)
	}
	return stored, nil
}

// FindByID fetches a record regardless of owner; authorization is the caller's concern.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM files WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("find file by id: %w", err)
	}
	return rec, nil
}

// FindByOwnerAndName fetches the owner's record for a file name.
func (r *Repository) FindByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE owner_id = $1 AND file_name = $2;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, ownerID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("find file by name: %w", err)
	}
	return rec, nil
}

// ListByOwner returns the owner's records, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + recordColumns + `
FROM files
WHERE owner_id = $1
ORDER BY upload_timestamp DESC, id;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return records, nil
}

// Delete removes the record with the given id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// ListStorageKeys returns the storage key of every record, for consistency checks.
func (r *Repository) ListStorageKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT storage_key FROM files;`)
	if err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect storage keys: %w", err)
	}
	return keys, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.FileName,
		&rec.StorageKey,
		&rec.FileSize,
		&rec.ContentType,
		&rec.Checksum,
		&rec.UploadTimestamp,
	)
	if err != nil {
		return Record{}, err
	}
	rec.UploadTimestamp = rec.UploadTimestamp.UTC()
	return rec, nil
}
