package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.RecordStore = (*RecordRepository)(nil)

type RecordRepository struct {
	db *Connection
}

func NewRecordRepository(db *Connection) *RecordRepository {
	return &RecordRepository{
		db: db,
	}
}

const recordColumns = `id, manager_id, credentials_alg, credentials_iv, credentials_data,
	preview_alg, preview_iv, preview_data, COALESCE(blob_key, ''), created_at, updated_at`

func scanRecord(row pgx.Row) (model.CredentialRecord, error) {
	var record model.CredentialRecord
	err := row.Scan(
		&record.ID, &record.ManagerID,
		&record.Credentials.Algorithm, &record.Credentials.IV, &record.Credentials.Data,
		&record.Preview.Algorithm, &record.Preview.IV, &record.Preview.Data,
		&record.BlobKey, &record.CreatedAt, &record.UpdatedAt,
	)
	return record, err
}

// Create inserts the record and its manager grant in one transaction so no
// record can exist without exactly one manager.
func (r *RecordRepository) Create(ctx context.Context, record model.CredentialRecord, managerGrant model.AccessGrant) (model.CredentialRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.CredentialRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertRecord = `
        INSERT INTO records (id, manager_id, credentials_alg, credentials_iv, credentials_data,
                             preview_alg, preview_iv, preview_data, blob_key, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
        RETURNING ` + recordColumns

	savedRecord, err := scanRecord(tx.QueryRow(ctx, insertRecord,
		record.ID, record.ManagerID,
		record.Credentials.Algorithm, record.Credentials.IV, record.Credentials.Data,
		record.Preview.Algorithm, record.Preview.IV, record.Preview.Data,
		record.BlobKey, record.CreatedAt, record.UpdatedAt,
	))
	if err != nil {
		return model.CredentialRecord{}, fmt.Errorf("failed to create record: %w", err)
	}

	if err := insertGrant(ctx, tx, managerGrant); err != nil {
		return model.CredentialRecord{}, fmt.Errorf("failed to create manager grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.CredentialRecord{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return savedRecord, nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id uuid.UUID) (model.CredentialRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CredentialRecord{}, model.ErrNotFound
		}
		return model.CredentialRecord{}, fmt.Errorf("failed to get record by id: %w", err)
	}

	return record, nil
}

// Delete removes the record; grants go with it through the foreign key
// cascade.
func (r *RecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM records WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
