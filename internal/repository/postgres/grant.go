package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.GrantStore = (*GrantRepository)(nil)

type GrantRepository struct {
	db *Connection
}

func NewGrantRepository(db *Connection) *GrantRepository {
	return &GrantRepository{db: db}
}

// Wrapped keys are stored as raw RSA-OAEP blobs; the algorithm tag is fixed
// by the schema and restored on scan.
func wrappedKeyBytes(k *envelope.WrappedKey) []byte {
	if k == nil {
		return nil
	}
	return k.Data
}

func wrappedKeyFromBytes(data []byte) *envelope.WrappedKey {
	if len(data) == 0 {
		return nil
	}
	return &envelope.WrappedKey{Algorithm: envelope.AlgorithmRSAOAEP, Data: data}
}

const grantColumns = `record_id, user_id, status, preview_key, credentials_key, offered_key, version, created_at, updated_at`

func scanGrant(row pgx.Row) (model.AccessGrant, error) {
	var (
		grant          model.AccessGrant
		status         string
		previewKey     []byte
		credentialsKey []byte
		offeredKey     []byte
	)
	err := row.Scan(
		&grant.RecordID, &grant.UserID, &status,
		&previewKey, &credentialsKey, &offeredKey,
		&grant.Version, &grant.CreatedAt, &grant.UpdatedAt,
	)
	if err != nil {
		return model.AccessGrant{}, err
	}
	grant.Status = model.GrantStatus(status)
	grant.PreviewKey = envelope.WrappedKey{Algorithm: envelope.AlgorithmRSAOAEP, Data: previewKey}
	grant.CredentialsKey = wrappedKeyFromBytes(credentialsKey)
	grant.OfferedKey = wrappedKeyFromBytes(offeredKey)
	return grant, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertGrant(ctx context.Context, db execer, grant model.AccessGrant) error {
	const query = `
        INSERT INTO grants (record_id, user_id, status, preview_key, credentials_key, offered_key, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())
    `
	_, err := db.Exec(ctx, query,
		grant.RecordID, grant.UserID, string(grant.Status),
		grant.PreviewKey.Data, wrappedKeyBytes(grant.CredentialsKey), wrappedKeyBytes(grant.OfferedKey),
	)
	return err
}

func (r *GrantRepository) Create(ctx context.Context, grant model.AccessGrant) error {
	if err := insertGrant(ctx, r.db, grant); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) Get(ctx context.Context, recordID, userID uuid.UUID) (model.AccessGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants WHERE record_id = $1 AND user_id = $2`

	grant, err := scanGrant(r.db.QueryRow(ctx, query, recordID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AccessGrant{}, model.ErrNotFound
		}
		return model.AccessGrant{}, fmt.Errorf("failed to get grant: %w", err)
	}
	return grant, nil
}

func (r *GrantRepository) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]model.AccessGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants WHERE record_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by record: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

func (r *GrantRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AccessGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by user: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

func collectGrants(rows pgx.Rows) ([]model.AccessGrant, error) {
	var grants []model.AccessGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// UpdateStatus applies a transition only while the row still holds the
// expected status. A loser of a concurrent transition race affects zero
// rows and gets ErrInvalidTransition.
func (r *GrantRepository) UpdateStatus(ctx context.Context, update model.GrantStatusUpdate) error {
	const query = `
        UPDATE grants
        SET status = $4, credentials_key = $5, offered_key = $6, version = version + 1, updated_at = NOW()
        WHERE record_id = $1 AND user_id = $2 AND status = $3
    `
	cmd, err := r.db.Exec(ctx, query,
		update.RecordID, update.UserID, string(update.From), string(update.To),
		wrappedKeyBytes(update.CredentialsKey), wrappedKeyBytes(update.OfferedKey),
	)
	if err != nil {
		return fmt.Errorf("failed to update grant status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, update.RecordID, update.UserID); errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return model.ErrInvalidTransition
	}
	return nil
}

func (r *GrantRepository) Delete(ctx context.Context, recordID, userID uuid.UUID) (model.AccessGrant, error) {
	query := `DELETE FROM grants WHERE record_id = $1 AND user_id = $2 RETURNING ` + grantColumns
	grant, err := scanGrant(r.db.QueryRow(ctx, query, recordID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AccessGrant{}, model.ErrNotFound
	}
	if err != nil {
		return model.AccessGrant{}, fmt.Errorf("failed to delete grant: %w", err)
	}
	return grant, nil
}

// Rotate replaces the record's ciphertexts and every grantee's wrapped keys
// in one transaction. The key set must cover the record's grants exactly at
// commit time; a grant added or removed concurrently fails the rotation.
func (r *GrantRepository) Rotate(ctx context.Context, recordID uuid.UUID, rotation model.RecordRotation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateRecord = `
        UPDATE records
        SET credentials_alg = $2, credentials_iv = $3, credentials_data = $4,
            preview_alg = $5, preview_iv = $6, preview_data = $7,
            blob_key = NULLIF($8, ''), updated_at = NOW()
        WHERE id = $1
    `
	cmd, err := tx.Exec(ctx, updateRecord, recordID,
		rotation.Credentials.Algorithm, rotation.Credentials.IV, rotation.Credentials.Data,
		rotation.Preview.Algorithm, rotation.Preview.IV, rotation.Preview.Data,
		rotation.BlobKey,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate record ciphertexts: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	const updateKeys = `
        UPDATE grants
        SET preview_key = $3, credentials_key = $4, version = version + 1, updated_at = NOW()
        WHERE record_id = $1 AND user_id = $2
    `
	for _, key := range rotation.Keys {
		cmd, err := tx.Exec(ctx, updateKeys, recordID, key.UserID,
			key.PreviewKey.Data, wrappedKeyBytes(key.CredentialsKey))
		if err != nil {
			return fmt.Errorf("failed to rotate grant keys: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return model.ErrInvalidTransition
		}
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM grants WHERE record_id = $1`, recordID).Scan(&total); err != nil {
		return fmt.Errorf("failed to count grants: %w", err)
	}
	if total != len(rotation.Keys) {
		return model.ErrInvalidTransition
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
