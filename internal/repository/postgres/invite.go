package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.InviteStore = (*InviteRepository)(nil)

type InviteRepository struct {
	db *Connection
}

func NewInviteRepository(db *Connection) *InviteRepository {
	return &InviteRepository{db: db}
}

func (r *InviteRepository) Create(ctx context.Context, invite model.Invite) error {
	const query = `
        INSERT INTO invites (id, inviter_id, nickname, ephemeral_public_key, consumed, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	if _, err := r.db.Exec(ctx, query,
		invite.ID, invite.InviterID, invite.Nickname, invite.EphemeralPublicKey,
		invite.Consumed, invite.ExpiresAt, invite.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *InviteRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Invite, error) {
	const query = `
        SELECT id, inviter_id, nickname, ephemeral_public_key, consumed, expires_at, created_at
        FROM invites
        WHERE id = $1
    `
	var invite model.Invite
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&invite.ID, &invite.InviterID, &invite.Nickname, &invite.EphemeralPublicKey,
		&invite.Consumed, &invite.ExpiresAt, &invite.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invite{}, model.ErrNotFound
		}
		return model.Invite{}, fmt.Errorf("failed to get invite by id: %w", err)
	}
	return invite, nil
}

func (r *InviteRepository) CreateGrant(ctx context.Context, grant model.PendingInviteGrant) error {
	const query = `
        INSERT INTO invite_grants (invite_id, record_id, status, preview_key, offered_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := r.db.Exec(ctx, query,
		grant.InviteID, grant.RecordID, string(grant.Status),
		grant.PreviewKey.Data, wrappedKeyBytes(grant.OfferedKey), grant.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create invite grant: %w", err)
	}
	return nil
}

func (r *InviteRepository) ListGrants(ctx context.Context, inviteID uuid.UUID) ([]model.PendingInviteGrant, error) {
	const query = `
        SELECT invite_id, record_id, status, preview_key, offered_key, created_at
        FROM invite_grants
        WHERE invite_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite grants: %w", err)
	}
	defer rows.Close()

	var grants []model.PendingInviteGrant
	for rows.Next() {
		var (
			grant      model.PendingInviteGrant
			status     string
			previewKey []byte
			offeredKey []byte
		)
		if err := rows.Scan(
			&grant.InviteID, &grant.RecordID, &status,
			&previewKey, &offeredKey, &grant.CreatedAt,
		); err != nil {
			return nil, err
		}
		grant.Status = model.GrantStatus(status)
		grant.PreviewKey = envelope.WrappedKey{Algorithm: envelope.AlgorithmRSAOAEP, Data: previewKey}
		grant.OfferedKey = wrappedKeyFromBytes(offeredKey)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// Redeem consumes the invite and converts its pending grants into real
// grants in one transaction. The consumed flag flips at most once, so two
// concurrent redemptions cannot both land.
func (r *InviteRepository) Redeem(ctx context.Context, inviteID uuid.UUID, grants []model.AccessGrant) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const consume = `
        UPDATE invites SET consumed = TRUE
        WHERE id = $1 AND consumed = FALSE AND expires_at > NOW()
    `
	cmd, err := tx.Exec(ctx, consume, inviteID)
	if err != nil {
		return fmt.Errorf("failed to consume invite: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	for _, grant := range grants {
		if err := insertGrant(ctx, tx, grant); err != nil {
			return fmt.Errorf("failed to convert invite grant: %w", err)
		}
	}

	const clearPending = `DELETE FROM invite_grants WHERE invite_id = $1`
	if _, err := tx.Exec(ctx, clearPending, inviteID); err != nil {
		return fmt.Errorf("failed to clear pending grants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
