package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.ChallengeStore = (*ChallengeRepository)(nil)

type ChallengeRepository struct {
	db *Connection
}

func NewChallengeRepository(db *Connection) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func (r *ChallengeRepository) Create(ctx context.Context, challenge model.AuthChallenge) error {
	const query = `
        INSERT INTO auth_challenges (
            id, user_id, client_public, server_public, server_secret, session_key, consumed, expires_at, created_at
        ) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
    `

	if _, err := r.db.Exec(ctx, query,
		challenge.ID,
		challenge.UserID,
		challenge.ClientPublic,
		challenge.ServerPublic,
		challenge.ServerSecret,
		challenge.SessionKey,
		challenge.Consumed,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create auth challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepository) GetByID(ctx context.Context, id uuid.UUID) (model.AuthChallenge, error) {
	const query = `
        SELECT id, user_id, client_public, server_public, server_secret,
               COALESCE(session_key, ''), consumed, expires_at, created_at
        FROM auth_challenges
        WHERE id = $1
    `
	var c model.AuthChallenge
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.UserID,
		&c.ClientPublic,
		&c.ServerPublic,
		&c.ServerSecret,
		&c.SessionKey,
		&c.Consumed,
		&c.ExpiresAt,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AuthChallenge{}, model.ErrNotFound
		}
		return model.AuthChallenge{}, fmt.Errorf("failed to get auth challenge by id: %w", err)
	}
	return c, nil
}

// Complete is the single-use gate of the handshake: the consumed flag flips
// at most once, so concurrent proof submissions for the same challenge
// cannot both succeed.
func (r *ChallengeRepository) Complete(ctx context.Context, id uuid.UUID, sessionKey string) error {
	const query = `
        UPDATE auth_challenges
        SET session_key = $2, consumed = TRUE
        WHERE id = $1 AND consumed = FALSE
    `
	cmd, err := r.db.Exec(ctx, query, id, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to complete auth challenge: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM auth_challenges WHERE expires_at < $1`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return cmd.RowsAffected(), nil
}
