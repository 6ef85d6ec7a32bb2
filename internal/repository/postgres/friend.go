package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sealshare/sealshare-server/internal/model"
)

var _ model.FriendStore = (*FriendRepository)(nil)

type FriendRepository struct {
	db *Connection
}

func NewFriendRepository(db *Connection) *FriendRepository {
	return &FriendRepository{db: db}
}

const friendColumns = `id, sender_id, recipient_id, status, created_at, updated_at`

func scanFriendRequest(row pgx.Row) (model.FriendRequest, error) {
	var (
		request model.FriendRequest
		status  string
	)
	err := row.Scan(
		&request.ID, &request.SenderID, &request.RecipientID, &status,
		&request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return model.FriendRequest{}, err
	}
	request.Status = model.FriendStatus(status)
	return request, nil
}

func (r *FriendRepository) Create(ctx context.Context, request model.FriendRequest) error {
	const query = `
        INSERT INTO friend_requests (id, sender_id, recipient_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := r.db.Exec(ctx, query,
		request.ID, request.SenderID, request.RecipientID, string(request.Status),
		request.CreatedAt, request.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

func (r *FriendRepository) GetByID(ctx context.Context, id uuid.UUID) (model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests WHERE id = $1`

	request, err := scanFriendRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FriendRequest{}, model.ErrNotFound
		}
		return model.FriendRequest{}, fmt.Errorf("failed to get friend request by id: %w", err)
	}
	return request, nil
}

func (r *FriendRepository) GetByPair(ctx context.Context, a, b uuid.UUID) (model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests
			  WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)`

	request, err := scanFriendRequest(r.db.QueryRow(ctx, query, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FriendRequest{}, model.ErrNotFound
		}
		return model.FriendRequest{}, fmt.Errorf("failed to get friend request by pair: %w", err)
	}
	return request, nil
}

func (r *FriendRepository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests
			  WHERE recipient_id = $1 AND status = 'pending' ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *FriendRepository) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests
			  WHERE sender_id = $1 AND status = 'pending' ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *FriendRepository) ListAccepted(ctx context.Context, userID uuid.UUID) ([]model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests
			  WHERE (sender_id = $1 OR recipient_id = $1) AND status = 'accepted' ORDER BY updated_at DESC`
	return r.list(ctx, query, userID)
}

func (r *FriendRepository) list(ctx context.Context, query string, userID uuid.UUID) ([]model.FriendRequest, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	var requests []model.FriendRequest
	for rows.Next() {
		request, err := scanFriendRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStatus applies a transition only while the row still holds the
// expected status, so two concurrent responses cannot both land.
func (r *FriendRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.FriendStatus) (model.FriendRequest, error) {
	const query = `
        UPDATE friend_requests
        SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
        RETURNING ` + friendColumns

	request, err := scanFriendRequest(r.db.QueryRow(ctx, query, id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := r.GetByID(ctx, id); errors.Is(err, model.ErrNotFound) {
				return model.FriendRequest{}, model.ErrNotFound
			}
			return model.FriendRequest{}, model.ErrInvalidTransition
		}
		return model.FriendRequest{}, fmt.Errorf("failed to update friend request: %w", err)
	}
	return request, nil
}

func (r *FriendRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM friend_requests WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete friend request: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *FriendRepository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM friend_requests
            WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
              AND status = 'accepted'
        )
    `
	var exists bool
	if err := r.db.QueryRow(ctx, query, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}
