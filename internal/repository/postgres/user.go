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

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, email, handle, full_name, srp_salt, srp_verifier, public_key,
	private_key_alg, private_key_iv, private_key_salt, private_key_data,
	created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Handle, &user.FullName,
		&user.SRPSalt, &user.SRPVerifier, &user.PublicKey,
		&user.PrivateKey.Algorithm, &user.PrivateKey.IV, &user.PrivateKey.Salt, &user.PrivateKey.Data,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE handle = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, handle))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by handle: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, email, handle, full_name, srp_salt, srp_verifier, public_key,
				private_key_alg, private_key_iv, private_key_salt, private_key_data, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  RETURNING ` + userColumns

	savedUser, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.Handle, user.FullName,
		user.SRPSalt, user.SRPVerifier, user.PublicKey,
		user.PrivateKey.Algorithm, user.PrivateKey.IV, user.PrivateKey.Salt, user.PrivateKey.Data,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return savedUser, nil
}

func (r *UserRepository) UpdateCredentials(ctx context.Context, id uuid.UUID, salt, verifier string, privateKey envelope.Ciphertext) error {
	const query = `
        UPDATE users
        SET srp_salt = $2, srp_verifier = $3,
            private_key_alg = $4, private_key_iv = $5, private_key_salt = $6, private_key_data = $7,
            updated_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL
    `
	cmd, err := r.db.Exec(ctx, query, id, salt, verifier,
		privateKey.Algorithm, privateKey.IV, privateKey.Salt, privateKey.Data)
	if err != nil {
		return fmt.Errorf("failed to update user credentials: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
