package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByHandle(ctx context.Context, handle string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	// UpdateCredentials atomically replaces the salt, verifier and wrapped
	// private key on a password change.
	UpdateCredentials(ctx context.Context, id uuid.UUID, salt, verifier string, privateKey envelope.Ciphertext) error
}

// User is an identity record. The private key is held only as a ciphertext
// wrapped by a key derived from the user's master secret; it is never
// persisted or transmitted unwrapped.
type User struct {
	ID          uuid.UUID
	Email       string
	Handle      string
	FullName    string
	SRPSalt     string
	SRPVerifier string
	PublicKey   []byte
	PrivateKey  envelope.Ciphertext
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// UserSummary is the profile shape exposed to other users: no key material
// beyond the public key.
type UserSummary struct {
	ID        uuid.UUID
	Email     string
	Handle    string
	FullName  string
	PublicKey []byte
}

// Summary strips a user down to its shareable profile.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Handle:    u.Handle,
		FullName:  u.FullName,
		PublicKey: u.PublicKey,
	}
}

// CreateAccountParams carries everything produced client-side at signup.
type CreateAccountParams struct {
	Email             string
	Handle            string
	FullName          string
	Salt              string
	Verifier          string
	PublicKey         []byte
	WrappedPrivateKey envelope.Ciphertext
}
