package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChallengeTTL bounds how long a started handshake stays completable.
const ChallengeTTL = 10 * time.Minute

// ChallengeStore persists handshake transcripts. Each row is single-use:
// Complete consumes it, and rows past their TTL are swept by DeleteExpired.
type ChallengeStore interface {
	Create(ctx context.Context, challenge AuthChallenge) error
	GetByID(ctx context.Context, id uuid.UUID) (AuthChallenge, error)
	// Complete records the derived session key and marks the challenge
	// consumed in one write. It returns ErrNotFound if the challenge is
	// missing or was already consumed.
	Complete(ctx context.Context, id uuid.UUID, sessionKey string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthChallenge is the server-side transcript of one handshake. The
// ephemeral secret and derived session key are never reused across two
// independent handshakes.
type AuthChallenge struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ClientPublic string
	ServerPublic string
	ServerSecret string
	SessionKey   string
	Consumed     bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// HandshakeChallenge is the response shape of a started handshake. Known and
// unknown identities produce structurally identical values.
type HandshakeChallenge struct {
	ChallengeID  uuid.UUID
	Salt         string
	ServerPublic string
}

// HandshakeResult is returned on a verified client proof.
type HandshakeResult struct {
	ServerProof  string
	AccessToken  string
	RefreshToken string
}
