package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
)

// InviteTTL bounds how long an unredeemed invite stays valid.
const InviteTTL = 14 * 24 * time.Hour

// InviteStore persists invites and their pending grants.
type InviteStore interface {
	Create(ctx context.Context, invite Invite) error
	GetByID(ctx context.Context, id uuid.UUID) (Invite, error)
	CreateGrant(ctx context.Context, grant PendingInviteGrant) error
	ListGrants(ctx context.Context, inviteID uuid.UUID) ([]PendingInviteGrant, error)
	// Redeem consumes the invite and converts its pending grants into the
	// given access grants in one atomic write. It returns ErrNotFound when
	// the invite is missing or already consumed.
	Redeem(ctx context.Context, inviteID uuid.UUID, grants []AccessGrant) error
}

// Invite is an invitation toward a not-yet-registered recipient. The
// ephemeral public key's private half travels only in the invite URL
// fragment and never reaches the server.
type Invite struct {
	ID                 uuid.UUID
	InviterID          uuid.UUID
	Nickname           string
	EphemeralPublicKey []byte
	Consumed           bool
	ExpiresAt          time.Time
	CreatedAt          time.Time
}

// PendingInviteGrant mirrors AccessGrant but is keyed by invite rather than
// by user; its wrapped keys are wrapped against the invite's ephemeral
// public key. On redemption it is converted into a real AccessGrant.
type PendingInviteGrant struct {
	InviteID   uuid.UUID
	RecordID   uuid.UUID
	Status     GrantStatus
	PreviewKey envelope.WrappedKey
	OfferedKey *envelope.WrappedKey
	CreatedAt  time.Time
}

// RewrappedInviteGrant is one pending grant's keys rewrapped under the
// redeeming user's permanent public key. The rewrap is mandatory before the
// invite's ephemeral secret is discarded.
type RewrappedInviteGrant struct {
	RecordID       uuid.UUID
	PreviewKey     envelope.WrappedKey
	CredentialsKey *envelope.WrappedKey
}
