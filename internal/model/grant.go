package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
)

// GrantStatus is the closed set of states one (user, record) pair can be in.
// Any value outside these seven is a schema-level error.
type GrantStatus string

const (
	GrantStatusManager        GrantStatus = "manager"
	GrantStatusPreviewing     GrantStatus = "previewing"
	GrantStatusShared         GrantStatus = "shared"
	GrantStatusOfferPending   GrantStatus = "offer-pending"
	GrantStatusOfferRejected  GrantStatus = "offer-rejected"
	GrantStatusRequestPending GrantStatus = "request-pending"
	GrantStatusRequestDenied  GrantStatus = "request-denied"
)

// Valid reports whether s is one of the seven legal states.
func (s GrantStatus) Valid() bool {
	switch s {
	case GrantStatusManager, GrantStatusPreviewing, GrantStatusShared,
		GrantStatusOfferPending, GrantStatusOfferRejected,
		GrantStatusRequestPending, GrantStatusRequestDenied:
		return true
	}
	return false
}

// HoldsCredentialsKey reports whether a grant in this state carries the
// wrapped credentials key. The field is non-null iff this returns true.
func (s GrantStatus) HoldsCredentialsKey() bool {
	return s == GrantStatusManager || s == GrantStatusShared
}

// GrantStore defines persistence operations for access grants. Status
// changes are compare-and-swap on the current status so concurrent
// transitions on the same grant cannot both succeed.
type GrantStore interface {
	Create(ctx context.Context, grant AccessGrant) error
	Get(ctx context.Context, recordID, userID uuid.UUID) (AccessGrant, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]AccessGrant, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]AccessGrant, error)
	// UpdateStatus moves a grant from one status to another, installing or
	// clearing key material as the target state requires. It returns
	// ErrInvalidTransition when the row is no longer in the expected status
	// and ErrNotFound when no such grant exists.
	UpdateStatus(ctx context.Context, update GrantStatusUpdate) error
	// Delete removes a grant and returns the row as it was deleted, so
	// revocation decides on rotation from the state that actually left the
	// table rather than an earlier read. Returns ErrNotFound when no grant
	// exists for the pair.
	Delete(ctx context.Context, recordID, userID uuid.UUID) (AccessGrant, error)
	// Rotate applies a data-key rotation: record ciphertexts and every
	// grantee's wrapped keys change in one atomic write.
	Rotate(ctx context.Context, recordID uuid.UUID, rotation RecordRotation) error
}

// AccessGrant ties a user to a credential record in one of the seven states.
// PreviewKey is always present. CredentialsKey is present iff the status is
// manager or shared. OfferedKey stages the manager-wrapped credentials key
// while an offer is pending and is cleared by accept or reject.
type AccessGrant struct {
	RecordID       uuid.UUID
	UserID         uuid.UUID
	Status         GrantStatus
	PreviewKey     envelope.WrappedKey
	CredentialsKey *envelope.WrappedKey
	OfferedKey     *envelope.WrappedKey
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckInvariants validates the key-presence rules for the grant's status.
func (g AccessGrant) CheckInvariants() error {
	if !g.Status.Valid() {
		return ErrInvalidArgument
	}
	if g.Status.HoldsCredentialsKey() != (g.CredentialsKey != nil) {
		return ErrInvalidArgument
	}
	if (g.OfferedKey != nil) && g.Status != GrantStatusOfferPending {
		return ErrInvalidArgument
	}
	return nil
}

// GrantStatusUpdate is one compare-and-swap transition. From must match the
// stored status for the write to apply. CredentialsKey and OfferedKey are
// installed as given (nil clears).
type GrantStatusUpdate struct {
	RecordID       uuid.UUID
	UserID         uuid.UUID
	From           GrantStatus
	To             GrantStatus
	CredentialsKey *envelope.WrappedKey
	OfferedKey     *envelope.WrappedKey
}
