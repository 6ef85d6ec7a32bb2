package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
)

// RecordStore defines persistence operations for credential records.
type RecordStore interface {
	// Create inserts the record and its manager grant in one atomic write.
	Create(ctx context.Context, record CredentialRecord, managerGrant AccessGrant) (CredentialRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (CredentialRecord, error)
	// Delete removes the record and cascades to all its grants.
	Delete(ctx context.Context, id uuid.UUID) error
}

// CredentialRecord is a shared secret payload. Credentials and Preview are
// encrypted under the same per-record data key; only the wrapped copies of
// that key differ per recipient. Credentials.Data may be empty when the
// payload spilled to blob storage, in which case BlobKey names the object.
type CredentialRecord struct {
	ID          uuid.UUID
	ManagerID   uuid.UUID
	Credentials envelope.Ciphertext
	Preview     envelope.Ciphertext
	BlobKey     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRecordParams carries the client-encrypted payloads for a new record
// plus the data key wrapped back to the manager.
type CreateRecordParams struct {
	Credentials    envelope.Ciphertext
	Preview        envelope.Ciphertext
	PreviewKey     envelope.WrappedKey
	CredentialsKey envelope.WrappedKey
}

// RecordView is a record as visible to one caller: the ciphertexts the
// caller's grant status entitles it to, plus the caller's wrapped keys.
type RecordView struct {
	Record CredentialRecord
	Grant  AccessGrant
}

// RecordRotation carries a full data-key rotation: fresh ciphertexts under a
// new data key and the new key rewrapped for every remaining grantee. Applied
// as a single atomic write.
type RecordRotation struct {
	Credentials envelope.Ciphertext
	Preview     envelope.Ciphertext
	// BlobKey names the object holding the new payload when it spilled to
	// blob storage; empty when the payload is inline.
	BlobKey string
	Keys    []GrantKeyUpdate
}

// GrantKeyUpdate is one grantee's rewrapped keys within a rotation. The
// credentials key is present only for grants whose status entitles them
// to it.
type GrantKeyUpdate struct {
	UserID         uuid.UUID
	PreviewKey     envelope.WrappedKey
	CredentialsKey *envelope.WrappedKey
}
