package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
)

// Grant drives the access state machine for (user, record) pairs. Manager-
// only transitions check the caller against the record's manager grant;
// grantee-only transitions check the caller against the grant row itself.
// Status moves are compare-and-swap at the storage layer, so the loser of a
// concurrent transition observes ErrInvalidTransition.
type Grant struct {
	grants  model.GrantStore
	records model.RecordStore
	users   model.UserStore
	friends model.FriendStore
	logger  *logger.Logger
}

func NewGrant(
	grants model.GrantStore,
	records model.RecordStore,
	users model.UserStore,
	friends model.FriendStore,
	logger *logger.Logger,
) *Grant {
	return &Grant{
		grants:  grants,
		records: records,
		users:   users,
		friends: friends,
		logger:  logger,
	}
}

// GrantPreview lets the manager enable discovery for a trusted peer: only
// the preview key is wrapped and stored. The pair must not hold a grant yet.
func (s *Grant) GrantPreview(ctx context.Context, callerID, recordID, recipientID uuid.UUID, previewKey envelope.WrappedKey) error {
	if err := previewKey.Validate(); err != nil {
		return err
	}
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return err
	}
	if err := s.requireTrustedRecipient(ctx, callerID, recipientID); err != nil {
		return err
	}

	if _, err := s.grants.Get(ctx, recordID, recipientID); err == nil {
		return model.ErrInvalidTransition
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to get grant: %w", err)
	}

	grant := model.AccessGrant{
		RecordID:   recordID,
		UserID:     recipientID,
		Status:     model.GrantStatusPreviewing,
		PreviewKey: previewKey,
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}

	s.logger.Info("Grant service: preview granted",
		"record_id", recordID,
		"recipient_id", recipientID)
	return nil
}

// OfferAccess lets the manager proactively offer full access. The wrapped
// credentials key is staged on the grant and only becomes live when the
// recipient accepts. Legal from no grant or from previewing.
func (s *Grant) OfferAccess(ctx context.Context, callerID, recordID, recipientID uuid.UUID, previewKey, credentialsKey envelope.WrappedKey) error {
	if err := previewKey.Validate(); err != nil {
		return err
	}
	if err := credentialsKey.Validate(); err != nil {
		return err
	}
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return err
	}
	if err := s.requireTrustedRecipient(ctx, callerID, recipientID); err != nil {
		return err
	}

	existing, err := s.grants.Get(ctx, recordID, recipientID)
	if errors.Is(err, model.ErrNotFound) {
		grant := model.AccessGrant{
			RecordID:   recordID,
			UserID:     recipientID,
			Status:     model.GrantStatusOfferPending,
			PreviewKey: previewKey,
			OfferedKey: &credentialsKey,
		}
		if err := s.grants.Create(ctx, grant); err != nil {
			return fmt.Errorf("failed to create grant: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}
	if existing.Status != model.GrantStatusPreviewing {
		return model.ErrInvalidTransition
	}

	return s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID:   recordID,
		UserID:     recipientID,
		From:       model.GrantStatusPreviewing,
		To:         model.GrantStatusOfferPending,
		OfferedKey: &credentialsKey,
	})
}

// RequestAccess lets a previewing grantee ask for full access.
func (s *Grant) RequestAccess(ctx context.Context, callerID, recordID uuid.UUID) error {
	grant, err := s.grants.Get(ctx, recordID, callerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}
	if grant.Status != model.GrantStatusPreviewing {
		return model.ErrInvalidTransition
	}

	return s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID: recordID,
		UserID:   callerID,
		From:     model.GrantStatusPreviewing,
		To:       model.GrantStatusRequestPending,
	})
}

// ApproveAccess lets the manager approve a pending request, installing the
// freshly wrapped credentials key.
func (s *Grant) ApproveAccess(ctx context.Context, callerID, recordID, recipientID uuid.UUID, credentialsKey envelope.WrappedKey) error {
	if err := credentialsKey.Validate(); err != nil {
		return err
	}
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return err
	}

	err := s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID:       recordID,
		UserID:         recipientID,
		From:           model.GrantStatusRequestPending,
		To:             model.GrantStatusShared,
		CredentialsKey: &credentialsKey,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Grant service: access approved",
		"record_id", recordID,
		"recipient_id", recipientID)
	return nil
}

// DenyAccess lets the manager decline a pending request.
func (s *Grant) DenyAccess(ctx context.Context, callerID, recordID, recipientID uuid.UUID) error {
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return err
	}
	return s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID: recordID,
		UserID:   recipientID,
		From:     model.GrantStatusRequestPending,
		To:       model.GrantStatusRequestDenied,
	})
}

// AcceptOffer lets the grantee accept a pending offer; the staged key
// becomes the live credentials key.
func (s *Grant) AcceptOffer(ctx context.Context, callerID, recordID uuid.UUID) error {
	grant, err := s.grants.Get(ctx, recordID, callerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}
	if grant.Status != model.GrantStatusOfferPending || grant.OfferedKey == nil {
		return model.ErrInvalidTransition
	}

	return s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID:       recordID,
		UserID:         callerID,
		From:           model.GrantStatusOfferPending,
		To:             model.GrantStatusShared,
		CredentialsKey: grant.OfferedKey,
	})
}

// RejectOffer lets the grantee decline a pending offer; the staged key is
// discarded.
func (s *Grant) RejectOffer(ctx context.Context, callerID, recordID uuid.UUID) error {
	grant, err := s.grants.Get(ctx, recordID, callerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}
	if grant.Status != model.GrantStatusOfferPending {
		return model.ErrInvalidTransition
	}

	return s.updateStatus(ctx, model.GrantStatusUpdate{
		RecordID: recordID,
		UserID:   callerID,
		From:     model.GrantStatusOfferPending,
		To:       model.GrantStatusOfferRejected,
	})
}

// RevokeAccess deletes a grant. The manager grant itself cannot be revoked.
// When the revoked grant held the credentials key the caller must follow up
// with RotateRecordKey: the revoked party has seen the old data key, so the
// old ciphertexts stay readable to them until the key rotates. The returned
// flag reports whether that follow-up is required, computed from the row as
// it was deleted: a grant approved concurrently between the manager-role
// check and the delete still reports rotation.
func (s *Grant) RevokeAccess(ctx context.Context, callerID, recordID, recipientID uuid.UUID) (rotationRequired bool, err error) {
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return false, err
	}

	// A grant is manager from creation or never; the status cannot become
	// manager later, so this guard cannot go stale before the delete.
	grant, err := s.grants.Get(ctx, recordID, recipientID)
	if errors.Is(err, model.ErrNotFound) {
		return false, model.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get grant: %w", err)
	}
	if grant.Status == model.GrantStatusManager {
		return false, model.ErrInvalidTransition
	}

	deleted, err := s.grants.Delete(ctx, recordID, recipientID)
	if errors.Is(err, model.ErrNotFound) {
		return false, model.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}

	s.logger.Info("Grant service: access revoked",
		"record_id", recordID,
		"recipient_id", recipientID,
		"rotation_required", deleted.Status.HoldsCredentialsKey())
	return deleted.Status.HoldsCredentialsKey(), nil
}

// ListGrants returns every grant on a record. Manager only.
func (s *Grant) ListGrants(ctx context.Context, callerID, recordID uuid.UUID) ([]model.AccessGrant, error) {
	if err := s.requireManager(ctx, callerID, recordID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

func (s *Grant) updateStatus(ctx context.Context, update model.GrantStatusUpdate) error {
	err := s.grants.UpdateStatus(ctx, update)
	if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update grant status: %w", err)
	}
	return nil
}

// requireManager fails with ErrForbidden unless the caller holds the manager
// grant for the record.
func (s *Grant) requireManager(ctx context.Context, callerID, recordID uuid.UUID) error {
	record, err := s.records.GetByID(ctx, recordID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if record.ManagerID != callerID {
		return model.ErrForbidden
	}
	return nil
}

// requireTrustedRecipient checks the recipient exists and shares an accepted
// trust edge with the caller; a public key can only be trusted once the
// social bootstrap established it.
func (s *Grant) requireTrustedRecipient(ctx context.Context, callerID, recipientID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to get recipient: %w", err)
	}

	trusted, err := s.friends.AreFriends(ctx, callerID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to check trust edge: %w", err)
	}
	if !trusted {
		return model.ErrForbidden
	}
	return nil
}
