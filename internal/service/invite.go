package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
)

// Invite implements the invite half of the social bootstrap: sharing toward
// a recipient who has no account yet. Pending grants are wrapped against an
// ephemeral keypair whose private half lives only in the invite URL
// fragment; redemption converts them to real grants rewrapped under the new
// account's permanent key.
type Invite struct {
	invites model.InviteStore
	records model.RecordStore
	users   model.UserStore
	friends model.FriendStore
	logger  *logger.Logger
}

func NewInvite(
	invites model.InviteStore,
	records model.RecordStore,
	users model.UserStore,
	friends model.FriendStore,
	logger *logger.Logger,
) *Invite {
	return &Invite{
		invites: invites,
		records: records,
		users:   users,
		friends: friends,
		logger:  logger,
	}
}

// CreateInvite registers an invite and its ephemeral public key. The private
// half never reaches the server.
func (s *Invite) CreateInvite(ctx context.Context, inviterID uuid.UUID, nickname string, ephemeralPublicKey []byte) (model.Invite, error) {
	if _, err := envelope.ParsePublicKey(ephemeralPublicKey); err != nil {
		return model.Invite{}, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}

	invite := model.Invite{
		ID:                 uuid.New(),
		InviterID:          inviterID,
		Nickname:           nickname,
		EphemeralPublicKey: ephemeralPublicKey,
		ExpiresAt:          time.Now().Add(model.InviteTTL),
		CreatedAt:          time.Now(),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return model.Invite{}, fmt.Errorf("failed to create invite: %w", err)
	}

	s.logger.Info("Invite service: invite created",
		"invite_id", invite.ID,
		"inviter_id", inviterID)
	return invite, nil
}

// GrantToInvite pre-shares a record toward the invitee: a pending grant
// wrapped against the invite's ephemeral public key. A credentials key makes
// the pre-share a full-access offer; without one it is preview-only.
// Manager of the record only.
func (s *Invite) GrantToInvite(ctx context.Context, callerID, recordID, inviteID uuid.UUID, previewKey envelope.WrappedKey, credentialsKey *envelope.WrappedKey) error {
	if err := previewKey.Validate(); err != nil {
		return err
	}
	if credentialsKey != nil {
		if err := credentialsKey.Validate(); err != nil {
			return err
		}
	}

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

	invite, err := s.getLiveInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.InviterID != callerID {
		return model.ErrForbidden
	}

	status := model.GrantStatusPreviewing
	if credentialsKey != nil {
		status = model.GrantStatusOfferPending
	}
	grant := model.PendingInviteGrant{
		InviteID:   inviteID,
		RecordID:   recordID,
		Status:     status,
		PreviewKey: previewKey,
		OfferedKey: credentialsKey,
		CreatedAt:  time.Now(),
	}
	if err := s.invites.CreateGrant(ctx, grant); err != nil {
		return fmt.Errorf("failed to create invite grant: %w", err)
	}
	return nil
}

// InviteGrants lists the pending grants wrapped to the invite key. The
// invite id acts as the capability: only whoever holds the invite link can
// name it.
func (s *Invite) InviteGrants(ctx context.Context, inviteID uuid.UUID) (model.Invite, []model.PendingInviteGrant, error) {
	invite, err := s.getLiveInvite(ctx, inviteID)
	if err != nil {
		return model.Invite{}, nil, err
	}
	grants, err := s.invites.ListGrants(ctx, inviteID)
	if err != nil {
		return model.Invite{}, nil, fmt.Errorf("failed to list invite grants: %w", err)
	}
	return invite, grants, nil
}

// RedeemInvite converts every pending grant into a real grant for the new
// user, atomically consuming the invite. The caller has already unwrapped
// the data keys with the invite's ephemeral secret and rewrapped them under
// its permanent public key — that rewrap is mandatory before the ephemeral
// secret is discarded. Redemption also records the inviter as a trusted
// peer. Pre-shared full access lands directly in the shared state; preview-
// only pre-shares stay previewing.
func (s *Invite) RedeemInvite(ctx context.Context, callerID, inviteID uuid.UUID, rewrapped []model.RewrappedInviteGrant) ([]model.AccessGrant, error) {
	invite, err := s.getLiveInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite.InviterID == callerID {
		return nil, model.ErrForbidden
	}

	pending, err := s.invites.ListGrants(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite grants: %w", err)
	}

	converted, err := convertInviteGrants(callerID, pending, rewrapped)
	if err != nil {
		return nil, err
	}

	if err := s.invites.Redeem(ctx, inviteID, converted); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Lost a race with a concurrent redemption.
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to redeem invite: %w", err)
	}

	// The invite link itself is the inviter's act of trust; redemption
	// completes the edge without a separate request round-trip.
	if err := s.ensureTrustEdge(ctx, invite.InviterID, callerID); err != nil {
		s.logger.Error("Invite service: failed to record trust edge",
			"invite_id", inviteID,
			"error", err.Error())
	}

	s.logger.Info("Invite service: invite redeemed",
		"invite_id", inviteID,
		"user_id", callerID,
		"grants", len(converted))
	return converted, nil
}

// convertInviteGrants pairs every pending grant with its rewrapped keys. The
// rewrap set must cover the pending set exactly; a miss would strand the
// shared data behind a discarded ephemeral key.
func convertInviteGrants(userID uuid.UUID, pending []model.PendingInviteGrant, rewrapped []model.RewrappedInviteGrant) ([]model.AccessGrant, error) {
	byRecord := make(map[uuid.UUID]model.RewrappedInviteGrant, len(rewrapped))
	for _, rw := range rewrapped {
		if err := rw.PreviewKey.Validate(); err != nil {
			return nil, err
		}
		if rw.CredentialsKey != nil {
			if err := rw.CredentialsKey.Validate(); err != nil {
				return nil, err
			}
		}
		if _, dup := byRecord[rw.RecordID]; dup {
			return nil, fmt.Errorf("%w: duplicate rewrap for record %s", model.ErrInvalidArgument, rw.RecordID)
		}
		byRecord[rw.RecordID] = rw
	}

	converted := make([]model.AccessGrant, 0, len(pending))
	for _, pg := range pending {
		rw, ok := byRecord[pg.RecordID]
		if !ok {
			return nil, fmt.Errorf("%w: rewrap misses record %s", model.ErrInvalidArgument, pg.RecordID)
		}
		delete(byRecord, pg.RecordID)

		status := model.GrantStatusPreviewing
		if pg.Status == model.GrantStatusOfferPending {
			if rw.CredentialsKey == nil {
				return nil, fmt.Errorf("%w: missing credentials rewrap for record %s", model.ErrInvalidArgument, pg.RecordID)
			}
			status = model.GrantStatusShared
		} else if rw.CredentialsKey != nil {
			return nil, fmt.Errorf("%w: unexpected credentials rewrap for record %s", model.ErrInvalidArgument, pg.RecordID)
		}

		converted = append(converted, model.AccessGrant{
			RecordID:       pg.RecordID,
			UserID:         userID,
			Status:         status,
			PreviewKey:     rw.PreviewKey,
			CredentialsKey: rw.CredentialsKey,
		})
	}
	if len(byRecord) != 0 {
		return nil, fmt.Errorf("%w: rewrap names unknown records", model.ErrInvalidArgument)
	}
	return converted, nil
}

func (s *Invite) getLiveInvite(ctx context.Context, inviteID uuid.UUID) (model.Invite, error) {
	invite, err := s.invites.GetByID(ctx, inviteID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Invite{}, model.ErrNotFound
	}
	if err != nil {
		return model.Invite{}, fmt.Errorf("failed to get invite: %w", err)
	}
	if invite.Consumed {
		return model.Invite{}, model.ErrNotFound
	}
	if time.Now().After(invite.ExpiresAt) {
		return model.Invite{}, model.ErrExpired
	}
	return invite, nil
}

func (s *Invite) ensureTrustEdge(ctx context.Context, a, b uuid.UUID) error {
	if _, err := s.friends.GetByPair(ctx, a, b); err == nil {
		return nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	now := time.Now()
	return s.friends.Create(ctx, model.FriendRequest{
		ID:          uuid.New(),
		SenderID:    a,
		RecipientID: b,
		Status:      model.FriendStatusAccepted,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
