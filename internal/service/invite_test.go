package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealshare/sealshare-server/internal/model"
)

func createInvite(t *testing.T, f *fixture, inviterID uuid.UUID) model.Invite {
	t.Helper()
	invite, err := f.inviteService.CreateInvite(context.Background(), inviterID, "for my friend", testPublicKeyDER(t))
	require.NoError(t, err)
	return invite
}

func TestInvite_Create(t *testing.T) {
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")

	invite := createInvite(t, f, inviter.ID)
	assert.Equal(t, inviter.ID, invite.InviterID)
	assert.False(t, invite.Consumed)
	assert.True(t, invite.ExpiresAt.After(time.Now()))
}

func TestInvite_Create_BadKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")

	_, err := f.inviteService.CreateInvite(ctx, inviter.ID, "nick", []byte("not a key"))
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestInvite_GrantToInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	record := createRecord(t, f, inviter.ID, "payload")
	invite := createInvite(t, f, inviter.ID)

	// Preview-only pre-share.
	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, record.ID, invite.ID, testWrapped(0x41), nil))

	// Full-access pre-share on a second record.
	second := createRecord(t, f, inviter.ID, "second payload")
	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, second.ID, invite.ID, testWrapped(0x42), testWrappedPtr(0x43)))

	got, pending, err := f.inviteService.InviteGrants(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, got.ID)
	require.Len(t, pending, 2)

	byRecord := map[uuid.UUID]model.PendingInviteGrant{}
	for _, pg := range pending {
		byRecord[pg.RecordID] = pg
	}
	assert.Equal(t, model.GrantStatusPreviewing, byRecord[record.ID].Status)
	assert.Equal(t, model.GrantStatusOfferPending, byRecord[second.ID].Status)
	require.NotNil(t, byRecord[second.ID].OfferedKey)
}

func TestInvite_GrantToInvite_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	other := createUser(t, f, "other@example.com", "other")

	otherRecord := createRecord(t, f, other.ID, "other payload")
	invite := createInvite(t, f, inviter.ID)

	// Not the record's manager.
	err := f.inviteService.GrantToInvite(ctx, inviter.ID, otherRecord.ID, invite.ID, testWrapped(0x41), nil)
	require.ErrorIs(t, err, model.ErrForbidden)

	// Not the invite's owner.
	err = f.inviteService.GrantToInvite(ctx, other.ID, otherRecord.ID, invite.ID, testWrapped(0x41), nil)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestInvite_Redeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	invitee := createUser(t, f, "invitee@example.com", "invitee")

	previewOnly := createRecord(t, f, inviter.ID, "preview-only payload")
	fullAccess := createRecord(t, f, inviter.ID, "full payload")
	invite := createInvite(t, f, inviter.ID)

	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, previewOnly.ID, invite.ID, testWrapped(0x41), nil))
	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, fullAccess.ID, invite.ID, testWrapped(0x42), testWrappedPtr(0x43)))

	rewrapped := []model.RewrappedInviteGrant{
		{RecordID: previewOnly.ID, PreviewKey: testWrapped(0x51)},
		{RecordID: fullAccess.ID, PreviewKey: testWrapped(0x52), CredentialsKey: testWrappedPtr(0x53)},
	}
	granted, err := f.inviteService.RedeemInvite(ctx, invitee.ID, invite.ID, rewrapped)
	require.NoError(t, err)
	require.Len(t, granted, 2)

	grant, err := f.grants.Get(ctx, previewOnly.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GrantStatusPreviewing, grant.Status)

	grant, err = f.grants.Get(ctx, fullAccess.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GrantStatusShared, grant.Status)
	require.NotNil(t, grant.CredentialsKey)
	assert.Equal(t, testWrapped(0x53), *grant.CredentialsKey)

	// Redemption completes the trust edge.
	friends, err := f.friends.AreFriends(ctx, inviter.ID, invitee.ID)
	require.NoError(t, err)
	assert.True(t, friends)

	// The invite is consumed.
	_, _, err = f.inviteService.InviteGrants(ctx, invite.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.inviteService.RedeemInvite(ctx, invitee.ID, invite.ID, rewrapped)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestInvite_Redeem_CoverageErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	invitee := createUser(t, f, "invitee@example.com", "invitee")

	previewOnly := createRecord(t, f, inviter.ID, "preview-only")
	fullAccess := createRecord(t, f, inviter.ID, "full")
	invite := createInvite(t, f, inviter.ID)
	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, previewOnly.ID, invite.ID, testWrapped(0x41), nil))
	require.NoError(t, f.inviteService.GrantToInvite(ctx, inviter.ID, fullAccess.ID, invite.ID, testWrapped(0x42), testWrappedPtr(0x43)))

	previewRewrap := model.RewrappedInviteGrant{RecordID: previewOnly.ID, PreviewKey: testWrapped(0x51)}
	fullRewrap := model.RewrappedInviteGrant{RecordID: fullAccess.ID, PreviewKey: testWrapped(0x52), CredentialsKey: testWrappedPtr(0x53)}

	tests := []struct {
		name      string
		rewrapped []model.RewrappedInviteGrant
	}{
		{"missing record", []model.RewrappedInviteGrant{fullRewrap}},
		{"duplicate record", []model.RewrappedInviteGrant{previewRewrap, previewRewrap, fullRewrap}},
		{"unknown record", []model.RewrappedInviteGrant{previewRewrap, fullRewrap, {RecordID: uuid.New(), PreviewKey: testWrapped(0x54)}}},
		{"missing credentials rewrap", []model.RewrappedInviteGrant{previewRewrap, {RecordID: fullAccess.ID, PreviewKey: testWrapped(0x52)}}},
		{"unexpected credentials rewrap", []model.RewrappedInviteGrant{{RecordID: previewOnly.ID, PreviewKey: testWrapped(0x51), CredentialsKey: testWrappedPtr(0x55)}, fullRewrap}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.inviteService.RedeemInvite(ctx, invitee.ID, invite.ID, tt.rewrapped)
			require.ErrorIs(t, err, model.ErrInvalidArgument)
		})
	}

	// None of the failures consumed the invite.
	_, pending, err := f.inviteService.InviteGrants(ctx, invite.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestInvite_Redeem_InviterCannotSelfRedeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	invite := createInvite(t, f, inviter.ID)

	_, err := f.inviteService.RedeemInvite(ctx, inviter.ID, invite.ID, nil)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestInvite_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := createUser(t, f, "inviter@example.com", "inviter")
	invitee := createUser(t, f, "invitee@example.com", "invitee")

	expired := model.Invite{
		ID:                 uuid.New(),
		InviterID:          inviter.ID,
		EphemeralPublicKey: testPublicKeyDER(t),
		ExpiresAt:          time.Now().Add(-time.Minute),
		CreatedAt:          time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.invites.Create(ctx, expired))

	_, _, err := f.inviteService.InviteGrants(ctx, expired.ID)
	require.ErrorIs(t, err, model.ErrExpired)
	_, err = f.inviteService.RedeemInvite(ctx, invitee.ID, expired.ID, nil)
	require.ErrorIs(t, err, model.ErrExpired)
}
