package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealshare/sealshare-server/internal/model"
)

func TestFriend_SendAndAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")
	bob := createUser(t, f, "bob@example.com", "bob")

	request, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FriendStatusPending, request.Status)

	incoming, err := f.friendService.ListIncoming(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, request.ID, incoming[0].Request.ID)
	assert.Equal(t, "alice", incoming[0].Peer.Handle)

	outgoing, err := f.friendService.ListOutgoing(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "bob", outgoing[0].Peer.Handle)

	updated, err := f.friendService.Respond(ctx, bob.ID, request.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.FriendStatusAccepted, updated.Status)

	// Accepted means mutual trust.
	trusted, err := f.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, trusted)
	trusted, err = f.friends.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, trusted)

	for _, userID := range []uuid.UUID{alice.ID, bob.ID} {
		friends, err := f.friendService.ListFriends(ctx, userID)
		require.NoError(t, err)
		require.Len(t, friends, 1)
	}
}

func TestFriend_Reject_AllowsRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")
	bob := createUser(t, f, "bob@example.com", "bob")

	request, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	updated, err := f.friendService.Respond(ctx, bob.ID, request.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.FriendStatusRejected, updated.Status)

	trusted, err := f.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, trusted)

	// A rejected edge may be retried; the old row is replaced.
	retry, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, request.ID, retry.ID)
	assert.Equal(t, model.FriendStatusPending, retry.Status)
}

func TestFriend_DuplicateRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")
	bob := createUser(t, f, "bob@example.com", "bob")

	_, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	// Same direction.
	_, err = f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// Opposite direction while the first is pending.
	_, err = f.friendService.SendRequest(ctx, bob.ID, "alice")
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestFriend_SendRequest_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")

	_, err := f.friendService.SendRequest(ctx, alice.ID, "alice")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = f.friendService.SendRequest(ctx, alice.ID, "NOT A HANDLE")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = f.friendService.SendRequest(ctx, alice.ID, "nobody")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFriend_Respond_RecipientOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")
	bob := createUser(t, f, "bob@example.com", "bob")
	carol := createUser(t, f, "carol@example.com", "carol")

	request, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	// The sender cannot accept their own request, nor can a bystander.
	_, err = f.friendService.Respond(ctx, alice.ID, request.ID, true)
	require.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.friendService.Respond(ctx, carol.ID, request.ID, true)
	require.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.friendService.Respond(ctx, bob.ID, uuid.New(), true)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFriend_Respond_AlreadyAnswered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := createUser(t, f, "alice@example.com", "alice")
	bob := createUser(t, f, "bob@example.com", "bob")

	request, err := f.friendService.SendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	_, err = f.friendService.Respond(ctx, bob.ID, request.ID, true)
	require.NoError(t, err)

	_, err = f.friendService.Respond(ctx, bob.ID, request.ID, false)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}
