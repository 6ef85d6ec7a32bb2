//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/model"
	repo "github.com/sealshare/sealshare-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "sealshare_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/sealshare_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func hexOf(c string, n int) string {
	return strings.Repeat(c, n)
}

func testCiphertext() envelope.Ciphertext {
	return envelope.Ciphertext{
		Algorithm: envelope.AlgorithmAESGCM,
		IV:        make([]byte, envelope.NonceSize),
		Data:      []byte("ciphertext"),
	}
}

func testWrappedKey(fill byte) envelope.WrappedKey {
	data := make([]byte, envelope.PublicKeyBits/8)
	for i := range data {
		data[i] = fill
	}
	return envelope.WrappedKey{Algorithm: envelope.AlgorithmRSAOAEP, Data: data}
}

func testWrappedKeyPtr(fill byte) *envelope.WrappedKey {
	k := testWrappedKey(fill)
	return &k
}

func testUser(email, handle string) model.User {
	pk := testCiphertext()
	pk.Salt = make([]byte, envelope.SaltSize)
	return model.User{
		ID:          uuid.New(),
		Email:       email,
		Handle:      handle,
		FullName:    "Test User",
		SRPSalt:     hexOf("a", 32),
		SRPVerifier: hexOf("b", 768),
		PublicKey:   []byte("public-key-der"),
		PrivateKey:  pk,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func createUser(t *testing.T, ctx context.Context, ur *repo.UserRepository, email, handle string) model.User {
	t.Helper()
	saved, err := ur.Create(ctx, testUser(email, handle))
	require.NoError(t, err)
	return saved
}

func createRecord(t *testing.T, ctx context.Context, rr *repo.RecordRepository, managerID uuid.UUID) model.CredentialRecord {
	t.Helper()
	record := model.CredentialRecord{
		ID:          uuid.New(),
		ManagerID:   managerID,
		Credentials: testCiphertext(),
		Preview:     testCiphertext(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	managerGrant := model.AccessGrant{
		RecordID:       record.ID,
		UserID:         managerID,
		Status:         model.GrantStatusManager,
		PreviewKey:     testWrappedKey(1),
		CredentialsKey: testWrappedKeyPtr(2),
	}
	saved, err := rr.Create(ctx, record, managerGrant)
	require.NoError(t, err)
	return saved
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	u := createUser(t, ctx, ur, "user@example.com", "user-one")

	byEmail, err := ur.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, u.SRPVerifier, byEmail.SRPVerifier)

	byHandle, err := ur.GetByHandle(ctx, u.Handle)
	require.NoError(t, err)
	require.Equal(t, u.ID, byHandle.ID)

	byID, err := ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)

	_, err = ur.GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, model.ErrNotFound)

	newKey := testCiphertext()
	newKey.Salt = make([]byte, envelope.SaltSize)
	err = ur.UpdateCredentials(ctx, u.ID, hexOf("c", 32), hexOf("d", 768), newKey)
	require.NoError(t, err)

	updated, err := ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, hexOf("c", 32), updated.SRPSalt)
	require.Equal(t, hexOf("d", 768), updated.SRPVerifier)
}

func TestChallengeRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	cr := repo.NewChallengeRepository(conn)

	u := createUser(t, ctx, ur, "challenge@example.com", "challenge-user")

	challenge := model.AuthChallenge{
		ID:           uuid.New(),
		UserID:       u.ID,
		ClientPublic: hexOf("1", 768),
		ServerPublic: hexOf("2", 768),
		ServerSecret: hexOf("3", 64),
		ExpiresAt:    time.Now().Add(10 * time.Minute),
		CreatedAt:    time.Now(),
	}
	require.NoError(t, cr.Create(ctx, challenge))

	got, err := cr.GetByID(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, challenge.ClientPublic, got.ClientPublic)
	require.False(t, got.Consumed)
	require.Empty(t, got.SessionKey)

	require.NoError(t, cr.Complete(ctx, challenge.ID, hexOf("4", 64)))

	consumed, err := cr.GetByID(ctx, challenge.ID)
	require.NoError(t, err)
	require.True(t, consumed.Consumed)
	require.Equal(t, hexOf("4", 64), consumed.SessionKey)

	// single-use: a second completion must lose
	err = cr.Complete(ctx, challenge.ID, hexOf("5", 64))
	require.ErrorIs(t, err, model.ErrNotFound)

	expired := challenge
	expired.ID = uuid.New()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, cr.Create(ctx, expired))

	n, err := cr.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	_, err = cr.GetByID(ctx, expired.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordAndGrantRepositories(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	rr := repo.NewRecordRepository(conn)
	gr := repo.NewGrantRepository(conn)

	manager := createUser(t, ctx, ur, "manager@example.com", "manager-user")
	grantee := createUser(t, ctx, ur, "grantee@example.com", "grantee-user")

	record := createRecord(t, ctx, rr, manager.ID)

	managerGrant, err := gr.Get(ctx, record.ID, manager.ID)
	require.NoError(t, err)
	require.Equal(t, model.GrantStatusManager, managerGrant.Status)
	require.NotNil(t, managerGrant.CredentialsKey)
	require.Equal(t, int64(1), managerGrant.Version)

	err = gr.Create(ctx, model.AccessGrant{
		RecordID:   record.ID,
		UserID:     grantee.ID,
		Status:     model.GrantStatusPreviewing,
		PreviewKey: testWrappedKey(3),
	})
	require.NoError(t, err)

	// CAS: transition to request-pending, then a stale retry must lose
	update := model.GrantStatusUpdate{
		RecordID: record.ID,
		UserID:   grantee.ID,
		From:     model.GrantStatusPreviewing,
		To:       model.GrantStatusRequestPending,
	}
	require.NoError(t, gr.UpdateStatus(ctx, update))
	require.ErrorIs(t, gr.UpdateStatus(ctx, update), model.ErrInvalidTransition)

	approve := model.GrantStatusUpdate{
		RecordID:       record.ID,
		UserID:         grantee.ID,
		From:           model.GrantStatusRequestPending,
		To:             model.GrantStatusShared,
		CredentialsKey: testWrappedKeyPtr(4),
	}
	require.NoError(t, gr.UpdateStatus(ctx, approve))

	shared, err := gr.Get(ctx, record.ID, grantee.ID)
	require.NoError(t, err)
	require.Equal(t, model.GrantStatusShared, shared.Status)
	require.NotNil(t, shared.CredentialsKey)
	require.Equal(t, int64(3), shared.Version)

	byRecord, err := gr.ListByRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, byRecord, 2)

	byUser, err := gr.ListByUser(ctx, grantee.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	// rotation must cover every remaining grant exactly
	rotation := model.RecordRotation{
		Credentials: testCiphertext(),
		Preview:     testCiphertext(),
		Keys: []model.GrantKeyUpdate{
			{UserID: manager.ID, PreviewKey: testWrappedKey(5), CredentialsKey: testWrappedKeyPtr(6)},
		},
	}
	require.ErrorIs(t, gr.Rotate(ctx, record.ID, rotation), model.ErrInvalidTransition)

	rotation.Keys = append(rotation.Keys, model.GrantKeyUpdate{
		UserID:         grantee.ID,
		PreviewKey:     testWrappedKey(7),
		CredentialsKey: testWrappedKeyPtr(8),
	})
	require.NoError(t, gr.Rotate(ctx, record.ID, rotation))

	rotated, err := gr.Get(ctx, record.ID, manager.ID)
	require.NoError(t, err)
	require.Equal(t, testWrappedKey(5).Data, rotated.PreviewKey.Data)

	deleted, err := gr.Delete(ctx, record.ID, grantee.ID)
	require.NoError(t, err)
	require.Equal(t, model.GrantStatusShared, deleted.Status)
	_, err = gr.Get(ctx, record.ID, grantee.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	// record delete cascades to the manager grant
	require.NoError(t, rr.Delete(ctx, record.ID))
	_, err = gr.Get(ctx, record.ID, manager.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestInviteRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	rr := repo.NewRecordRepository(conn)
	gr := repo.NewGrantRepository(conn)
	ir := repo.NewInviteRepository(conn)

	inviter := createUser(t, ctx, ur, "inviter@example.com", "inviter-user")
	invitee := createUser(t, ctx, ur, "invitee@example.com", "invitee-user")
	record := createRecord(t, ctx, rr, inviter.ID)

	invite := model.Invite{
		ID:                 uuid.New(),
		InviterID:          inviter.ID,
		Nickname:           "friend",
		EphemeralPublicKey: []byte("ephemeral-der"),
		ExpiresAt:          time.Now().Add(24 * time.Hour),
		CreatedAt:          time.Now(),
	}
	require.NoError(t, ir.Create(ctx, invite))

	got, err := ir.GetByID(ctx, invite.ID)
	require.NoError(t, err)
	require.Equal(t, invite.Nickname, got.Nickname)
	require.False(t, got.Consumed)

	require.NoError(t, ir.CreateGrant(ctx, model.PendingInviteGrant{
		InviteID:   invite.ID,
		RecordID:   record.ID,
		Status:     model.GrantStatusOfferPending,
		PreviewKey: testWrappedKey(1),
		OfferedKey: testWrappedKeyPtr(2),
		CreatedAt:  time.Now(),
	}))

	pending, err := ir.ListGrants(ctx, invite.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].OfferedKey)

	converted := []model.AccessGrant{{
		RecordID:       record.ID,
		UserID:         invitee.ID,
		Status:         model.GrantStatusShared,
		PreviewKey:     testWrappedKey(3),
		CredentialsKey: testWrappedKeyPtr(4),
	}}
	require.NoError(t, ir.Redeem(ctx, invite.ID, converted))

	// second redemption loses
	require.ErrorIs(t, ir.Redeem(ctx, invite.ID, converted), model.ErrNotFound)

	grant, err := gr.Get(ctx, record.ID, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, model.GrantStatusShared, grant.Status)

	cleared, err := ir.ListGrants(ctx, invite.ID)
	require.NoError(t, err)
	require.Empty(t, cleared)
}

func TestFriendRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	fr := repo.NewFriendRepository(conn)

	alice := createUser(t, ctx, ur, "alice@example.com", "alice")
	bob := createUser(t, ctx, ur, "bob@example.com", "bob")

	request := model.FriendRequest{
		ID:          uuid.New(),
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Status:      model.FriendStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, fr.Create(ctx, request))

	incoming, err := fr.ListIncoming(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	outgoing, err := fr.ListOutgoing(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	// pair lookup works in both directions
	byPair, err := fr.GetByPair(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, byPair.ID)

	friends, err := fr.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, friends)

	accepted, err := fr.UpdateStatus(ctx, request.ID, model.FriendStatusPending, model.FriendStatusAccepted)
	require.NoError(t, err)
	require.Equal(t, model.FriendStatusAccepted, accepted.Status)

	// stale response loses
	_, err = fr.UpdateStatus(ctx, request.ID, model.FriendStatusPending, model.FriendStatusRejected)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	friends, err = fr.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, friends)

	edges, err := fr.ListAccepted(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	require.NoError(t, fr.Delete(ctx, request.ID))
	_, err = fr.GetByID(ctx, request.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}
