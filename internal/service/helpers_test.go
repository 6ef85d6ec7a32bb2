package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/repository/memory"
	"github.com/sealshare/sealshare-server/internal/srp"
	"github.com/sealshare/sealshare-server/internal/token"
)

// testBlobThreshold keeps blob-spill tests cheap.
const testBlobThreshold = 256

type fixture struct {
	users      *memory.UserStore
	challenges *memory.ChallengeStore
	refresh    *memory.RefreshTokenStore
	records    *memory.RecordStore
	grants     *memory.GrantStore
	invites    *memory.InviteStore
	friends    *memory.FriendStore
	blobs      *memory.BlobStore

	auth          *Auth
	recordService *Record
	grantService  *Grant
	inviteService *Invite
	friendService *Friend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	grants := memory.NewGrantStore()
	records := memory.NewRecordStore(grants)
	grants.BindRecords(records)

	f := &fixture{
		users:      memory.NewUserStore(),
		challenges: memory.NewChallengeStore(),
		refresh:    memory.NewRefreshTokenStore(),
		records:    records,
		grants:     grants,
		invites:    memory.NewInviteStore(grants),
		friends:    memory.NewFriendStore(),
		blobs:      memory.NewBlobStore(),
	}

	log := logger.New(0)
	f.auth = NewAuth(f.users, f.challenges, f.refresh, token.NewJWT("test-secret"), []byte("test decoy secret"), log)
	f.recordService = NewRecord(f.records, f.grants, f.blobs, testBlobThreshold, log)
	f.grantService = NewGrant(f.grants, f.records, f.users, f.friends, log)
	f.inviteService = NewInvite(f.invites, f.records, f.users, f.friends, log)
	f.friendService = NewFriend(f.friends, f.users, log)
	return f
}

var (
	rsaKeyOnce sync.Once
	rsaKey     *rsa.PrivateKey
)

// testRSAKey generates one 4096-bit keypair per test binary; keygen is too
// slow to repeat.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, envelope.PublicKeyBits)
		if err != nil {
			t.Fatalf("generate keypair: %v", err)
		}
		rsaKey = key
	})
	return rsaKey
}

var (
	peerRSAKeyOnce sync.Once
	peerRSAKey     *rsa.PrivateKey
)

// testPeerRSAKey is a second keypair, for tests that play both sides of a
// share.
func testPeerRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	peerRSAKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, envelope.PublicKeyBits)
		if err != nil {
			t.Fatalf("generate peer keypair: %v", err)
		}
		peerRSAKey = key
	})
	return peerRSAKey
}

func testPublicKeyDER(t *testing.T) []byte {
	t.Helper()
	der, err := envelope.EncodePublicKey(&testRSAKey(t).PublicKey)
	require.NoError(t, err)
	return der
}

// testWrapped fabricates a structurally valid wrapped key. Services only
// check shape; unwrapping happens client-side.
func testWrapped(fill byte) envelope.WrappedKey {
	data := bytes.Repeat([]byte{fill}, envelope.PublicKeyBits/8)
	return envelope.WrappedKey{Algorithm: envelope.AlgorithmRSAOAEP, Data: data}
}

func testWrappedPtr(fill byte) *envelope.WrappedKey {
	wk := testWrapped(fill)
	return &wk
}

func testCiphertext(payload string) envelope.Ciphertext {
	return envelope.Ciphertext{
		Algorithm: envelope.AlgorithmAESGCM,
		IV:        bytes.Repeat([]byte{0x1f}, envelope.NonceSize),
		Data:      []byte(payload),
	}
}

// createUser inserts a user directly, skipping the signup path. The SRP
// material is shaped correctly but derives from no real password.
func createUser(t *testing.T, f *fixture, email, handle string) model.User {
	t.Helper()
	now := time.Now()
	user, err := f.users.Create(context.Background(), model.User{
		ID:          uuid.New(),
		Email:       email,
		Handle:      handle,
		FullName:    "Test " + handle,
		SRPSalt:     strings.Repeat("a", srp.SaltHexLen),
		SRPVerifier: strings.Repeat("b", srp.GroupHexLen),
		PublicKey:   []byte("pkix der"),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return user
}

// makeFriends installs an accepted trust edge directly.
func makeFriends(t *testing.T, f *fixture, a, b uuid.UUID) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.friends.Create(context.Background(), model.FriendRequest{
		ID:          uuid.New(),
		SenderID:    a,
		RecipientID: b,
		Status:      model.FriendStatusAccepted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func createRecord(t *testing.T, f *fixture, managerID uuid.UUID, payload string) model.CredentialRecord {
	t.Helper()
	record, err := f.recordService.CreateRecord(context.Background(), managerID, model.CreateRecordParams{
		Credentials:    testCiphertext(payload),
		Preview:        testCiphertext("preview:" + payload),
		PreviewKey:     testWrapped(0x01),
		CredentialsKey: testWrapped(0x02),
	})
	require.NoError(t, err)
	return record
}
