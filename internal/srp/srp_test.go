package srp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSRP_FullTranscript(t *testing.T) {
	const (
		identity = "user@example.com"
		password = "correct horse battery staple"
	)

	salt, err := GenerateSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltHexLen)

	verifier, err := ComputeVerifier(identity, password, salt)
	require.NoError(t, err)
	require.Len(t, verifier, GroupHexLen)

	client, err := ClientEphemeral()
	require.NoError(t, err)
	server, err := ServerEphemeral(verifier)
	require.NoError(t, err)
	require.Len(t, server.Public, GroupHexLen)

	serverKey, err := ServerKey(verifier, server.Secret, client.Public, server.Public)
	require.NoError(t, err)
	clientKey, err := ClientKey(identity, password, salt, client.Secret, client.Public, server.Public)
	require.NoError(t, err)
	require.Equal(t, serverKey, clientKey)
	require.Len(t, serverKey, KeyHexLen)

	m1, err := ClientProof(identity, salt, client.Public, server.Public, clientKey)
	require.NoError(t, err)
	expected, err := ClientProof(identity, salt, client.Public, server.Public, serverKey)
	require.NoError(t, err)
	require.True(t, VerifyProof(expected, m1))

	m2, err := ServerProof(client.Public, m1, serverKey)
	require.NoError(t, err)
	wantM2, err := ServerProof(client.Public, m1, clientKey)
	require.NoError(t, err)
	require.True(t, VerifyProof(wantM2, m2))
}

func TestSRP_WrongPassword_KeyMismatch(t *testing.T) {
	const identity = "user@example.com"

	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier, err := ComputeVerifier(identity, "right password", salt)
	require.NoError(t, err)

	client, err := ClientEphemeral()
	require.NoError(t, err)
	server, err := ServerEphemeral(verifier)
	require.NoError(t, err)

	serverKey, err := ServerKey(verifier, server.Secret, client.Public, server.Public)
	require.NoError(t, err)
	clientKey, err := ClientKey(identity, "wrong password", salt, client.Secret, client.Public, server.Public)
	require.NoError(t, err)

	assert.NotEqual(t, serverKey, clientKey)

	m1, err := ClientProof(identity, salt, client.Public, server.Public, clientKey)
	require.NoError(t, err)
	expected, err := ClientProof(identity, salt, client.Public, server.Public, serverKey)
	require.NoError(t, err)
	assert.False(t, VerifyProof(expected, m1))
}

func TestVerifyProof_BitFlip(t *testing.T) {
	const identity = "user@example.com"

	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier, err := ComputeVerifier(identity, "pw", salt)
	require.NoError(t, err)

	client, err := ClientEphemeral()
	require.NoError(t, err)
	server, err := ServerEphemeral(verifier)
	require.NoError(t, err)

	key, err := ServerKey(verifier, server.Secret, client.Public, server.Public)
	require.NoError(t, err)
	proof, err := ClientProof(identity, salt, client.Public, server.Public, key)
	require.NoError(t, err)

	require.True(t, VerifyProof(proof, proof))

	flipped := []byte(proof)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	assert.False(t, VerifyProof(proof, string(flipped)))
	assert.False(t, VerifyProof(proof, proof[:KeyHexLen-2]))
	assert.False(t, VerifyProof(proof, strings.ToUpper(proof)))
}

func TestValidPublic(t *testing.T) {
	eph, err := ClientEphemeral()
	require.NoError(t, err)

	assert.True(t, ValidPublic(eph.Public))
	assert.False(t, ValidPublic(""))
	assert.False(t, ValidPublic(strings.Repeat("0", GroupHexLen)), "zero is not a legal public value")
	assert.False(t, ValidPublic(strings.Repeat("g", GroupHexLen)), "not hex")
	assert.False(t, ValidPublic(strings.ToUpper(eph.Public)), "uppercase hex is rejected")
	assert.False(t, ValidPublic(eph.Public[:GroupHexLen-2]))
}

func TestDecoy_StableAndWellFormed(t *testing.T) {
	secret := []byte("server decoy secret")

	id1, salt1, public1 := Decoy(secret, "ghost@example.com")
	id2, salt2, public2 := Decoy(secret, "ghost@example.com")

	assert.Equal(t, id1, id2)
	assert.Equal(t, salt1, salt2)
	assert.Equal(t, public1, public2)

	require.Len(t, salt1, SaltHexLen)
	require.Len(t, public1, GroupHexLen)
	assert.True(t, ValidPublic(public1))
	assert.Equal(t, uuid.Version(4), id1.Version())
}

func TestDecoy_VariesByIdentityAndSecret(t *testing.T) {
	secret := []byte("server decoy secret")

	id1, _, public1 := Decoy(secret, "a@example.com")
	id2, _, public2 := Decoy(secret, "b@example.com")
	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, public1, public2)

	id3, _, _ := Decoy([]byte("other secret"), "a@example.com")
	assert.NotEqual(t, id1, id3)
}

func TestComputeVerifier_RejectsBadSalt(t *testing.T) {
	_, err := ComputeVerifier("i", "p", "deadbeef")
	require.Error(t, err)

	_, err = ComputeVerifier("i", "p", strings.Repeat("X", SaltHexLen))
	require.Error(t, err)
}
