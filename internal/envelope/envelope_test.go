package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// testKeypair generates one 4096-bit keypair for the whole package; keygen
// is too slow to repeat per test.
func testKeypair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, PublicKeyBits)
		if err != nil {
			t.Fatalf("generate keypair: %v", err)
		}
		testKey = key
	})
	return testKey
}

func TestSymmetric_Roundtrip(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)
	require.Len(t, key, DataKeySize)

	plaintext := []byte("login: admin\npassword: hunter2")
	ct, err := EncryptSymmetric(plaintext, key)
	require.NoError(t, err)
	require.Equal(t, AlgorithmAESGCM, ct.Algorithm)
	require.Len(t, ct.IV, NonceSize)
	require.Empty(t, ct.Salt)

	got, err := DecryptSymmetric(ct, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSymmetric_TamperFails(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)
	ct, err := EncryptSymmetric([]byte("secret"), key)
	require.NoError(t, err)

	ct.Data[0] ^= 0x01
	_, err = DecryptSymmetric(ct, key)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSymmetric_WrongKeyFails(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)
	other, err := NewDataKey()
	require.NoError(t, err)

	ct, err := EncryptSymmetric([]byte("secret"), key)
	require.NoError(t, err)

	_, err = DecryptSymmetric(ct, other)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCiphertext_Validate(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)
	good, err := EncryptSymmetric([]byte("x"), key)
	require.NoError(t, err)
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Ciphertext)
	}{
		{"unknown algorithm", func(c *Ciphertext) { c.Algorithm = "aes-128-cbc" }},
		{"short iv", func(c *Ciphertext) { c.IV = c.IV[:NonceSize-1] }},
		{"bad salt length", func(c *Ciphertext) { c.Salt = []byte{1, 2, 3} }},
		{"empty data", func(c *Ciphertext) { c.Data = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := good
			tt.mutate(&ct)
			require.ErrorIs(t, ct.Validate(), ErrMalformedCiphertext)
			_, err := DecryptSymmetric(ct, key)
			require.ErrorIs(t, err, ErrMalformedCiphertext)
		})
	}
}

func TestSecret_Roundtrip(t *testing.T) {
	secret := []byte("master passphrase")
	plaintext := []byte("pkcs8 private key bytes")

	ct, err := EncryptWithSecret(plaintext, secret)
	require.NoError(t, err)
	require.Len(t, ct.Salt, SaltSize)

	got, err := DecryptWithSecret(ct, secret)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = DecryptWithSecret(ct, []byte("wrong passphrase"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptWithSecret_RequiresSalt(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)
	ct, err := EncryptSymmetric([]byte("x"), key)
	require.NoError(t, err)

	_, err = DecryptWithSecret(ct, []byte("secret"))
	require.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := make([]byte, SaltSize)
	k1 := DeriveKey([]byte("secret"), salt)
	k2 := DeriveKey([]byte("secret"), salt)
	require.Equal(t, k1, k2)
	require.Len(t, k1, DataKeySize)

	assert.NotEqual(t, k1, DeriveKey([]byte("other"), salt))
}

func TestWrapKey_Roundtrip(t *testing.T) {
	priv := testKeypair(t)

	dataKey, err := NewDataKey()
	require.NoError(t, err)

	wrapped, err := WrapKey(dataKey, &priv.PublicKey)
	require.NoError(t, err)
	require.Equal(t, AlgorithmRSAOAEP, wrapped.Algorithm)
	require.Len(t, wrapped.Data, PublicKeyBits/8)
	require.NoError(t, wrapped.Validate())

	got, err := UnwrapKey(wrapped, priv)
	require.NoError(t, err)
	assert.Equal(t, dataKey, got)
}

func TestUnwrapKey_TamperFails(t *testing.T) {
	priv := testKeypair(t)

	dataKey, err := NewDataKey()
	require.NoError(t, err)
	wrapped, err := WrapKey(dataKey, &priv.PublicKey)
	require.NoError(t, err)

	wrapped.Data[10] ^= 0xff
	_, err = UnwrapKey(wrapped, priv)
	require.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestWrapKey_RejectsSmallKey(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dataKey, err := NewDataKey()
	require.NoError(t, err)

	_, err = WrapKey(dataKey, &small.PublicKey)
	require.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestPublicKey_EncodeParse(t *testing.T) {
	priv := testKeypair(t)

	der, err := EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)

	pub, err := ParsePublicKey(der)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	_, err = ParsePublicKey([]byte("not der"))
	require.Error(t, err)

	small, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	smallDER, err := EncodePublicKey(&small.PublicKey)
	require.NoError(t, err)
	_, err = ParsePublicKey(smallDER)
	require.Error(t, err)
}
