// Package envelope implements the ciphertext and key-wrapping formats used
// for credential records and identity key material. It operates on opaque
// byte buffers only; callers decide what the plaintext means.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Algorithm tags carried by every persisted ciphertext.
const (
	AlgorithmAESGCM  = "aes-256-gcm"
	AlgorithmRSAOAEP = "rsa-4096-oaep-sha256"
)

const (
	// DataKeySize is the size of a per-record symmetric data key.
	DataKeySize = 32
	// SaltSize is the size of the salt used with the key-derivation step.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce size.
	NonceSize = 12
	// PublicKeyBits is the required modulus size for recipient keypairs.
	PublicKeyBits = 4096
)

var (
	// ErrMalformedCiphertext reports a ciphertext missing required fields or
	// carrying an unknown algorithm tag.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptionFailed reports a failed symmetric decryption.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrUnwrapFailed reports a failed asymmetric key unwrap.
	ErrUnwrapFailed = errors.New("key unwrap failed")
)

// Ciphertext is a tagged symmetric ciphertext. Salt is present only when the
// encryption key was derived from a low-entropy secret (user private keys at
// rest); data keys are random and carry no salt.
type Ciphertext struct {
	Algorithm string `json:"algorithm"`
	IV        []byte `json:"iv"`
	Salt      []byte `json:"salt,omitempty"`
	Data      []byte `json:"data"`
}

// Validate checks the structural invariants of a symmetric ciphertext.
func (c Ciphertext) Validate() error {
	if c.Algorithm != AlgorithmAESGCM {
		return fmt.Errorf("%w: unknown symmetric algorithm %q", ErrMalformedCiphertext, c.Algorithm)
	}
	if len(c.IV) != NonceSize {
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrMalformedCiphertext, NonceSize, len(c.IV))
	}
	if len(c.Salt) != 0 && len(c.Salt) != SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", ErrMalformedCiphertext, SaltSize, len(c.Salt))
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("%w: empty ciphertext data", ErrMalformedCiphertext)
	}
	return nil
}

// WrappedKey is a symmetric key encrypted under a recipient's public key.
type WrappedKey struct {
	Algorithm string `json:"algorithm"`
	Data      []byte `json:"data"`
}

// Validate checks the structural invariants of a wrapped key.
func (w WrappedKey) Validate() error {
	if w.Algorithm != AlgorithmRSAOAEP {
		return fmt.Errorf("%w: unknown wrap algorithm %q", ErrMalformedCiphertext, w.Algorithm)
	}
	if len(w.Data) != PublicKeyBits/8 {
		return fmt.Errorf("%w: wrapped key must be %d bytes, got %d", ErrMalformedCiphertext, PublicKeyBits/8, len(w.Data))
	}
	return nil
}

// NewDataKey generates a fresh random symmetric data key.
func NewDataKey() ([]byte, error) {
	key := make([]byte, DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	return key, nil
}

// EncryptSymmetric encrypts plaintext under key with AES-256-GCM and a fresh
// random nonce.
func EncryptSymmetric(plaintext, key []byte) (Ciphertext, error) {
	aead, err := newGCM(key)
	if err != nil {
		return Ciphertext{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Ciphertext{}, fmt.Errorf("generate nonce: %w", err)
	}

	return Ciphertext{
		Algorithm: AlgorithmAESGCM,
		IV:        nonce,
		Data:      aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// DecryptSymmetric decrypts a tagged ciphertext with key. A structurally
// invalid ciphertext fails with ErrMalformedCiphertext before any crypto runs.
func DecryptSymmetric(ct Ciphertext, key []byte) ([]byte, error) {
	if err := ct.Validate(); err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, ct.IV, ct.Data, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptWithSecret derives a key from secret with a fresh salt and encrypts
// plaintext under it. Used for private keys wrapped by a password-derived
// master secret.
func EncryptWithSecret(plaintext, secret []byte) (Ciphertext, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Ciphertext{}, fmt.Errorf("generate salt: %w", err)
	}

	ct, err := EncryptSymmetric(plaintext, DeriveKey(secret, salt))
	if err != nil {
		return Ciphertext{}, err
	}
	ct.Salt = salt
	return ct, nil
}

// DecryptWithSecret re-derives the key from secret and the ciphertext's salt
// and decrypts. The ciphertext must carry a salt.
func DecryptWithSecret(ct Ciphertext, secret []byte) ([]byte, error) {
	if err := ct.Validate(); err != nil {
		return nil, err
	}
	if len(ct.Salt) == 0 {
		return nil, fmt.Errorf("%w: missing key-derivation salt", ErrMalformedCiphertext)
	}
	return DecryptSymmetric(ct, DeriveKey(secret, ct.Salt))
}

// DeriveKey stretches a secret into an AES-256 key with argon2id.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, DataKeySize)
}

// WrapKey encrypts a data key under the recipient's public key.
func WrapKey(dataKey []byte, pub *rsa.PublicKey) (WrappedKey, error) {
	if pub.N.BitLen() != PublicKeyBits {
		return WrappedKey{}, fmt.Errorf("%w: recipient key is %d bits, want %d", ErrMalformedCiphertext, pub.N.BitLen(), PublicKeyBits)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dataKey, nil)
	if err != nil {
		return WrappedKey{}, fmt.Errorf("wrap key: %w", err)
	}

	return WrappedKey{
		Algorithm: AlgorithmRSAOAEP,
		Data:      wrapped,
	}, nil
}

// UnwrapKey recovers a data key using the recipient's private key.
func UnwrapKey(wk WrappedKey, priv *rsa.PrivateKey) ([]byte, error) {
	if err := wk.Validate(); err != nil {
		return nil, err
	}

	dataKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wk.Data, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return dataKey, nil
}

// EncodePublicKey serializes a public key to PKIX DER.
func EncodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("encode public key: %w", err)
	}
	return der, nil
}

// ParsePublicKey deserializes and validates a recipient public key. Keys of
// the wrong type or modulus size are rejected at the storage boundary.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	if pub.N.BitLen() != PublicKeyBits {
		return nil, fmt.Errorf("public key is %d bits, want %d", pub.N.BitLen(), PublicKeyBits)
	}
	return pub, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != DataKeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", DataKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
