// Package srp implements the SRP-6a password-authenticated key exchange used
// by the authentication handshake. The group is the 3072-bit group from RFC
// 5054 (the RFC 3526 MODP prime with generator 5) with SHA-256; parameters
// are fixed and not negotiable.
//
// The server side stores only a salt and verifier and never sees the
// password. Client-side functions are included so that clients and tests can
// run the full transcript against the engine.
package srp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const groupHex = "" +
	"ffffffffffffffffc90fdaa22168c234c4c6628b80dc1cd129024e088a67cc74" +
	"020bbea63b139b22514a08798e3404ddef9519b3cd3a431b302b0a6df25f1437" +
	"4fe1356d6d51c245e485b576625e7ec6f44c42e9a637ed6b0bff5cb6f406b7ed" +
	"ee386bfb5a899fa5ae9f24117c4b1fe649286651ece45b3dc2007cb8a163bf05" +
	"98da48361c55d39a69163fa8fd24cf5f83655d23dca3ad961c62f356208552bb" +
	"9ed529077096966d670c354e4abc9804f1746c08ca18217c32905e462e36ce3b" +
	"e39e772c180e86039b2783a2ec07a28fb5c55df06f4c52c9de2bcbf695581718" +
	"3995497cea956ae515d2261898fa051015728e5a8aaac42dad33170d04507a33" +
	"a85521abdf1cba64ecfb850458dbef0a8aea71575d060c7db3970f85a6e1e4c7" +
	"abf5ae8cdb0933d71e8c94e04a25619dcee3d2261ad2ee6bf12ffa06d98a0864" +
	"d87602733ec86a64521f2b18177b200cbbe117577a615d6c770988c0bad946e2" +
	"08e24fa074e5ab3143db5bfce0fd108e4b82d120a93ad2caffffffffffffffff"

// Fixed-length hex field sizes. These are invariants at the storage boundary,
// not just the application boundary.
const (
	// GroupHexLen is the length of verifiers and ephemeral public values.
	GroupHexLen = 768
	// SaltHexLen is the length of a user's authentication salt.
	SaltHexLen = 32
	// SecretHexLen is the length of an ephemeral secret exponent.
	SecretHexLen = 64
	// KeyHexLen is the length of a derived session key or proof.
	KeyHexLen = 64

	groupBytes = GroupHexLen / 2
)

var (
	groupN *big.Int
	groupG = big.NewInt(5)
	multK  *big.Int
)

func init() {
	groupN, _ = new(big.Int).SetString(groupHex, 16)
	if groupN == nil {
		panic("srp: bad group prime")
	}
	// k = H(N | pad(g)), per SRP-6a
	multK = hashInt(pad(groupN), pad(groupG))
}

// Ephemeral is a one-time secret/public exponent pair. The secret half never
// leaves the side that generated it.
type Ephemeral struct {
	Secret string
	Public string
}

// GenerateSalt returns a fresh random salt as fixed-length lowercase hex.
func GenerateSalt() (string, error) {
	raw := make([]byte, SaltHexLen/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// ComputeVerifier derives the stored verifier v = g^x for an identity,
// password and salt. Run client-side; the server persists only the result.
func ComputeVerifier(identity, password, saltHex string) (string, error) {
	salt, err := decodeHex(saltHex, SaltHexLen)
	if err != nil {
		return "", err
	}
	x := credentialHash(identity, password, salt)
	v := new(big.Int).Exp(groupG, x, groupN)
	return encodeGroup(v), nil
}

// ServerEphemeral generates the server's one-time pair for a handshake:
// B = kv + g^b against the user's stored verifier.
func ServerEphemeral(verifierHex string) (Ephemeral, error) {
	v, err := decodeGroup(verifierHex)
	if err != nil {
		return Ephemeral{}, err
	}

	b, err := randomExponent()
	if err != nil {
		return Ephemeral{}, err
	}

	return Ephemeral{
		Secret: encodeSecret(b),
		Public: encodeGroup(publicB(v, b)),
	}, nil
}

// ClientEphemeral generates the client's one-time pair A = g^a.
func ClientEphemeral() (Ephemeral, error) {
	a, err := randomExponent()
	if err != nil {
		return Ephemeral{}, err
	}
	A := new(big.Int).Exp(groupG, a, groupN)
	return Ephemeral{Secret: encodeSecret(a), Public: encodeGroup(A)}, nil
}

// ServerKey derives the shared session key on the server side from the stored
// verifier, the server's ephemeral secret and both public ephemerals.
func ServerKey(verifierHex, serverSecretHex, clientPublicHex, serverPublicHex string) (string, error) {
	v, err := decodeGroup(verifierHex)
	if err != nil {
		return "", err
	}
	b, err := decodeExponent(serverSecretHex)
	if err != nil {
		return "", err
	}
	A, err := decodePublic(clientPublicHex)
	if err != nil {
		return "", err
	}
	B, err := decodePublic(serverPublicHex)
	if err != nil {
		return "", err
	}

	u := scrambler(A, B)
	if u.Sign() == 0 {
		return "", fmt.Errorf("srp: zero scrambling parameter")
	}

	// S = (A * v^u)^b
	s := new(big.Int).Exp(v, u, groupN)
	s.Mul(s, A).Mod(s, groupN)
	s.Exp(s, b, groupN)

	return sessionKey(s), nil
}

// ClientKey derives the shared session key on the client side from the
// password and the transcript.
func ClientKey(identity, password, saltHex, clientSecretHex, clientPublicHex, serverPublicHex string) (string, error) {
	salt, err := decodeHex(saltHex, SaltHexLen)
	if err != nil {
		return "", err
	}
	a, err := decodeExponent(clientSecretHex)
	if err != nil {
		return "", err
	}
	A, err := decodePublic(clientPublicHex)
	if err != nil {
		return "", err
	}
	B, err := decodePublic(serverPublicHex)
	if err != nil {
		return "", err
	}

	u := scrambler(A, B)
	if u.Sign() == 0 {
		return "", fmt.Errorf("srp: zero scrambling parameter")
	}

	x := credentialHash(identity, password, salt)

	// S = (B - k*g^x)^(a + u*x)
	gx := new(big.Int).Exp(groupG, x, groupN)
	base := new(big.Int).Mul(multK, gx)
	base.Sub(B, base).Mod(base, groupN)
	if base.Sign() < 0 {
		base.Add(base, groupN)
	}
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)
	s := new(big.Int).Exp(base, exp, groupN)

	return sessionKey(s), nil
}

// ClientProof computes M1 = H((H(N) xor H(g)) | H(I) | s | A | B | K) over
// the full transcript.
func ClientProof(identity, saltHex, clientPublicHex, serverPublicHex, keyHex string) (string, error) {
	salt, err := decodeHex(saltHex, SaltHexLen)
	if err != nil {
		return "", err
	}
	A, err := decodePublic(clientPublicHex)
	if err != nil {
		return "", err
	}
	B, err := decodePublic(serverPublicHex)
	if err != nil {
		return "", err
	}
	key, err := decodeHex(keyHex, KeyHexLen)
	if err != nil {
		return "", err
	}

	hn := sha256.Sum256(pad(groupN))
	hg := sha256.Sum256(pad(groupG))
	for i := range hn {
		hn[i] ^= hg[i]
	}
	hi := sha256.Sum256([]byte(identity))

	m1 := hashBytes(hn[:], hi[:], salt, pad(A), pad(B), key)
	return hex.EncodeToString(m1), nil
}

// ServerProof computes M2 = H(A | M1 | K), returned to the client so it can
// authenticate the server.
func ServerProof(clientPublicHex, clientProofHex, keyHex string) (string, error) {
	A, err := decodePublic(clientPublicHex)
	if err != nil {
		return "", err
	}
	m1, err := decodeHex(clientProofHex, KeyHexLen)
	if err != nil {
		return "", err
	}
	key, err := decodeHex(keyHex, KeyHexLen)
	if err != nil {
		return "", err
	}
	m2 := hashBytes(pad(A), m1, key)
	return hex.EncodeToString(m2), nil
}

// VerifyProof compares two proofs in constant time.
func VerifyProof(expectedHex, presentedHex string) bool {
	expected, err := decodeHex(expectedHex, KeyHexLen)
	if err != nil {
		return false
	}
	presented, err := decodeHex(presentedHex, KeyHexLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, presented) == 1
}

// ValidPublic reports whether a presented ephemeral public value is a legal
// nonzero group element in fixed-length lowercase hex.
func ValidPublic(publicHex string) bool {
	_, err := decodePublic(publicHex)
	return err == nil
}

// Decoy derives a stable, syntactically valid handshake response for an
// unknown identity, keyed by a server-held secret so the output is not
// predictable to callers. Repeated calls for the same identity return the
// same values; nothing is persisted.
func Decoy(secret []byte, identity string) (challengeID uuid.UUID, saltHex, serverPublicHex string) {
	salt := hmacTag(secret, "decoy-salt:"+identity)[:SaltHexLen/2]

	b := new(big.Int).SetBytes(hmacTag(secret, "decoy-ephemeral:"+identity))
	B := new(big.Int).Exp(groupG, b, groupN)

	id := hmacTag(secret, "decoy-challenge:"+identity)[:16]
	id[6] = (id[6] & 0x0f) | 0x40 // version 4 shape
	id[8] = (id[8] & 0x3f) | 0x80
	challengeID, _ = uuid.FromBytes(id)

	return challengeID, hex.EncodeToString(salt), encodeGroup(B)
}

func publicB(v, b *big.Int) *big.Int {
	B := new(big.Int).Mul(multK, v)
	B.Add(B, new(big.Int).Exp(groupG, b, groupN))
	B.Mod(B, groupN)
	return B
}

// credentialHash computes x = H(s | H(I ":" P)) per RFC 2945.
func credentialHash(identity, password string, salt []byte) *big.Int {
	inner := sha256.Sum256([]byte(identity + ":" + password))
	return hashInt(salt, inner[:])
}

// scrambler computes u = H(A | B) over padded group elements.
func scrambler(A, B *big.Int) *big.Int {
	return hashInt(pad(A), pad(B))
}

func sessionKey(s *big.Int) string {
	k := sha256.Sum256(pad(s))
	return hex.EncodeToString(k[:])
}

func randomExponent() (*big.Int, error) {
	raw := make([]byte, SecretHexLen/2)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate ephemeral: %w", err)
	}
	return new(big.Int).SetBytes(raw), nil
}

func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(parts...))
}

func hmacTag(secret []byte, label string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

// pad left-pads a group element to the full group width.
func pad(x *big.Int) []byte {
	out := make([]byte, groupBytes)
	x.FillBytes(out)
	return out
}

func encodeGroup(x *big.Int) string {
	return hex.EncodeToString(pad(x))
}

func encodeSecret(x *big.Int) string {
	out := make([]byte, SecretHexLen/2)
	x.FillBytes(out)
	return hex.EncodeToString(out)
}

func decodeGroup(s string) (*big.Int, error) {
	raw, err := decodeHex(s, GroupHexLen)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func decodePublic(s string) (*big.Int, error) {
	x, err := decodeGroup(s)
	if err != nil {
		return nil, err
	}
	if new(big.Int).Mod(x, groupN).Sign() == 0 {
		return nil, fmt.Errorf("srp: public value is zero in the group")
	}
	return x, nil
}

func decodeExponent(s string) (*big.Int, error) {
	raw, err := decodeHex(s, SecretHexLen)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// decodeHex enforces the fixed-length lowercase hex invariant.
func decodeHex(s string, wantLen int) ([]byte, error) {
	if len(s) != wantLen {
		return nil, fmt.Errorf("srp: hex field length %d, want %d", len(s), wantLen)
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("srp: hex field contains %q", c)
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("srp: bad hex field: %w", err)
	}
	return raw, nil
}
