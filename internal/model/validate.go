package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sealshare/sealshare-server/internal/envelope"
	"github.com/sealshare/sealshare-server/internal/srp"
)

// emailPattern admits a single-@, non-whitespace address. Character classes
// exclude @ so the pattern can only match exactly one.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

var handlePattern = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)

// NormalizeEmail lowercases an address; emails are stored and compared
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: malformed email address", ErrInvalidArgument)
	}
	return nil
}

// ValidateHandle checks the handle format.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("%w: malformed handle", ErrInvalidArgument)
	}
	return nil
}

// ValidHex reports whether s is lowercase hex of exactly n characters.
func ValidHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ValidateAccount checks every field of a signup request at the boundary.
func (p CreateAccountParams) ValidateAccount() error {
	if err := ValidateEmail(p.Email); err != nil {
		return err
	}
	if err := ValidateHandle(p.Handle); err != nil {
		return err
	}
	if !ValidHex(p.Salt, srp.SaltHexLen) {
		return fmt.Errorf("%w: malformed salt", ErrInvalidArgument)
	}
	if !ValidHex(p.Verifier, srp.GroupHexLen) {
		return fmt.Errorf("%w: malformed verifier", ErrInvalidArgument)
	}
	if _, err := envelope.ParsePublicKey(p.PublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := p.WrappedPrivateKey.Validate(); err != nil {
		return err
	}
	if len(p.WrappedPrivateKey.Salt) == 0 {
		return fmt.Errorf("%w: wrapped private key must carry a key-derivation salt", envelope.ErrMalformedCiphertext)
	}
	return nil
}
