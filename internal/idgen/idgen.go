// Package idgen generates event and participant identifiers, organizer
// tokens and human-typeable invite codes.
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// InviteAlphabet is the symbol set for invite codes. It leaves out 0, O, 1
// and I. Its length is 32, so masking a random byte with 31 is unbiased.
const InviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the number of symbols in an invite code.
const InviteCodeLength = 6

// organizerTokenBytes is the entropy of an organizer token.
const organizerTokenBytes = 32

// NewID returns a random UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}

// NewOrganizerToken returns a 256-bit secret encoded as unpadded base64url.
// It shares no bits with any id or invite code.
func NewOrganizerToken() string {
	b := make([]byte, organizerTokenBytes)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// NewInviteCode returns a random invite code. Uniqueness is not guaranteed;
// the caller checks it against registered codes.
func NewInviteCode() string {
	var raw [InviteCodeLength]byte
	_, _ = rand.Read(raw[:])

	code := make([]byte, InviteCodeLength)
	for i, b := range raw {
		code[i] = InviteAlphabet[b&(byte(len(InviteAlphabet))-1)]
	}
	return string(code)
}

// NormalizeInviteCode trims whitespace and upper-cases user-entered codes.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code has the right length and only uses
// symbols from InviteAlphabet.
func ValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(InviteAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
