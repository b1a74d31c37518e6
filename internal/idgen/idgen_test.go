package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, id, NewID())
}

func TestNewOrganizerToken(t *testing.T) {
	token := NewOrganizerToken()
	assert.Len(t, token, 43) // 32 bytes, unpadded base64url
	assert.NotContains(t, token, "=")
	assert.NotEqual(t, token, NewOrganizerToken())
}

func TestNewInviteCode(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := NewInviteCode()
		require.Len(t, code, InviteCodeLength)
		require.True(t, ValidInviteCode(code), "code %q uses symbols outside the alphabet", code)
		for _, confusable := range "0O1I" {
			require.False(t, strings.ContainsRune(code, confusable), "code %q contains %q", code, confusable)
		}
	}
}

func TestNewInviteCodeUsesWholeAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 2000; i++ {
		for _, r := range NewInviteCode() {
			seen[r] = true
		}
	}
	assert.Len(t, seen, len(InviteAlphabet))
}

func TestNormalizeInviteCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc234", "ABC234"},
		{"  XyZ789\n", "XYZ789"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeInviteCode(tt.in))
		})
	}
}

func TestValidInviteCode(t *testing.T) {
	assert.True(t, ValidInviteCode("ABC234"))
	assert.False(t, ValidInviteCode("ABC23"))
	assert.False(t, ValidInviteCode("ABC2340"))
	assert.False(t, ValidInviteCode("ABC230"))
	assert.False(t, ValidInviteCode("abc234"))
}
