// ABOUTME: Tests for token precedence resolution and the JWT expiry probe.
// ABOUTME: Signs throwaway HS256 tokens to exercise expiry parsing.

package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken_Precedence(t *testing.T) {
	t.Setenv(TokenEnvVar, "env-token")
	id := &DeviceIdentity{DeviceID: "dev-1", DeviceToken: "identity-token"}

	assert.Equal(t, "override-token", ResolveToken("override-token", id))
	assert.Equal(t, "identity-token", ResolveToken("", id))
	assert.Equal(t, "env-token", ResolveToken("", &DeviceIdentity{DeviceID: "dev-1"}))
	assert.Equal(t, "env-token", ResolveToken("", nil))
}

func TestResolveToken_AllEmpty(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	assert.Empty(t, ResolveToken("", nil))
}

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestTokenExpiry_ReadsExpiryClaim(t *testing.T) {
	want := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, want))
	require.True(t, ok)
	assert.True(t, got.Equal(want))
}

func TestTokenExpiry_ExpiredTokenStillParses(t *testing.T) {
	// Diagnostics need the expiry of already-expired tokens too, so
	// parsing must not enforce validity.
	past := time.Now().Add(-time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, past))
	require.True(t, ok)
	assert.True(t, got.Before(time.Now()))
}

func TestTokenExpiry_NonJWT(t *testing.T) {
	_, ok := TokenExpiry("not-a-jwt")
	assert.False(t, ok)

	_, ok = TokenExpiry("")
	assert.False(t, ok)
}

func TestTokenExpiry_NoExpiryClaim(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "dev-1"})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, ok := TokenExpiry(s)
	assert.False(t, ok)
}
