// ABOUTME: Authentication token resolution with fixed precedence rules.
// ABOUTME: Includes an unverified JWT expiry probe for pre-connect diagnostics.

package identity

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenEnvVar is consulted when neither an explicit override nor an
// identity-embedded token is available.
const TokenEnvVar = "FOLD_TOKEN"

// ResolveToken applies the fixed credential precedence: explicit
// override, then the identity-embedded device token, then the
// environment. It never fails; an empty result means anonymous connect.
func ResolveToken(override string, id *DeviceIdentity) string {
	if override != "" {
		return override
	}
	if id != nil && id.DeviceToken != "" {
		return id.DeviceToken
	}
	return os.Getenv(TokenEnvVar)
}

// TokenExpiry parses token as a JWT without verifying its signature and
// returns the expiry claim. Verification belongs to the gateway; this
// exists only so callers can warn about an expired token before
// dialing. Returns false for non-JWT tokens or tokens without an expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
