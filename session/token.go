package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessExpiry reads the exp claim of a JWT access token without verifying
// the signature; only the server can vouch for the token. Opaque tokens
// yield the zero time, meaning "unknown, ask the server".
func accessExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
