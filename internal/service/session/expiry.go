package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var unverified = jwt.NewParser(jwt.WithoutClaimsValidation())

// AccessExpiry reads the exp claim of a JWT access credential without
// checking its signature; the backend stays the authority on validity.
// ok is false for opaque credentials or tokens without an expiry.
func AccessExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := unverified.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
