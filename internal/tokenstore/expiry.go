package tokenstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minTTL keeps an already-expired token around just long enough for the
// backend to reject it with a 401.
const minTTL = time.Second

// TokenTTL derives the storage lifetime from the token's exp claim. Opaque
// tokens and tokens without exp get fallback. The signature is not checked
// here; the backend owns verification.
func TokenTTL(token string, fallback time.Duration, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	ttl := exp.Time.Sub(now)
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}
