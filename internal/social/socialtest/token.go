// Package socialtest mints provider identity tokens for tests.
package socialtest

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignIdentityToken stands in for the provider: it signs an HS256 ID token
// for subject that expires after ttl.
func SignIdentityToken(provider, secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strings.ToLower(provider),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
