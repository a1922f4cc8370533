// Package social verifies social identity tokens and links them to accounts.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnsupportedProvider is returned for providers other than the configured one.
	ErrUnsupportedProvider = errors.New("unsupported social provider")
	// ErrInvalidIdentityToken is returned when the provider token does not verify.
	ErrInvalidIdentityToken = errors.New("invalid identity token")
)

// Linker stores a verified social identity for an account.
type Linker interface {
	LinkSocial(ctx context.Context, accountID, provider, subject string) error
}

// Client links provider identities to accounts after verifying the provider's ID token.
type Client struct {
	provider string
	secret   []byte
	linker   Linker
	now      func() time.Time
}

// NewClient builds a client for a single provider. Tokens are HS256 JWTs
// issued by the provider and signed with secret.
func NewClient(provider, secret string, linker Linker) *Client {
	return &Client{provider: strings.ToLower(provider), secret: []byte(secret), linker: linker, now: time.Now}
}

// Provider returns the provider this client serves.
func (c *Client) Provider() string { return c.provider }

// LinkIdentity verifies token and records the identity against accountID.
func (c *Client) LinkIdentity(ctx context.Context, provider, token, accountID string) error {
	if !strings.EqualFold(provider, c.provider) {
		return fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.provider),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return errors.Join(ErrInvalidIdentityToken, err)
	}
	if err := c.linker.LinkSocial(ctx, accountID, c.provider, claims.Subject); err != nil {
		return fmt.Errorf("store social link: %w", err)
	}
	return nil
}
