package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// UserIDLocal holds the user id of a verified bearer token.
	UserIDLocal = "user_id"
	// AuthTokenLocal holds the raw verified bearer token.
	AuthTokenLocal = "auth_token"
)

// TokenVerifier validates an auth token and returns the user id it was issued to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// BearerAuth rejects requests without a valid auth token in the Authorization header.
func BearerAuth(tokens TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		userID, err := tokens.Verify(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(UserIDLocal, userID)
		c.Locals(AuthTokenLocal, tokenStr)
		return c.Next()
	}
}
