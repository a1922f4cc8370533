package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/backend"
	"github.com/loginflow/signin/internal/middleware"
)

// RegisterSessionRoutes exposes the stored account behind a bearer token.
func RegisterSessionRoutes(r fiber.Router, users *backend.Service, accounts *account.Service) {
	current := func(c *fiber.Ctx) (account.Account, error) {
		token, _ := c.Locals(middleware.AuthTokenLocal).(string)
		user, err := users.UserForToken(c.UserContext(), token)
		if err != nil {
			return account.Account{}, fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		acct, err := accounts.AccountByUsername(c.UserContext(), user.Username)
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, fiber.NewError(http.StatusNotFound, "no stored account for this session")
		}
		if err != nil {
			return account.Account{}, fiber.NewError(http.StatusInternalServerError, "account lookup failed")
		}
		return acct, nil
	}

	r.Get("/", func(c *fiber.Ctx) error {
		acct, err := current(c)
		if err != nil {
			return err
		}
		isDefault, err := accounts.IsDefaultAccount(c.UserContext(), acct)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "account lookup failed")
		}
		links, err := accounts.SocialLinks(c.UserContext(), acct.ID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "account lookup failed")
		}
		social := make([]fiber.Map, 0, len(links))
		for _, l := range links {
			social = append(social, fiber.Map{"provider": l.Provider, "subject": l.Subject, "linked_at": l.LinkedAt})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"account_id":     acct.ID,
			"username":       acct.Username,
			"default":        isDefault,
			"last_synced_at": acct.LastSyncedAt,
			"social_links":   social,
		})
	})

	r.Delete("/", func(c *fiber.Ctx) error {
		acct, err := current(c)
		if err != nil {
			return err
		}
		if err := accounts.RemoveAccount(c.UserContext(), acct.ID); err != nil {
			return fiber.NewError(http.StatusInternalServerError, "sign out failed")
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "signed_out", "account_id": acct.ID})
	})
}
