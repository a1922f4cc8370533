package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loginflow/signin/internal/backend"
)

// RegisterDirectoryRoutes exposes user registration against the authentication
// backend. It is only mounted in development environments.
func RegisterDirectoryRoutes(r fiber.Router, svc *backend.Service, logger *slog.Logger) {
	r.Post("/directory/users", func(c *fiber.Ctx) error {
		var req struct {
			Username    string `json:"username"`
			Email       string `json:"email"`
			Password    string `json:"password"`
			Multifactor bool   `json:"multifactor"`
			Workspaces  []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"workspaces"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		reg := backend.Registration{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			Multifactor: req.Multifactor,
		}
		for _, ws := range req.Workspaces {
			reg.Workspaces = append(reg.Workspaces, backend.Workspace{ID: ws.ID, Name: ws.Name, URL: ws.URL})
		}

		user, err := svc.Register(c.UserContext(), reg)
		switch {
		case errors.Is(err, backend.ErrUserExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, backend.ErrWeakPassword), errors.Is(err, backend.ErrMissingCredentials):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case err != nil:
			return fiber.NewError(http.StatusInternalServerError, "registration failed")
		}

		if logger != nil {
			logger.Info("directory.register completed",
				slog.String("user_id", user.ID),
				slog.String("username", user.Username),
				slog.Bool("multifactor", user.Multifactor),
				slog.Int("status", http.StatusCreated),
			)
		}
		workspaces := make([]fiber.Map, 0, len(user.Workspaces))
		for _, ws := range user.Workspaces {
			workspaces = append(workspaces, fiber.Map{"id": ws.ID, "name": ws.Name, "url": ws.URL})
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":     user.ID,
			"username":    user.Username,
			"multifactor": user.Multifactor,
			"workspaces":  workspaces,
		})
	})
}
