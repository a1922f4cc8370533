package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/attempts"
	"github.com/loginflow/signin/internal/backend"
	"github.com/loginflow/signin/internal/config"
	"github.com/loginflow/signin/internal/logging"
	"github.com/loginflow/signin/internal/middleware"
	"github.com/loginflow/signin/internal/notification"
	"github.com/loginflow/signin/internal/signin"
	"github.com/loginflow/signin/internal/social"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Events receives analytics; a logger sink is used when nil.
	Events analytics.Sink
	// Flows tracks background work of finished sign-in attempts, such as
	// pending social links, so shutdown can wait for it.
	Flows *sync.WaitGroup
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Events == nil {
		d.Events = analytics.NewLoggerSink(d.Logger)
	}
	if d.Flows == nil {
		d.Flows = &sync.WaitGroup{}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))

	// Health
	RegisterHealthRoutes(app, d)

	// Services
	var directory backend.Directory
	var accountRepo account.Repository
	if d.DB != nil {
		directory = backend.NewPostgresDirectory(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
	} else {
		directory = backend.NewMemoryDirectory()
		accountRepo = account.NewMemoryRepository()
	}

	var codes backend.CodeStore
	var attemptStore attempts.Store
	if d.Cache != nil {
		codes = backend.NewRedisCodeStore(d.Cache)
		attemptStore = attempts.NewRedisStore(d.Cache, d.Cfg.AttemptTTL)
	} else {
		codes = backend.NewMemoryCodeStore()
		attemptStore = attempts.NewMemoryStore(d.Cfg.AttemptTTL)
	}

	tokens := backend.NewTokenIssuer(d.Cfg.AuthTokenSecret, d.Cfg.AuthTokenTTL)
	notifier := notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))
	backendSvc := backend.NewService(directory, codes, notifier, tokens, d.Cfg.MultifactorCodeTTL, logging.Component(d.Logger, "backend"))
	accountSvc := account.NewService(accountRepo, backendSvc, logging.Component(d.Logger, "account"))
	socialClient := social.NewClient(d.Cfg.SocialProvider, d.Cfg.SocialTokenSecret, accountSvc)
	linker := signin.NewSocialLinker(socialClient, d.Cfg.SocialProvider, d.Events, logging.Component(d.Logger, "social"))

	signinHandler := NewSignInHandler(backendSvc, accountSvc, linker, attemptStore, d.Events, d.Cfg.SignInTimeout, d.Flows, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFromCtx(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger, false, []byte(d.Cfg.AuthTokenSecret))
	}
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute)
	RegisterSignInRoutes(api, signinHandler, idempotency, rateLimiter)
	if d.Cfg.IsDev() {
		RegisterDirectoryRoutes(api, backendSvc, d.Logger)
	}

	// Protected routes
	protected := api.Group("/session", middleware.BearerAuth(tokens))
	RegisterSessionRoutes(protected, backendSvc, accountSvc)

	return nil
}
