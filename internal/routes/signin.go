package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/attempts"
	"github.com/loginflow/signin/internal/backend"
	"github.com/loginflow/signin/internal/logging"
	"github.com/loginflow/signin/internal/middleware"
	"github.com/loginflow/signin/internal/signin"
)

// RegisterSignInRoutes wires the sign-in submission and attempt lookup.
// idempotency and rateLimiter may be nil.
func RegisterSignInRoutes(r fiber.Router, h *SignInHandler, idempotency, rateLimiter fiber.Handler) {
	group := r.Group("/signin")
	handlers := make([]fiber.Handler, 0, 3)
	if idempotency != nil {
		handlers = append(handlers, idempotency)
	}
	if rateLimiter != nil {
		handlers = append(handlers, rateLimiter)
	}
	handlers = append(handlers, h.Submit)
	group.Post("/", handlers...)
	group.Get("/attempts/:id", h.Attempt)
}

// SignInHandler runs one sign-in Flow per request and reports its terminal
// outcome over HTTP.
type SignInHandler struct {
	auth     signin.Authenticator
	accounts signin.AccountStore
	linker   *signin.SocialLinker
	store    attempts.Store
	events   analytics.Sink
	timeout  time.Duration
	flows    *sync.WaitGroup
	logger   *slog.Logger
}

// NewSignInHandler builds the handler.
func NewSignInHandler(auth signin.Authenticator, accounts signin.AccountStore, linker *signin.SocialLinker, store attempts.Store, events analytics.Sink, timeout time.Duration, flows *sync.WaitGroup, logger *slog.Logger) *SignInHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SignInHandler{
		auth:     auth,
		accounts: accounts,
		linker:   linker,
		store:    store,
		events:   events,
		timeout:  timeout,
		flows:    flows,
		logger:   logging.Component(logger, "signin_http"),
	}
}

type signinRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	MultifactorCode string `json:"multifactor_code"`
	Secondary       bool   `json:"secondary"`
	WorkspaceID     string `json:"workspace_id"`
	MagicLinkOrigin string `json:"magic_link_origin"`
	Social          *struct {
		Provider string `json:"provider"`
		Token    string `json:"token"`
	} `json:"social"`
}

type signinResponse struct {
	AttemptID string `json:"attempt_id"`
	Outcome   string `json:"outcome"`
	Landing   string `json:"landing,omitempty"`
	Message   string `json:"message,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

// tokenCapture remembers the auth token of a successful Authenticate so the
// HTTP client can be handed its session.
type tokenCapture struct {
	signin.Authenticator
	mu    sync.Mutex
	token string
}

func (t *tokenCapture) Authenticate(ctx context.Context, creds backend.Credentials) (backend.Result, error) {
	res, err := t.Authenticator.Authenticate(ctx, creds)
	if err == nil && res.Kind == backend.ResultSuccess {
		t.mu.Lock()
		t.token = res.AuthToken
		t.mu.Unlock()
	}
	return res, err
}

func (t *tokenCapture) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Submit runs a sign-in attempt to its terminal intent.
func (h *SignInHandler) Submit(c *fiber.Ctx) error {
	var req signinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	origin, err := signin.ParseMagicLinkOrigin(req.MagicLinkOrigin)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	attempt := signin.Attempt{
		Credentials: backend.Credentials{
			Username:        req.Username,
			Password:        req.Password,
			MultifactorCode: req.MultifactorCode,
		},
		Secondary:       req.Secondary,
		WorkspaceID:     req.WorkspaceID,
		MagicLinkOrigin: origin,
	}
	if req.Social != nil {
		attempt.SocialLink = &signin.SocialLinkRequest{Provider: req.Social.Provider, Token: req.Social.Token}
	}

	auth := &tokenCapture{Authenticator: h.auth}
	presenter := &signin.IntentLog{}
	flow := signin.NewFlow(auth, h.accounts, presenter, h.events, h.logger, signin.WithSocialLinker(h.linker))

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	created := time.Now().UTC()
	attemptID, err := flow.Submit(ctx, attempt)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	c.Locals(middleware.AttemptIDLocal, attemptID)

	h.flows.Add(1)
	go func() {
		defer h.flows.Done()
		flow.Wait()
	}()

	select {
	case <-flow.Done():
	case <-ctx.Done():
		if flow.Cancel() {
			return h.timedOut(c, attemptID)
		}
	}

	outcome, ok := flow.Outcome()
	if !ok {
		return h.timedOut(c, attemptID)
	}
	// A backend call cut short by our own deadline finishes as a recoverable
	// error before the select observes ctx.Done.
	if outcome.Kind == signin.OutcomeRecoverableError && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return h.timedOut(c, attemptID)
	}

	resp := signinResponse{AttemptID: attemptID, Outcome: outcome.Kind.String()}
	status := http.StatusOK
	switch outcome.Kind {
	case signin.OutcomeSuccess:
		resp.Landing = outcome.Landing.String()
		resp.AuthToken = auth.Token()
	case signin.OutcomeRequiresMultifactor:
		status = http.StatusAccepted
	case signin.OutcomeRecoverableError:
		status = http.StatusUnauthorized
		resp.Message = outcome.Message
	}

	h.record(c, attempts.Record{
		ID:         attemptID,
		RequestID:  middleware.RequestIDFromCtx(c),
		Username:   attempt.Credentials.Username,
		Outcome:    resp.Outcome,
		Landing:    resp.Landing,
		Message:    resp.Message,
		CreatedAt:  created,
		FinishedAt: time.Now().UTC(),
	})

	return c.Status(status).JSON(resp)
}

func (h *SignInHandler) timedOut(c *fiber.Ctx, attemptID string) error {
	h.logger.Warn("sign-in attempt timed out",
		slog.String("attempt_id", attemptID),
		slog.String("request_id", middleware.RequestIDFromCtx(c)),
	)
	return fiber.NewError(http.StatusGatewayTimeout, "sign-in timed out")
}

func (h *SignInHandler) record(c *fiber.Ctx, rec attempts.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), 2*time.Second)
	defer cancel()
	if err := h.store.Save(ctx, rec); err != nil {
		h.logger.Error("persist attempt failed", slog.String("attempt_id", rec.ID), slog.Any("error", err))
	}
}

// Attempt returns the stored outcome of a finished attempt.
func (h *SignInHandler) Attempt(c *fiber.Ctx) error {
	rec, err := h.store.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, attempts.ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "attempt lookup failed")
	}
	return c.Status(http.StatusOK).JSON(rec)
}
