package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/loginflow/signin/internal/notification"
)

const minPasswordLength = 8

// Service is the authentication backend: it checks passwords, runs the
// multifactor challenge and issues auth tokens.
type Service struct {
	dir      Directory
	codes    CodeStore
	notifier notification.Notifier
	tokens   *TokenIssuer
	codeTTL  time.Duration
	logger   *slog.Logger
}

// NewService creates a new authentication backend.
func NewService(dir Directory, codes CodeStore, notifier notification.Notifier, tokens *TokenIssuer, codeTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{dir: dir, codes: codes, notifier: notifier, tokens: tokens, codeTTL: codeTTL, logger: logger}
}

// Register creates a directory user with a hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	if len(reg.Password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}
	username := normalizeUsername(reg.Username)
	if username == "" {
		return User{}, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	workspaces := make([]Workspace, 0, len(reg.Workspaces))
	for _, ws := range reg.Workspaces {
		if ws.ID == "" {
			ws.ID = uuid.NewString()
		}
		workspaces = append(workspaces, ws)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        reg.Email,
		PasswordHash: hash,
		Multifactor:  reg.Multifactor,
		Workspaces:   workspaces,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.dir.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies credentials. It returns ResultMultifactorRequired after
// sending a fresh code when the user has multifactor enabled and no code was
// supplied. Failures are always *Error.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	user, err := s.dir.FindByUsername(ctx, normalizeUsername(creds.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Result{}, forbidden()
		}
		return Result{}, unavailable(err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return Result{}, forbidden()
	}

	if user.Multifactor {
		if creds.MultifactorCode == "" {
			if err := s.sendCode(ctx, user); err != nil {
				return Result{}, unavailable(err)
			}
			return Result{Kind: ResultMultifactorRequired, Username: user.Username}, nil
		}
		ok, err := s.codes.Consume(ctx, user.ID, creds.MultifactorCode)
		if err != nil {
			return Result{}, unavailable(err)
		}
		if !ok {
			return Result{}, invalidCode()
		}
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return Result{}, unavailable(err)
	}

	return Result{
		Kind:                ResultSuccess,
		Username:            user.Username,
		AuthToken:           token,
		RequiredMultifactor: user.Multifactor,
	}, nil
}

// Workspaces lists the workspaces of the user the token was issued to.
func (s *Service) Workspaces(ctx context.Context, authToken string) ([]Workspace, error) {
	user, err := s.UserForToken(ctx, authToken)
	if err != nil {
		return nil, err
	}
	return user.Workspaces, nil
}

// UserForToken resolves the user an auth token was issued to.
func (s *Service) UserForToken(ctx context.Context, authToken string) (User, error) {
	userID, err := s.tokens.Verify(authToken)
	if err != nil {
		return User{}, err
	}
	return s.dir.FindByID(ctx, userID)
}

func (s *Service) sendCode(ctx context.Context, user User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.codes.Save(ctx, user.ID, code, s.codeTTL); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	destination := user.Email
	if destination == "" {
		destination = user.Username
	}
	if err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindMultifactorCode,
		Destination: destination,
		Body:        code,
	}); err != nil {
		return fmt.Errorf("deliver code: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("multifactor code sent", slog.String("user_id", user.ID))
	}
	return nil
}
