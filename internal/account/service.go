package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loginflow/signin/internal/backend"
)

// WorkspaceSource fetches the workspace metadata of an authenticated user.
type WorkspaceSource interface {
	Workspaces(ctx context.Context, authToken string) ([]backend.Workspace, error)
}

// Option customises a Service.
type Option func(*Service)

// WithRetryPolicy sets the backoff used when fetching workspace metadata.
func WithRetryPolicy(policy func() backoff.BackOff) Option {
	return func(s *Service) { s.retryPolicy = policy }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service manages the local account/session store.
type Service struct {
	repo        Repository
	source      WorkspaceSource
	logger      *slog.Logger
	retryPolicy func() backoff.BackOff
	now         func() time.Time
}

// NewService creates a new account service.
func NewService(repo Repository, source WorkspaceSource, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		source:      source,
		logger:      logger,
		retryPolicy: defaultRetryPolicy,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// SyncAccount stores the freshly authenticated account and refreshes its
// workspaces. Primary logins always become the default account; secondary
// logins only when no default exists yet. The account record is written
// before workspace metadata is fetched, so it exists even when the returned
// error wraps ErrSyncFailed.
func (s *Service) SyncAccount(ctx context.Context, username, authToken string, secondary bool) (Account, error) {
	now := s.now().UTC()
	acct, err := s.repo.UpsertAccount(ctx, Account{
		Username:     username,
		AuthToken:    authToken,
		CreatedAt:    now,
		LastSyncedAt: now,
	})
	if err != nil {
		return Account{}, fmt.Errorf("%w: store account: %v", ErrSyncFailed, err)
	}

	makeDefault := !secondary
	if secondary {
		if _, err := s.repo.DefaultAccountID(ctx); errors.Is(err, ErrNoDefault) {
			makeDefault = true
		} else if err != nil {
			return acct, fmt.Errorf("%w: default account: %v", ErrSyncFailed, err)
		}
	}
	if makeDefault {
		if err := s.repo.SetDefault(ctx, acct.ID); err != nil {
			return acct, fmt.Errorf("%w: set default: %v", ErrSyncFailed, err)
		}
	}

	var fetched []backend.Workspace
	op := func() error {
		ws, err := s.source.Workspaces(ctx, authToken)
		if errors.Is(err, backend.ErrInvalidToken) || errors.Is(err, backend.ErrUserNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		fetched = ws
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(s.retryPolicy(), ctx)); err != nil {
		return acct, fmt.Errorf("%w: fetch workspaces: %v", ErrSyncFailed, err)
	}

	workspaces := make([]Workspace, 0, len(fetched))
	for _, ws := range fetched {
		workspaces = append(workspaces, Workspace{ID: ws.ID, AccountID: acct.ID, Name: ws.Name, URL: ws.URL})
	}
	if err := s.repo.ReplaceWorkspaces(ctx, acct.ID, workspaces); err != nil {
		return acct, fmt.Errorf("%w: store workspaces: %v", ErrSyncFailed, err)
	}

	if s.logger != nil {
		s.logger.Info("account synced",
			slog.String("account_id", acct.ID),
			slog.Bool("secondary", secondary),
			slog.Bool("default", makeDefault),
			slog.Int("workspaces", len(workspaces)),
		)
	}
	return acct, nil
}

// ResolveWorkspace returns the account a workspace belongs to. Missing
// workspaces and workspaces without a linked account both yield ErrNotFound.
func (s *Service) ResolveWorkspace(ctx context.Context, workspaceID string) (Account, error) {
	ws, err := s.repo.FindWorkspace(ctx, workspaceID)
	if err != nil {
		return Account{}, err
	}
	if ws.AccountID == "" {
		return Account{}, ErrNotFound
	}
	return s.repo.FindByID(ctx, ws.AccountID)
}

// IsDefaultAccount reports whether acct is the designated default account.
func (s *Service) IsDefaultAccount(ctx context.Context, acct Account) (bool, error) {
	id, err := s.repo.DefaultAccountID(ctx)
	if errors.Is(err, ErrNoDefault) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return id == acct.ID, nil
}

// AccountByUsername returns the stored account of a backend user.
func (s *Service) AccountByUsername(ctx context.Context, username string) (Account, error) {
	return s.repo.FindByUsername(ctx, username)
}

// DefaultAccount returns the default account.
func (s *Service) DefaultAccount(ctx context.Context) (Account, error) {
	id, err := s.repo.DefaultAccountID(ctx)
	if err != nil {
		return Account{}, err
	}
	return s.repo.FindByID(ctx, id)
}

// RemoveAccount signs an account out of the store.
func (s *Service) RemoveAccount(ctx context.Context, id string) error {
	return s.repo.RemoveAccount(ctx, id)
}

// LinkSocial records a social identity for the account.
func (s *Service) LinkSocial(ctx context.Context, accountID, provider, subject string) error {
	return s.repo.SaveSocialLink(ctx, SocialLink{
		AccountID: accountID,
		Provider:  provider,
		Subject:   subject,
		LinkedAt:  s.now().UTC(),
	})
}

// SocialLinks lists the social identities linked to the account.
func (s *Service) SocialLinks(ctx context.Context, accountID string) ([]SocialLink, error) {
	return s.repo.SocialLinks(ctx, accountID)
}
