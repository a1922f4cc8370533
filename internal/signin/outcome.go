package signin

import (
	"context"
	"log/slog"

	"github.com/loginflow/signin/internal/account"
)

// OutcomeKind tags the terminal result of an attempt.
type OutcomeKind int

const (
	OutcomeRequiresMultifactor OutcomeKind = iota + 1
	OutcomeSuccess
	OutcomeRecoverableError
	OutcomeSilentDismiss
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRequiresMultifactor:
		return "requires_multifactor"
	case OutcomeSuccess:
		return "success"
	case OutcomeRecoverableError:
		return "recoverable_error"
	case OutcomeSilentDismiss:
		return "silent_dismiss"
	default:
		return "unknown"
	}
}

// Landing is the experience shown after a successful sign-in.
type Landing int

const (
	LandingDefault Landing = iota
	LandingEpilogueSignup
	LandingEpilogueLogin
)

func (l Landing) String() string {
	switch l {
	case LandingEpilogueSignup:
		return "epilogue_signup"
	case LandingEpilogueLogin:
		return "epilogue_login"
	default:
		return "default"
	}
}

// Outcome is the single terminal result of an Attempt. Landing is only
// meaningful for OutcomeSuccess and Message only for OutcomeRecoverableError.
type Outcome struct {
	Kind    OutcomeKind
	Landing Landing
	Message string
}

// AccountState is the read side of the account store used to pick a landing.
type AccountState interface {
	ResolveWorkspace(ctx context.Context, workspaceID string) (account.Account, error)
	IsDefaultAccount(ctx context.Context, acct account.Account) (bool, error)
}

// OutcomeSelector decides what to show after a successful sign-in.
type OutcomeSelector struct {
	state  AccountState
	logger *slog.Logger
}

// NewOutcomeSelector builds a selector reading from state.
func NewOutcomeSelector(state AccountState, logger *slog.Logger) *OutcomeSelector {
	return &OutcomeSelector{state: state, logger: logger}
}

// Select returns a Success outcome or SilentDismiss.
//
// Primary logins always get a landing. Secondary logins only get the epilogue
// when they produced the default account; otherwise the screen is dismissed
// without a welcome.
func (s *OutcomeSelector) Select(ctx context.Context, attempt Attempt) Outcome {
	if !attempt.Secondary {
		if attempt.MagicLinkOrigin == MagicLinkSignup {
			return Outcome{Kind: OutcomeSuccess, Landing: LandingEpilogueSignup}
		}
		return Outcome{Kind: OutcomeSuccess, Landing: LandingDefault}
	}

	acct, err := s.state.ResolveWorkspace(ctx, attempt.WorkspaceID)
	if err != nil {
		s.debug("workspace unresolved", slog.String("workspace_id", attempt.WorkspaceID), slog.Any("error", err))
		return Outcome{Kind: OutcomeSilentDismiss}
	}

	isDefault, err := s.state.IsDefaultAccount(ctx, acct)
	if err != nil {
		s.debug("default account lookup failed", slog.String("account_id", acct.ID), slog.Any("error", err))
		return Outcome{Kind: OutcomeSilentDismiss}
	}
	if !isDefault {
		return Outcome{Kind: OutcomeSilentDismiss}
	}

	if attempt.MagicLinkOrigin == MagicLinkSignup {
		return Outcome{Kind: OutcomeSuccess, Landing: LandingEpilogueSignup}
	}
	return Outcome{Kind: OutcomeSuccess, Landing: LandingEpilogueLogin}
}

func (s *OutcomeSelector) debug(msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, attrs...)
	}
}
