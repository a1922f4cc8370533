// Package signin drives a sign-in attempt from submitted credentials to a
// single terminal outcome: multifactor challenge, success with a landing
// experience, silent dismiss, or a recoverable error.
package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/backend"
	"github.com/loginflow/signin/internal/logging"
)

// ErrSubmissionInProgress is returned by Submit under SubmitReject while an
// attempt is still running.
var ErrSubmissionInProgress = errors.New("sign-in already in progress")

// State is the position of a Flow in the sign-in state machine.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateMultifactorPending
	StateSyncing
	StateLinkingSocial
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateMultifactorPending:
		return "multifactor_pending"
	case StateSyncing:
		return "syncing"
	case StateLinkingSocial:
		return "linking_social"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

func (s State) inFlight() bool {
	return s == StateSubmitting || s == StateSyncing || s == StateLinkingSocial
}

// SubmitPolicy decides what Submit does while another attempt is running.
type SubmitPolicy int

const (
	// SubmitSupersede cancels the running attempt and ignores its late results.
	SubmitSupersede SubmitPolicy = iota
	// SubmitReject refuses the new attempt with ErrSubmissionInProgress.
	SubmitReject
)

// Authenticator is the authentication backend.
type Authenticator interface {
	Authenticate(ctx context.Context, creds backend.Credentials) (backend.Result, error)
}

// AccountStore persists the signed-in account and answers landing questions.
type AccountStore interface {
	AccountState
	SyncAccount(ctx context.Context, username, authToken string, secondary bool) (account.Account, error)
}

// Presenter receives the intents of the flow. Methods are called with the
// flow's lock held and must not call back into the Flow.
type Presenter interface {
	SetLoading(loading bool)
	ShowError(message string)
	Navigate(outcome Outcome)
}

// Option customises a Flow.
type Option func(*Flow)

// WithSubmitPolicy sets how concurrent submissions are handled.
func WithSubmitPolicy(policy SubmitPolicy) Option {
	return func(f *Flow) { f.policy = policy }
}

// WithSocialLinker enables social linking after a successful sync.
func WithSocialLinker(linker *SocialLinker) Option {
	return func(f *Flow) { f.linker = linker }
}

// Flow is the sign-in completion state machine for one sign-in screen. Only
// the latest submitted attempt may emit intents.
type Flow struct {
	auth      Authenticator
	accounts  AccountStore
	selector  *OutcomeSelector
	linker    *SocialLinker
	presenter Presenter
	events    analytics.Sink
	logger    *slog.Logger
	policy    SubmitPolicy

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	attempt    Attempt
	outcome    *Outcome
	done       chan struct{}

	wg sync.WaitGroup
}

// NewFlow builds an idle flow. Terminal events reach events with the flow's
// lock held, so production callers pass an analytics.Dispatcher.
func NewFlow(auth Authenticator, accounts AccountStore, presenter Presenter, events analytics.Sink, logger *slog.Logger, opts ...Option) *Flow {
	logger = logging.Component(logger, "signin")
	done := make(chan struct{})
	close(done)
	f := &Flow{
		auth:      auth,
		accounts:  accounts,
		selector:  NewOutcomeSelector(accounts, logger),
		presenter: presenter,
		events:    events,
		logger:    logger,
		state:     StateIdle,
		done:      done,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done returns a channel closed once the latest attempt has emitted its
// terminal intent or was cancelled.
func (f *Flow) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Outcome returns the terminal outcome of the latest attempt, if any.
func (f *Flow) Outcome() (Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome == nil {
		return Outcome{}, false
	}
	return *f.outcome, true
}

// Attempt returns the latest submitted attempt.
func (f *Flow) Attempt() Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt
}

// Submit starts attempt asynchronously and returns its id. Credentials are
// validated first; validation errors are returned and nothing is emitted.
func (f *Flow) Submit(ctx context.Context, attempt Attempt) (string, error) {
	if err := attempt.Credentials.Validate(); err != nil {
		return "", err
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.inFlight() {
		if f.policy == SubmitReject {
			return "", ErrSubmissionInProgress
		}
		f.logger.Info("superseding sign-in attempt",
			slog.String("attempt_id", f.attempt.ID),
			slog.String("superseded_by", attempt.ID),
		)
		f.cancel()
		close(f.done)
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.generation++
	gen := f.generation
	f.cancel = cancel
	f.attempt = attempt
	f.outcome = nil
	f.done = make(chan struct{})
	f.state = StateSubmitting
	f.presenter.SetLoading(true)

	f.wg.Add(1)
	go f.run(runCtx, gen, attempt)
	return attempt.ID, nil
}

// Dismiss returns a finished flow to Idle. It is a no-op while idle and
// reports false while an attempt is still running.
func (f *Flow) Dismiss() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateIdle:
		return true
	case StateTerminal, StateMultifactorPending:
		f.state = StateIdle
		return true
	default:
		return false
	}
}

// Cancel abandons the running attempt; its late results are ignored. It
// reports whether anything was cancelled.
func (f *Flow) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.inFlight() {
		return false
	}
	f.generation++
	f.cancel()
	f.state = StateIdle
	f.presenter.SetLoading(false)
	close(f.done)
	f.logger.Info("sign-in attempt cancelled", slog.String("attempt_id", f.attempt.ID))
	return true
}

// Wait blocks until every goroutine started by the flow, including
// fire-and-forget social links, has returned.
func (f *Flow) Wait() {
	f.wg.Wait()
}

func (f *Flow) run(ctx context.Context, gen uint64, attempt Attempt) {
	defer f.wg.Done()

	res, err := f.auth.Authenticate(ctx, attempt.Credentials)
	if err != nil {
		f.fail(ctx, gen, attempt, err)
		return
	}

	switch res.Kind {
	case backend.ResultMultifactorRequired:
		f.finish(ctx, gen, Outcome{Kind: OutcomeRequiresMultifactor}, analytics.New(analytics.EventMultifactorRequired, nil))
		return
	case backend.ResultSuccess:
	default:
		f.fail(ctx, gen, attempt, fmt.Errorf("unexpected backend result %s", res.Kind))
		return
	}

	if !f.advance(gen, StateSyncing) {
		return
	}

	acct, err := f.accounts.SyncAccount(ctx, res.Username, res.AuthToken, attempt.Secondary)
	if err != nil {
		// Credentials were accepted and the account exists; metadata resyncs later.
		f.logger.Error("account sync failed",
			slog.String("attempt_id", attempt.ID),
			slog.Any("error", err),
		)
		f.finish(ctx, gen, Outcome{Kind: OutcomeSilentDismiss})
		return
	}

	if !f.current(gen) {
		return
	}
	f.track(ctx, attempt.ID, analytics.New(analytics.EventSignedIn, map[string]any{
		"multifactor":    res.RequiredMultifactor,
		"dotcom_account": true,
	}))

	if f.linker.Eligible(attempt.SocialLink) {
		if !f.advance(gen, StateLinkingSocial) {
			return
		}
		linkCtx := context.WithoutCancel(ctx)
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.linker.TryLink(linkCtx, attempt.SocialLink, acct)
		}()
	}

	f.finish(ctx, gen, f.selector.Select(ctx, attempt))
}

func (f *Flow) fail(ctx context.Context, gen uint64, attempt Attempt, err error) {
	class := Classify(err)
	failed := analytics.New(analytics.EventSignInFailed, map[string]any{
		"kind": class.Kind.String(),
		"code": class.Code,
	})
	if !f.finish(ctx, gen, Outcome{Kind: OutcomeRecoverableError, Message: class.Message}, failed) {
		return
	}
	f.logger.Info("sign-in failed",
		slog.String("attempt_id", attempt.ID),
		slog.String("kind", class.Kind.String()),
		slog.Int("code", class.Code),
		slog.Any("error", err),
	)
}

func (f *Flow) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.generation && f.state.inFlight()
}

func (f *Flow) advance(gen uint64, next State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation || !f.state.inFlight() {
		return false
	}
	f.state = next
	return true
}

// finish emits the terminal intent for gen and tracks events before Done
// is closed. It reports false, emitting nothing, when gen was superseded or
// already finished.
func (f *Flow) finish(ctx context.Context, gen uint64, outcome Outcome, events ...analytics.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation || !f.state.inFlight() {
		return false
	}

	switch outcome.Kind {
	case OutcomeRecoverableError:
		f.state = StateTerminal
		f.presenter.SetLoading(false)
		f.presenter.ShowError(outcome.Message)
	case OutcomeRequiresMultifactor:
		f.state = StateMultifactorPending
		f.presenter.SetLoading(false)
		f.presenter.Navigate(outcome)
	default:
		f.state = StateTerminal
		f.presenter.Navigate(outcome)
	}

	for _, event := range events {
		f.track(ctx, f.attempt.ID, event)
	}
	f.outcome = &outcome
	f.cancel()
	close(f.done)
	f.logger.Info("sign-in attempt finished",
		slog.String("attempt_id", f.attempt.ID),
		slog.String("outcome", outcome.Kind.String()),
		slog.String("landing", outcome.Landing.String()),
	)
	return true
}

func (f *Flow) track(ctx context.Context, attemptID string, event analytics.Event) {
	if f.events == nil {
		return
	}
	event.Properties = withAttempt(event.Properties, attemptID)
	if err := f.events.Track(context.WithoutCancel(ctx), event); err != nil {
		f.logger.Warn("analytics track failed", slog.String("event", event.Name), slog.Any("error", err))
	}
}

func withAttempt(props map[string]any, attemptID string) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out["attempt_id"] = attemptID
	return out
}
