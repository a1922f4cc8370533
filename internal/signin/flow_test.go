package signin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/backend"
)

func TestFlowPrimarySuccess(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("alice", success("alice", false), nil)

	id := h.submit(t, Attempt{Credentials: creds("alice")})
	h.awaitDone(t)

	intents := h.presenter.Intents()
	require.NotEmpty(t, intents)
	assert.Equal(t, Intent{Kind: IntentSetLoading, Loading: true}, intents[0])

	terminal := h.presenter.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, Outcome{Kind: OutcomeSuccess, Landing: LandingDefault}, terminal[0].Outcome)
	assert.Equal(t, StateTerminal, h.flow.State())

	signedIn := h.events.Named(analytics.EventSignedIn)
	require.Len(t, signedIn, 1)
	assert.Equal(t, false, signedIn[0].Properties["multifactor"])
	assert.Equal(t, true, signedIn[0].Properties["dotcom_account"])
	assert.Equal(t, id, signedIn[0].Properties["attempt_id"])

	assert.True(t, h.flow.Dismiss())
	assert.Equal(t, StateIdle, h.flow.State())
}

func TestFlowMultifactorSignedInEvent(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("alice", success("alice", true), nil)

	h.submit(t, Attempt{Credentials: creds("alice"), MagicLinkOrigin: MagicLinkSignup})
	h.awaitDone(t)

	outcome, ok := h.flow.Outcome()
	require.True(t, ok)
	assert.Equal(t, Outcome{Kind: OutcomeSuccess, Landing: LandingEpilogueSignup}, outcome)
	signedIn := h.events.Named(analytics.EventSignedIn)
	require.Len(t, signedIn, 1)
	assert.Equal(t, true, signedIn[0].Properties["multifactor"])
}

func TestFlowMultifactorRequired(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("carol", backend.Result{Kind: backend.ResultMultifactorRequired, Username: "carol"}, nil)

	h.submit(t, Attempt{Credentials: creds("carol")})
	h.awaitDone(t)

	intents := h.presenter.Intents()
	require.Len(t, intents, 3)
	assert.Equal(t, Intent{Kind: IntentSetLoading, Loading: false}, intents[1])
	assert.Equal(t, Intent{Kind: IntentNavigate, Outcome: Outcome{Kind: OutcomeRequiresMultifactor}}, intents[2])
	assert.Equal(t, StateMultifactorPending, h.flow.State())
	assert.Empty(t, h.accounts.synced)
	assert.Len(t, h.events.Named(analytics.EventMultifactorRequired), 1)

	// The second factor is a fresh attempt.
	h.auth.reply("carol", success("carol", true), nil)
	c := creds("carol")
	c.MultifactorCode = "123456"
	h.submit(t, Attempt{Credentials: c})
	h.awaitDone(t)
	outcome, _ := h.flow.Outcome()
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestFlowForbiddenShowsFixedMessage(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("mallory", backend.Result{}, &backend.Error{Code: 403, Message: "password hash mismatch for row 42"})

	h.submit(t, Attempt{Credentials: creds("mallory")})
	h.awaitDone(t)

	intents := h.presenter.Intents()
	require.Len(t, intents, 3)
	assert.Equal(t, Intent{Kind: IntentSetLoading, Loading: false}, intents[1])
	assert.Equal(t, Intent{Kind: IntentShowError, Message: ForbiddenMessage}, intents[2])
	assert.Equal(t, StateTerminal, h.flow.State())

	failed := h.events.Named(analytics.EventSignInFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "forbidden", failed[0].Properties["kind"])

	// Submission is re-enabled after a recoverable error.
	h.auth.reply("mallory", success("mallory", false), nil)
	h.submit(t, Attempt{Credentials: creds("mallory")})
	h.awaitDone(t)
	outcome, _ := h.flow.Outcome()
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestFlowOtherFailureShowsBackendMessage(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("carol", backend.Result{}, &backend.Error{Code: 401, Message: "The verification code is invalid or has expired."})

	h.submit(t, Attempt{Credentials: creds("carol")})
	h.awaitDone(t)

	terminal := h.presenter.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "The verification code is invalid or has expired.", terminal[0].Message)
	outcome, _ := h.flow.Outcome()
	assert.Equal(t, OutcomeRecoverableError, outcome.Kind)
}

func TestFlowSyncFailureDismissesSilently(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("alice", success("alice", false), nil)
	h.accounts.syncErr = account.ErrSyncFailed

	h.submit(t, Attempt{Credentials: creds("alice"), SocialLink: &SocialLinkRequest{Provider: "google", Token: "tok"}})
	h.awaitDone(t)

	terminal := h.presenter.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, IntentNavigate, terminal[0].Kind)
	assert.Equal(t, OutcomeSilentDismiss, terminal[0].Outcome.Kind)
	assert.Empty(t, h.events.Named(analytics.EventSignedIn))
	assert.Zero(t, h.social.callCount())
}

func TestFlowSocialLinkDoesNotBlockOrChangeOutcome(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("alice", success("alice", false), nil)
	h.social.err = errors.New("provider unavailable")
	h.social.gate = make(chan struct{})

	h.submit(t, Attempt{Credentials: creds("alice"), SocialLink: &SocialLinkRequest{Provider: "google", Token: "tok"}})
	// The outcome is emitted while the link is still blocked.
	h.awaitDone(t)
	outcome, ok := h.flow.Outcome()
	require.True(t, ok)
	assert.Equal(t, Outcome{Kind: OutcomeSuccess, Landing: LandingDefault}, outcome)

	close(h.social.gate)
	h.flow.Wait()

	assert.Equal(t, 1, h.social.callCount())
	assert.Len(t, h.events.Named(analytics.EventSocialLinkFailed), 1)
	assert.Len(t, h.presenter.Terminal(), 1)
}

func TestFlowSkipsUnsupportedSocialProvider(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("alice", success("alice", false), nil)

	h.submit(t, Attempt{Credentials: creds("alice"), SocialLink: &SocialLinkRequest{Provider: "apple", Token: "tok"}})
	h.awaitDone(t)
	h.flow.Wait()

	assert.Zero(t, h.social.callCount())
	assert.Empty(t, h.events.Named(analytics.EventSocialLinkFailed))
	assert.Empty(t, h.events.Named(analytics.EventSocialLinkSucceeded))
}

func TestFlowSecondaryOutcomes(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("bob", success("bob", false), nil)
	h.accounts.workspaces["ws-bob"] = account.Account{ID: "acct-bob"}

	h.submit(t, Attempt{Credentials: creds("bob"), Secondary: true, WorkspaceID: "ws-bob", MagicLinkOrigin: MagicLinkLogin})
	h.awaitDone(t)
	outcome, _ := h.flow.Outcome()
	assert.Equal(t, OutcomeSilentDismiss, outcome.Kind)

	h.accounts.mu.Lock()
	h.accounts.defaultID = "acct-bob"
	h.accounts.mu.Unlock()
	h.submit(t, Attempt{Credentials: creds("bob"), Secondary: true, WorkspaceID: "ws-bob", MagicLinkOrigin: MagicLinkLogin})
	h.awaitDone(t)
	outcome, _ = h.flow.Outcome()
	assert.Equal(t, Outcome{Kind: OutcomeSuccess, Landing: LandingEpilogueLogin}, outcome)
}

func TestFlowSupersedeIgnoresLateResult(t *testing.T) {
	h := newHarness(t)
	h.auth.reply("slow", backend.Result{}, &backend.Error{Code: 403, Message: "late rejection"})
	slowGate := h.auth.gate("slow")
	h.auth.reply("fast", success("fast", false), nil)

	first := h.submit(t, Attempt{Credentials: creds("slow")})
	require.Eventually(t, func() bool { return h.flow.State() == StateSubmitting }, time.Second, 5*time.Millisecond)

	second := h.submit(t, Attempt{Credentials: creds("fast")})
	require.NotEqual(t, first, second)
	h.awaitDone(t)

	close(slowGate)
	h.flow.Wait()

	terminal := h.presenter.Terminal()
	require.Len(t, terminal, 1, "superseded attempt must not emit")
	assert.Equal(t, IntentNavigate, terminal[0].Kind)
	assert.Equal(t, second, h.flow.Attempt().ID)
	assert.Empty(t, h.events.Named(analytics.EventSignInFailed))
	assert.Equal(t, StateTerminal, h.flow.State())
}

func TestFlowSupersededSuccessDoesNotSync(t *testing.T) {
	h := newHarness(t)
	slowGate := h.auth.gate("slow")
	h.auth.reply("slow", success("slow", false), nil)
	h.auth.reply("fast", backend.Result{}, &backend.Error{Code: 403})

	h.submit(t, Attempt{Credentials: creds("slow")})
	h.submit(t, Attempt{Credentials: creds("fast")})
	h.awaitDone(t)
	close(slowGate)
	h.flow.Wait()

	terminal := h.presenter.Terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, IntentShowError, terminal[0].Kind)
	assert.Empty(t, h.accounts.synced, "superseded success must not sync")
}

func TestFlowRejectPolicy(t *testing.T) {
	h := newHarness(t, WithSubmitPolicy(SubmitReject))
	gate := h.auth.gate("alice")
	h.auth.reply("alice", success("alice", false), nil)

	h.submit(t, Attempt{Credentials: creds("alice")})
	_, err := h.flow.Submit(context.Background(), Attempt{Credentials: creds("alice")})
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(gate)
	h.awaitDone(t)
	assert.Len(t, h.presenter.Terminal(), 1)
}

func TestFlowCancel(t *testing.T) {
	h := newHarness(t)
	gate := h.auth.gate("alice")
	h.auth.reply("alice", success("alice", false), nil)

	h.submit(t, Attempt{Credentials: creds("alice")})
	assert.True(t, h.flow.Cancel())
	h.awaitDone(t)
	assert.Equal(t, StateIdle, h.flow.State())
	assert.False(t, h.flow.Cancel())

	close(gate)
	h.flow.Wait()

	assert.Empty(t, h.presenter.Terminal())
	_, ok := h.flow.Outcome()
	assert.False(t, ok)
	intents := h.presenter.Intents()
	assert.Equal(t, Intent{Kind: IntentSetLoading, Loading: false}, intents[len(intents)-1])
}

func TestFlowDismissWhileInFlight(t *testing.T) {
	h := newHarness(t)
	gate := h.auth.gate("alice")
	h.auth.reply("alice", success("alice", false), nil)

	h.submit(t, Attempt{Credentials: creds("alice")})
	assert.False(t, h.flow.Dismiss())
	close(gate)
	h.awaitDone(t)
	assert.True(t, h.flow.Dismiss())
}

func TestFlowValidationError(t *testing.T) {
	h := newHarness(t)
	_, err := h.flow.Submit(context.Background(), Attempt{Credentials: backend.Credentials{Username: "alice"}})
	assert.ErrorIs(t, err, backend.ErrMissingCredentials)
	assert.Empty(t, h.presenter.Intents())
	assert.Equal(t, StateIdle, h.flow.State())
}

func TestFlowEmitsExactlyOneTerminalIntent(t *testing.T) {
	scenarios := map[string]func(h *harness){
		"success":     func(h *harness) { h.auth.reply("u", success("u", false), nil) },
		"multifactor": func(h *harness) { h.auth.reply("u", backend.Result{Kind: backend.ResultMultifactorRequired}, nil) },
		"forbidden":   func(h *harness) { h.auth.reply("u", backend.Result{}, &backend.Error{Code: 403}) },
		"transport":   func(h *harness) { h.auth.reply("u", backend.Result{}, context.DeadlineExceeded) },
		"bad result":  func(h *harness) { h.auth.reply("u", backend.Result{}, nil) },
		"sync failure": func(h *harness) {
			h.auth.reply("u", success("u", false), nil)
			h.accounts.syncErr = errors.New("metadata")
		},
		"link failure": func(h *harness) {
			h.auth.reply("u", success("u", false), nil)
			h.social.err = errors.New("link")
		},
	}

	for name, setup := range scenarios {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h)
			h.submit(t, Attempt{Credentials: creds("u"), SocialLink: &SocialLinkRequest{Provider: "google", Token: "tok"}})
			h.awaitDone(t)
			h.flow.Wait()
			assert.Len(t, h.presenter.Terminal(), 1)
			_, ok := h.flow.Outcome()
			assert.True(t, ok)
		})
	}
}
