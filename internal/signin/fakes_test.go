package signin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/backend"
	"github.com/loginflow/signin/internal/logging"
)

type authReply struct {
	res backend.Result
	err error
}

// fakeAuth answers per username. A gate blocks the reply until closed and
// deliberately ignores ctx, like a backend that answers late.
type fakeAuth struct {
	mu      sync.Mutex
	replies map[string]authReply
	gates   map[string]chan struct{}
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{replies: map[string]authReply{}, gates: map[string]chan struct{}{}}
}

func (f *fakeAuth) reply(username string, res backend.Result, err error) *fakeAuth {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[username] = authReply{res: res, err: err}
	return f
}

func (f *fakeAuth) gate(username string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[username] = ch
	return ch
}

func (f *fakeAuth) Authenticate(_ context.Context, creds backend.Credentials) (backend.Result, error) {
	f.mu.Lock()
	gate := f.gates[creds.Username]
	reply, ok := f.replies[creds.Username]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if !ok {
		return backend.Result{}, &backend.Error{Code: 403, Message: "unknown user"}
	}
	return reply.res, reply.err
}

type fakeAccounts struct {
	mu         sync.Mutex
	syncErr    error
	synced     []string
	workspaces map[string]account.Account
	defaultID  string
	defaultErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{workspaces: map[string]account.Account{}}
}

func (f *fakeAccounts) SyncAccount(_ context.Context, username, _ string, _ bool) (account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, username)
	if f.syncErr != nil {
		return account.Account{}, f.syncErr
	}
	return account.Account{ID: "acct-" + username, Username: username}, nil
}

func (f *fakeAccounts) ResolveWorkspace(_ context.Context, id string) (account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.workspaces[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return acct, nil
}

func (f *fakeAccounts) IsDefaultAccount(_ context.Context, acct account.Account) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.defaultErr != nil {
		return false, f.defaultErr
	}
	return acct.ID == f.defaultID, nil
}

type fakeSocial struct {
	mu    sync.Mutex
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeSocial) LinkIdentity(_ context.Context, _, _, _ string) error {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.err
}

func (f *fakeSocial) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	auth      *fakeAuth
	accounts  *fakeAccounts
	social    *fakeSocial
	presenter *IntentLog
	events    *analytics.Recorder
	flow      *Flow
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		auth:      newFakeAuth(),
		accounts:  newFakeAccounts(),
		social:    &fakeSocial{},
		presenter: &IntentLog{},
		events:    &analytics.Recorder{},
	}
	linker := NewSocialLinker(h.social, "google", h.events, logging.Discard())
	opts = append([]Option{WithSocialLinker(linker)}, opts...)
	h.flow = NewFlow(h.auth, h.accounts, h.presenter, h.events, logging.Discard(), opts...)
	t.Cleanup(h.flow.Wait)
	return h
}

func (h *harness) submit(t *testing.T, attempt Attempt) string {
	t.Helper()
	id, err := h.flow.Submit(context.Background(), attempt)
	require.NoError(t, err)
	return id
}

func (h *harness) awaitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.flow.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "flow did not finish", "state %s", h.flow.State())
	}
}

func creds(username string) backend.Credentials {
	return backend.Credentials{Username: username, Password: "secret-password"}
}

func success(username string, multifactor bool) backend.Result {
	return backend.Result{Kind: backend.ResultSuccess, Username: username, AuthToken: "token-" + username, RequiredMultifactor: multifactor}
}
