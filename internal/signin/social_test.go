package signin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
	"github.com/loginflow/signin/internal/logging"
)

func TestSocialLinkerSkipsUnsupportedProvider(t *testing.T) {
	client := &fakeSocial{}
	events := &analytics.Recorder{}
	linker := NewSocialLinker(client, "google", events, logging.Discard())
	ctx := context.Background()
	acct := account.Account{ID: "acct-1"}

	for _, req := range []*SocialLinkRequest{
		nil,
		{Provider: "apple", Token: "tok"},
		{Provider: "google", Token: ""},
	} {
		res := linker.TryLink(ctx, req, acct)
		assert.True(t, res.Skipped)
		assert.False(t, res.Succeeded())
	}
	assert.Zero(t, client.callCount())
	assert.Empty(t, events.Events())
}

func TestSocialLinkerReportsFailure(t *testing.T) {
	client := &fakeSocial{err: errors.New("provider rejected token")}
	events := &analytics.Recorder{}
	linker := NewSocialLinker(client, "google", events, logging.Discard())

	res := linker.TryLink(context.Background(), &SocialLinkRequest{Provider: "Google", Token: "tok"}, account.Account{ID: "acct-1"})
	require.Error(t, res.Err)
	assert.False(t, res.Skipped)

	failed := events.Named(analytics.EventSocialLinkFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "google", failed[0].Properties["provider"])
}

func TestSocialLinkerSuccess(t *testing.T) {
	client := &fakeSocial{}
	events := &analytics.Recorder{}
	linker := NewSocialLinker(client, "google", events, logging.Discard())

	res := linker.TryLink(context.Background(), &SocialLinkRequest{Provider: "google", Token: "tok"}, account.Account{ID: "acct-1"})
	assert.True(t, res.Succeeded())
	assert.Len(t, events.Named(analytics.EventSocialLinkSucceeded), 1)
}

func TestSocialLinkerNilClient(t *testing.T) {
	linker := NewSocialLinker(nil, "google", nil, nil)
	assert.False(t, linker.Eligible(&SocialLinkRequest{Provider: "google", Token: "tok"}))

	var none *SocialLinker
	assert.False(t, none.Eligible(&SocialLinkRequest{Provider: "google", Token: "tok"}))
}
