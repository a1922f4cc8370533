package signin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/loginflow/signin/internal/account"
	"github.com/loginflow/signin/internal/analytics"
)

const defaultLinkTimeout = 15 * time.Second

// SocialClient talks to the social identity provider.
type SocialClient interface {
	LinkIdentity(ctx context.Context, provider, token, accountID string) error
}

// SocialLinkResult reports what TryLink did. It only feeds analytics.
type SocialLinkResult struct {
	Skipped bool
	Err     error
}

// Succeeded reports whether an identity was linked.
func (r SocialLinkResult) Succeeded() bool {
	return !r.Skipped && r.Err == nil
}

// SocialLinker links a social identity to a freshly signed-in account on a
// best-effort basis. Failures are recorded and swallowed.
type SocialLinker struct {
	client   SocialClient
	provider string
	events   analytics.Sink
	logger   *slog.Logger
	timeout  time.Duration
}

// NewSocialLinker builds a linker accepting requests for provider only. A nil
// client disables linking.
func NewSocialLinker(client SocialClient, provider string, events analytics.Sink, logger *slog.Logger) *SocialLinker {
	return &SocialLinker{
		client:   client,
		provider: strings.ToLower(provider),
		events:   events,
		logger:   logger,
		timeout:  defaultLinkTimeout,
	}
}

// Eligible reports whether req targets the supported provider.
func (l *SocialLinker) Eligible(req *SocialLinkRequest) bool {
	if l == nil || l.client == nil || req == nil || req.Token == "" {
		return false
	}
	return strings.EqualFold(req.Provider, l.provider)
}

// TryLink links req to acct. Ineligible requests are skipped without calling
// the provider.
func (l *SocialLinker) TryLink(ctx context.Context, req *SocialLinkRequest, acct account.Account) SocialLinkResult {
	if !l.Eligible(req) {
		return SocialLinkResult{Skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := l.client.LinkIdentity(ctx, l.provider, req.Token, acct.ID)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("social link failed",
				slog.String("account_id", acct.ID),
				slog.String("provider", l.provider),
				slog.Any("error", err),
			)
		}
		l.track(ctx, analytics.New(analytics.EventSocialLinkFailed, map[string]any{
			"provider": l.provider,
			"error":    err.Error(),
		}))
		return SocialLinkResult{Err: err}
	}

	l.track(ctx, analytics.New(analytics.EventSocialLinkSucceeded, map[string]any{"provider": l.provider}))
	return SocialLinkResult{}
}

func (l *SocialLinker) track(ctx context.Context, event analytics.Event) {
	if l.events == nil {
		return
	}
	if err := l.events.Track(ctx, event); err != nil && l.logger != nil {
		l.logger.Warn("analytics track failed", slog.String("event", event.Name), slog.Any("error", err))
	}
}
