// Package analytics carries fire-and-forget product events such as
// "signed_in" to whatever sink is configured.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	EventSignedIn            = "signed_in"
	EventSignInFailed        = "signin_failed"
	EventMultifactorRequired = "signin_multifactor_required"
	EventSocialLinkSucceeded = "social_link_succeeded"
	EventSocialLinkFailed    = "social_link_failed"
)

// Event is a single analytics record.
type Event struct {
	Name       string
	Properties map[string]any
	OccurredAt time.Time
}

// New builds an event stamped with the current time.
func New(name string, properties map[string]any) Event {
	return Event{Name: name, Properties: properties, OccurredAt: time.Now().UTC()}
}

// Sink receives analytics events. Implementations must be safe for concurrent use.
type Sink interface {
	Track(ctx context.Context, event Event) error
}

// LoggerSink writes events to the structured logger.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Track logs the event.
func (s *LoggerSink) Track(ctx context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	attrs := make([]any, 0, len(event.Properties)+1)
	attrs = append(attrs, slog.String("event", event.Name))
	for k, v := range event.Properties {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.InfoContext(ctx, "analytics", attrs...)
	return nil
}

// Recorder keeps events in memory. Useful for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track appends the event.
func (r *Recorder) Track(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
