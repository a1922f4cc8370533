package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindMultifactorCode carries a one-time sign-in verification code.
	KindMultifactorCode = "multifactor_code"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
// The body is never logged since it carries the verification code.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message metadata to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination)
	return nil
}

// Outbox keeps every message in memory. Useful for tests.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends the message.
func (o *Outbox) Send(_ context.Context, message Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message)
	return nil
}

// Last returns the most recent message sent to destination.
func (o *Outbox) Last(destination string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Destination == destination {
			return o.messages[i], true
		}
	}
	return Message{}, false
}
