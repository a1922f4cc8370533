package signin

import "sync"

// IntentKind names a Presenter call.
type IntentKind int

const (
	IntentSetLoading IntentKind = iota + 1
	IntentShowError
	IntentNavigate
)

// Intent is one recorded Presenter call.
type Intent struct {
	Kind    IntentKind
	Loading bool
	Message string
	Outcome Outcome
}

// Terminal reports whether the intent ends an attempt.
func (i Intent) Terminal() bool {
	return i.Kind == IntentShowError || i.Kind == IntentNavigate
}

// IntentLog is a Presenter that records every intent. Surfaces without an
// interactive UI, such as the HTTP handler, read the result from it.
type IntentLog struct {
	mu      sync.Mutex
	intents []Intent
}

// SetLoading records a loading change.
func (l *IntentLog) SetLoading(loading bool) {
	l.append(Intent{Kind: IntentSetLoading, Loading: loading})
}

// ShowError records an error display.
func (l *IntentLog) ShowError(message string) {
	l.append(Intent{Kind: IntentShowError, Message: message})
}

// Navigate records a navigation.
func (l *IntentLog) Navigate(outcome Outcome) {
	l.append(Intent{Kind: IntentNavigate, Outcome: outcome})
}

func (l *IntentLog) append(i Intent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intents = append(l.intents, i)
}

// Intents returns a copy of the recorded intents.
func (l *IntentLog) Intents() []Intent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Intent(nil), l.intents...)
}

// Terminal returns the recorded terminal intents.
func (l *IntentLog) Terminal() []Intent {
	var out []Intent
	for _, i := range l.Intents() {
		if i.Terminal() {
			out = append(out, i)
		}
	}
	return out
}
