package signin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/loginflow/signin/internal/backend"
)

const (
	// ForbiddenMessage replaces whatever the backend says about rejected credentials.
	ForbiddenMessage = "We couldn't log you in. Please try again."
	// GenericFailureMessage is shown when the backend gives no usable message.
	GenericFailureMessage = "Something went wrong while signing you in. Please try again."
)

// FailureKind is the user-visible failure taxonomy.
type FailureKind int

const (
	AuthFailureForbidden FailureKind = iota + 1
	AuthFailureOther
)

func (k FailureKind) String() string {
	if k == AuthFailureForbidden {
		return "forbidden"
	}
	return "other"
}

// Classification is what Classify derives from a backend error.
type Classification struct {
	Kind    FailureKind
	Code    int
	Message string
}

// Classify maps a sign-in error to its user-facing classification. It has no
// side effects.
func Classify(err error) Classification {
	var backendErr *backend.Error
	if !errors.As(err, &backendErr) {
		return Classification{Kind: AuthFailureOther, Message: GenericFailureMessage}
	}
	if backendErr.Code == http.StatusForbidden {
		return Classification{Kind: AuthFailureForbidden, Code: backendErr.Code, Message: ForbiddenMessage}
	}
	msg := strings.TrimSpace(backendErr.Message)
	if msg == "" {
		msg = GenericFailureMessage
	}
	return Classification{Kind: AuthFailureOther, Code: backendErr.Code, Message: msg}
}
