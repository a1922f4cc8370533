package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUserNotFound is returned by directories when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a username twice.
	ErrUserExists = errors.New("user exists")
	// ErrWeakPassword rejects registrations with short passwords.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrMissingCredentials is returned by Credentials.Validate.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrInvalidToken is returned for malformed, expired or forged auth tokens.
	ErrInvalidToken = errors.New("invalid auth token")
)

// Error is a failure reported by the authentication backend. Code follows
// HTTP status semantics: 403 means the credentials were rejected.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func forbidden() *Error {
	return &Error{Code: http.StatusForbidden, Message: "incorrect username or password"}
}

func invalidCode() *Error {
	return &Error{Code: http.StatusUnauthorized, Message: "The verification code is invalid or has expired."}
}

func unavailable(err error) *Error {
	return &Error{Code: http.StatusServiceUnavailable, Message: "The sign-in service is temporarily unavailable.", Err: err}
}
