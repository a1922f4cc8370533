package backend

import (
	"strings"
	"time"
)

// User is an identity known to the authentication backend.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	Multifactor  bool
	Workspaces   []Workspace
	CreatedAt    time.Time
}

// Workspace is a site the user can sign in to.
type Workspace struct {
	ID   string
	Name string
	URL  string
}

// Credentials are what the user typed into the sign-in form.
type Credentials struct {
	Username        string
	Password        string
	MultifactorCode string
}

// Validate checks that the required fields are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Registration describes a new directory user.
type Registration struct {
	Username    string
	Email       string
	Password    string
	Multifactor bool
	Workspaces  []Workspace
}

// ResultKind tags a non-failing Authenticate result.
type ResultKind int

const (
	ResultSuccess ResultKind = iota + 1
	ResultMultifactorRequired
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultMultifactorRequired:
		return "multifactor_required"
	default:
		return "unknown"
	}
}

// Result is the outcome of Authenticate. Failures are returned as *Error.
type Result struct {
	Kind                ResultKind
	Username            string
	AuthToken           string
	RequiredMultifactor bool
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
