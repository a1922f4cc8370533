package signin

import (
	"fmt"
	"strings"

	"github.com/loginflow/signin/internal/backend"
)

// MagicLinkOrigin records whether a passwordless link came from signup or login.
type MagicLinkOrigin int

const (
	MagicLinkNone MagicLinkOrigin = iota
	MagicLinkSignup
	MagicLinkLogin
)

func (o MagicLinkOrigin) String() string {
	switch o {
	case MagicLinkSignup:
		return "signup"
	case MagicLinkLogin:
		return "login"
	default:
		return ""
	}
}

// ParseMagicLinkOrigin accepts "", "signup" and "login".
func ParseMagicLinkOrigin(s string) (MagicLinkOrigin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MagicLinkNone, nil
	case "signup":
		return MagicLinkSignup, nil
	case "login":
		return MagicLinkLogin, nil
	default:
		return MagicLinkNone, fmt.Errorf("unknown magic link origin %q", s)
	}
}

// SocialLinkRequest asks for a social identity to be linked once signed in.
type SocialLinkRequest struct {
	Provider string
	Token    string
}

// Attempt is one user-initiated sign-in. It is not modified after Submit.
type Attempt struct {
	ID          string
	Credentials backend.Credentials
	// Secondary marks a login tied to a specific non-primary workspace.
	Secondary       bool
	WorkspaceID     string
	SocialLink      *SocialLinkRequest
	MagicLinkOrigin MagicLinkOrigin
}
