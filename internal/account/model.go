package account

import "time"

// Account is an authenticated identity stored on this device/session.
type Account struct {
	ID           string
	Username     string
	AuthToken    string
	CreatedAt    time.Time
	LastSyncedAt time.Time
}

// Workspace is a site ("blog") record. AccountID is empty when the workspace
// is known but no longer linked to a stored account.
type Workspace struct {
	ID        string
	AccountID string
	Name      string
	URL       string
}

// SocialLink associates a social identity with an account.
type SocialLink struct {
	AccountID string
	Provider  string
	Subject   string
	LinkedAt  time.Time
}
