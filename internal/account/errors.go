package account

import "errors"

var (
	// ErrNotFound is returned when an account or workspace does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrNoDefault is returned when no default account has been chosen yet.
	ErrNoDefault = errors.New("no default account")
	// ErrSyncFailed wraps failures fetching account metadata after sign-in.
	ErrSyncFailed = errors.New("account sync failed")
)
