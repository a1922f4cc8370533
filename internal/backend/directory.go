package backend

import (
	"context"
	"sync"
)

// Directory persists backend users.
type Directory interface {
	Create(ctx context.Context, user User) error
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

type memoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryDirectory builds an in-memory user directory for tests and development.
func NewMemoryDirectory() Directory {
	return &memoryDirectory{users: make(map[string]User)}
}

func (d *memoryDirectory) Create(_ context.Context, user User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[user.Username]; exists {
		return ErrUserExists
	}
	d.users[user.Username] = user
	return nil
}

func (d *memoryDirectory) FindByUsername(_ context.Context, username string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (d *memoryDirectory) FindByID(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, user := range d.users {
		if user.ID == id {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}
