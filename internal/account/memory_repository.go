package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu         sync.RWMutex
	accounts   map[string]Account
	defaultID  string
	workspaces map[string]Workspace
	links      map[string][]SocialLink
}

// NewMemoryRepository builds an in-memory account store for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		accounts:   make(map[string]Account),
		workspaces: make(map[string]Workspace),
		links:      make(map[string][]SocialLink),
	}
}

func (r *memoryRepository) UpsertAccount(_ context.Context, acct Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.accounts {
		if existing.Username == acct.Username {
			existing.AuthToken = acct.AuthToken
			existing.LastSyncedAt = acct.LastSyncedAt
			r.accounts[id] = existing
			return existing, nil
		}
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	r.accounts[acct.ID] = acct
	return acct, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acct := range r.accounts {
		if acct.Username == username {
			return acct, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) DefaultAccountID(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return "", ErrNoDefault
	}
	return r.defaultID, nil
}

func (r *memoryRepository) SetDefault(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	r.defaultID = id
	return nil
}

func (r *memoryRepository) RemoveAccount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	delete(r.links, id)
	if r.defaultID == id {
		r.defaultID = ""
	}
	for wsID, ws := range r.workspaces {
		if ws.AccountID == id {
			ws.AccountID = ""
			r.workspaces[wsID] = ws
		}
	}
	return nil
}

func (r *memoryRepository) ReplaceWorkspaces(_ context.Context, accountID string, workspaces []Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ws := range r.workspaces {
		if ws.AccountID == accountID {
			delete(r.workspaces, id)
		}
	}
	for _, ws := range workspaces {
		ws.AccountID = accountID
		r.workspaces[ws.ID] = ws
	}
	return nil
}

func (r *memoryRepository) FindWorkspace(_ context.Context, id string) (Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return ws, nil
}

func (r *memoryRepository) SaveSocialLink(_ context.Context, link SocialLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[link.AccountID]; !ok {
		return ErrNotFound
	}
	links := r.links[link.AccountID]
	for i := range links {
		if links[i].Provider == link.Provider {
			links[i] = link
			return nil
		}
	}
	r.links[link.AccountID] = append(links, link)
	return nil
}

func (r *memoryRepository) SocialLinks(_ context.Context, accountID string) ([]SocialLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SocialLink(nil), r.links[accountID]...), nil
}
