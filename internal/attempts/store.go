// Package attempts keeps the terminal outcome of recent sign-in attempts so
// clients can poll for them after the submitting request has returned.
package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "signin:attempt:v1:"

// ErrNotFound is returned for unknown or expired attempts.
var ErrNotFound = errors.New("attempt not found")

// Record is the stored view of one attempt.
type Record struct {
	ID         string    `json:"attempt_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Username   string    `json:"username"`
	Outcome    string    `json:"outcome"`
	Landing    string    `json:"landing,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists attempt records for a bounded time.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
}

// RedisStore keeps records as JSON strings with a TTL.
type RedisStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisStore builds a Redis-backed attempt store.
func NewRedisStore(cache *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: cache, ttl: ttl}
}

// Save stores rec, replacing any earlier record with the same id.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	return s.cache.Set(ctx, keyPrefix+rec.ID, payload, s.ttl).Err()
}

// Get loads a record.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.cache.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode attempt %s: %w", id, err)
	}
	return rec, nil
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore returns an in-process store used when Redis is not configured.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[rec.ID] = memoryEntry{rec: rec, expires: now.Add(s.ttl)}
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || s.now().After(e.expires) {
		return Record{}, ErrNotFound
	}
	return e.rec, nil
}
