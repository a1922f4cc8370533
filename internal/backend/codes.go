package backend

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeDigits    = 6
	codeKeyPrefix = "signin:mfa:v1:"
)

// CodeStore keeps outstanding multifactor codes. A code can be consumed once.
type CodeStore interface {
	Save(ctx context.Context, userID, code string, ttl time.Duration) error
	Consume(ctx context.Context, userID, code string) (bool, error)
}

// RedisCodeStore stores codes in Redis with a TTL.
type RedisCodeStore struct {
	cache *redis.Client
}

// NewRedisCodeStore builds a Redis-backed code store.
func NewRedisCodeStore(cache *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{cache: cache}
}

// Save replaces any outstanding code for the user.
func (s *RedisCodeStore) Save(ctx context.Context, userID, code string, ttl time.Duration) error {
	return s.cache.Set(ctx, codeKeyPrefix+userID, code, ttl).Err()
}

// Consume deletes the stored code when it matches.
func (s *RedisCodeStore) Consume(ctx context.Context, userID, code string) (bool, error) {
	key := codeKeyPrefix + userID
	stored, err := s.cache.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		return false, err
	}
	return true, nil
}

type memoryCode struct {
	code    string
	expires time.Time
}

type memoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore builds an in-process code store for development without Redis.
func NewMemoryCodeStore() CodeStore {
	return &memoryCodeStore{codes: make(map[string]memoryCode), now: time.Now}
}

func (s *memoryCodeStore) Save(_ context.Context, userID, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[userID] = memoryCode{code: code, expires: s.now().Add(ttl)}
	return nil
}

func (s *memoryCodeStore) Consume(_ context.Context, userID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[userID]
	if !ok || s.now().After(stored.expires) {
		delete(s.codes, userID)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.codes, userID)
	return true, nil
}

func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
