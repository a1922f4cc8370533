package attempts

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func sample(id string) Record {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Record{
		ID:         id,
		Username:   "ada",
		Outcome:    "success",
		Landing:    "epilogue_login",
		CreatedAt:  now,
		FinishedAt: now.Add(time.Second),
	}
}

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	store := NewRedisStore(cache, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sample("a1")))
	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, sample("a1"), got)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "a1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))
	_, err := NewRedisStore(cache, time.Minute).Get(context.Background(), "bad")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute).(*memoryStore)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sample("m1")))
	_, err := store.Get(ctx, "m1")
	require.NoError(t, err)

	now = now.Add(61 * time.Second)
	_, err = store.Get(ctx, "m1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sample("m2")))
	require.Len(t, store.entries, 1)
}
