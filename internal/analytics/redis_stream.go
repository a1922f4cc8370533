package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream sign-in events are appended to.
const DefaultStream = "analytics:signin"

// RedisStreamSink appends events to a capped Redis stream.
type RedisStreamSink struct {
	cache  *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink builds a stream sink. maxLen <= 0 leaves the stream uncapped.
func NewRedisStreamSink(cache *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{cache: cache, stream: stream, maxLen: maxLen}
}

// Track XADDs the event.
func (s *RedisStreamSink) Track(ctx context.Context, event Event) error {
	props, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"name":        event.Name,
			"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339Nano),
			"properties":  string(props),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.cache.XAdd(ctx, args).Err()
}
