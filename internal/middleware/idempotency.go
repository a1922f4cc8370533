package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "signin:idempotency:v2:"
	idempotencyOpTimeout = 2 * time.Second
)

// storedResponse is kept under the key from reservation on. Pending is set
// until the first request completes.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency replays the stored response when a client resubmits the same
// request with the same Idempotency-Key, so a retried sign-in never starts a
// second attempt. A reused key with a different body is rejected with 422 and
// never sees the stored response. Requests without the header pass through
// unless required is set. Server errors, including timeouts, are not stored
// and release the key.
//
// Bodies are fingerprinted with HMAC-SHA256 under fingerprintKey because they
// carry passwords.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger, required bool, fingerprintKey []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			if required {
				return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
			}
			return c.Next()
		}
		cacheKey := idempotencyPrefix + c.Path() + ":" + key
		fingerprint := requestFingerprint(fingerprintKey, c)

		marker, err := json.Marshal(storedResponse{Fingerprint: fingerprint, Pending: true})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), idempotencyOpTimeout)
		reserved, err := cache.SetNX(ctx, cacheKey, marker, ttl).Result()
		if err == nil && !reserved {
			var cached string
			cached, err = cache.Get(ctx, cacheKey).Result()
			cancel()
			if err == nil {
				return replay(c, logger, key, fingerprint, cached)
			}
			if errors.Is(err, redis.Nil) {
				// Released between SETNX and GET; ask the client to retry.
				return fiber.NewError(fiber.StatusConflict, "sign-in already being processed")
			}
		} else {
			cancel()
		}
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release(cache, cacheKey)
			return nil
		}

		payload, err := json.Marshal(storedResponse{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        string(c.Response().Body()),
		})
		if err != nil {
			logger.Error("failed to encode idempotent response", slog.String("key", key), slog.Any("error", err))
			release(cache, cacheKey)
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			cache.Del(persistCtx, cacheKey)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, logger *slog.Logger, key, fingerprint, cached string) error {
	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if !hmac.Equal([]byte(stored.Fingerprint), []byte(fingerprint)) {
		logger.Warn("idempotency key reused with a different request", slog.String("key", key))
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key was already used for a different request")
	}
	if stored.Pending {
		return fiber.NewError(fiber.StatusConflict, "sign-in already being processed")
	}
	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

func requestFingerprint(secret []byte, c *fiber.Ctx) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(c.Method()))
	mac.Write([]byte{0})
	mac.Write([]byte(c.Path()))
	mac.Write([]byte{0})
	mac.Write(c.Body())
	return hex.EncodeToString(mac.Sum(nil))
}

// release drops a reservation so the client may retry with the same key.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}
