package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/redis/go-redis/v9"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

const idempotencyKeyPrefix = "m21:outcome:"

// RedisIdempotencyCache stores outcome records keyed by command id. SET NX
// gives the write-once guarantee: under a redelivery race only the first
// worker's record lands, and both emit the same outcome.
type RedisIdempotencyCache struct {
	client *redis.Client
}

func NewRedisIdempotencyCache(client *redis.Client) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{client: client}
}

func (c *RedisIdempotencyCache) Get(ctx context.Context, commandID string) (*ports.OutcomeRecord, error) {
	raw, err := c.client.Get(ctx, idempotencyKeyPrefix+commandID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec ports.OutcomeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode outcome record: %w", err)
	}
	return &rec, nil
}

func (c *RedisIdempotencyCache) PutIfAbsent(ctx context.Context, rec ports.OutcomeRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode outcome record: %w", err)
	}
	// A lost SetNX race means an identical record is already present;
	// that is the write-once contract, not an error.
	return c.client.SetNX(ctx, idempotencyKeyPrefix+rec.CommandID, raw, ttl).Err()
}

var _ ports.IdempotencyCache = (*RedisIdempotencyCache)(nil)
