package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKeyPrefix namespaces report cache keys.
const DefaultRedisKeyPrefix = "heliowatch:report:"

// RedisCacheConfig holds configuration for the shared cache.
type RedisCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Logger    zerolog.Logger
}

// RedisCache shares selections between replicas. Values are JSON with a
// native Redis expiry.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    zerolog.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, cfg RedisCacheConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	return &RedisCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: prefix,
		logger:    cfg.Logger,
	}
}

// Get returns the entry for key. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping corrupt report cache entry")
		_ = c.client.Del(ctx, c.keyPrefix+key).Err()
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Set stores the entry with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
