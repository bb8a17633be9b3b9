package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/babylon-scanner/internal/errors"
)

const snapshotKeyPrefix = "babylon"

// CacheService stores short-lived JSON snapshots (network stats, overview) in Redis so
// that several API instances share one upstream fetch per TTL
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// Key namespaces a snapshot key
// Format: babylon:<part1>:<part2>:...
func (c *CacheService) Key(parts ...string) string {
	normalized := make([]string, 0, len(parts)+1)
	normalized = append(normalized, snapshotKeyPrefix)
	for _, p := range parts {
		normalized = append(normalized, strings.ToLower(p))
	}
	return strings.Join(normalized, ":")
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.redis.Set(ctx, c.Key(key), data, ttl); err != nil {
		return apperrors.NewCacheError("set", err)
	}
	return nil
}

// Get retrieves a value from cache and deserializes it into dest. A miss is (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, c.Key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.NewCacheError("get", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.Key(k)
	}
	return c.redis.Del(ctx, namespaced...)
}
