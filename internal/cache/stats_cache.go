// Package cache is an explicit, invalidation-keyed layer over the pure stats
// functions. The core never caches implicitly; this wrapper owns the keys
// and is flushed whenever a commit changes the record set.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/persistence"
)

// StatsCache stores serialized rollup results in Redis.
type StatsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache builds the cache. A nil or unreachable Redis client turns
// every operation into a no-op; the stats endpoints then recompute.
func NewStatsCache(r *persistence.Redis, prefix string, ttl time.Duration, logger *zap.Logger) *StatsCache {
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	return &StatsCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Key derives a deterministic cache key from ordered parameters.
func (c *StatsCache) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Get loads a cached value into dest, reporting whether it was present.
func (c *StatsCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("stats cache entry undecodable; dropping", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

// Set stores a value under the key with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("stats cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every cached rollup. Called after each committed import
// or workflow mutation.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("stats cache scan failed", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("stats cache invalidation failed", zap.Error(err))
		}
	}
}
