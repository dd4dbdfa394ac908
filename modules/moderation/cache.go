package moderation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerdictCache stores moderation verdicts keyed by text.
type VerdictCache interface {
	Get(ctx context.Context, text string) (Verdict, bool, error)
	Set(ctx context.Context, text string, v Verdict) error
}

// CacheStats tracks verdict cache statistics.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Sets   uint64 `json:"sets"`
	Errors uint64 `json:"errors"`
}

// RedisVerdictCache keeps verdicts in Redis under a hash of the text,
// so raw message bodies never become keys.
type RedisVerdictCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
	errors atomic.Uint64
}

var _ VerdictCache = (*RedisVerdictCache)(nil)

// NewRedisVerdictCache creates a verdict cache on an existing client.
func NewRedisVerdictCache(client *redis.Client, prefix string, ttl time.Duration) *RedisVerdictCache {
	return &RedisVerdictCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisVerdictCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get retrieves a cached verdict. The boolean reports a cache hit.
func (c *RedisVerdictCache) Get(ctx context.Context, text string) (Verdict, bool, error) {
	data, err := c.client.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return Verdict{}, false, nil
		}
		c.errors.Add(1)
		return Verdict{}, false, fmt.Errorf("cache get error: %w", err)
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		c.errors.Add(1)
		return Verdict{}, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.hits.Add(1)
	return v, true, nil
}

// Set stores a verdict with the cache TTL.
func (c *RedisVerdictCache) Set(ctx context.Context, text string, v Verdict) error {
	v.Cached = false
	data, err := json.Marshal(v)
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.key(text), data, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}

	c.sets.Add(1)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *RedisVerdictCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
	}
}

// Ping checks the Redis connection.
func (c *RedisVerdictCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisVerdictCache) Close() error {
	return c.client.Close()
}
