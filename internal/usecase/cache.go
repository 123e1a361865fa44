package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by Cache.Get for an absent or expired key.
var ErrCacheMiss = errors.New("cache miss")

// Cache holds serialized outcomes for sessions that may already be gone.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache stores entries under a fixed namespace in Redis.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

const cacheNamespace = "agrilens:"

// NewRedisCache builds a RedisCache on any go-redis client or pipeline.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, prefix: cacheNamespace}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Set writes value with the given expiration.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, expiration).Err()
}

// Get reads a value, mapping redis.Nil onto ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}
