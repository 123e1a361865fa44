package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisCacheNamespacesKeysAndMapsMiss(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
	cache := NewRedisCache(fake)

	if _, err := cache.Get(ctx, "scan:abc"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if err := cache.Set(ctx, "scan:abc", `{"label":"A"}`, outcomeCacheTTL); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fake.ttl["agrilens:scan:abc"] != 30*time.Minute {
		t.Fatalf("expected namespaced key with ttl, got %v", fake.ttl)
	}
	got, err := cache.Get(ctx, "scan:abc")
	if err != nil || got != `{"label":"A"}` {
		t.Fatalf("get: %q %v", got, err)
	}
}
