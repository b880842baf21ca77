package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with a small in-process cache. Reads hit memory
// first; writes go to Redis and then memory. Locks bypass memory entirely.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    redisCache,
		l1TTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	ttl := lc.l1TTL
	if expiration > 0 && expiration < ttl {
		ttl = expiration
	}
	_ = lc.l1.Set(ctx, key, value, ttl)
	return nil
}

// Get promotes Redis hits into memory for at most the layer's TTL.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if lc.l1.Get(ctx, key, dest) == nil {
		return nil
	}
	if err := lc.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	promoted := dest
	if s, ok := dest.(*string); ok {
		promoted = *s
	}
	_ = lc.l1.Set(ctx, key, promoted, lc.l1TTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
