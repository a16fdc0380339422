package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrMiss signals the key was not present.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal redis surface the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Cache is a JSON read-through cache over redis. Writers invalidate, readers
// repopulate.
type Cache struct {
	store Store
	ttl   time.Duration
}

// New builds a Cache with the provided default TTL.
func New(store Store, ttl time.Duration) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{store: store, ttl: ttl}, nil
}

// Get unmarshals the cached value at the namespaced key into out.
func (c *Cache) Get(ctx context.Context, out any, parts ...string) error {
	raw, err := c.store.Get(ctx, c.store.CacheKey(parts...))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// Set marshals value and stores it under the namespaced key.
func (c *Cache) Set(ctx context.Context, value any, parts ...string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.CacheKey(parts...), string(raw), c.ttl)
}

// Invalidate drops the cached value for the namespaced key.
func (c *Cache) Invalidate(ctx context.Context, parts ...string) error {
	return c.store.Del(ctx, c.store.CacheKey(parts...))
}
