package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a last-known cart stays usable as a fallback.
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned when no usable snapshot exists.
var ErrMiss = errors.New("cart snapshot not found")

// SnapshotCache keeps the last cart payload the backend confirmed under a
// key, usually a client id plus identity scope. It is only read when the
// backend cannot be reached.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*cart.RawCart, error)
	Set(ctx context.Context, key string, raw *cart.RawCart) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	raw      *cart.RawCart
	storedAt time.Time
}

type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*cart.RawCart, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, ErrMiss
	}
	return entry.raw, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, raw *cart.RawCart) error {
	if raw == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{raw: raw, storedAt: c.now()}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// RedisCache stores snapshots as JSON under cart:snapshot:<key> and lets
// Redis expire them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func snapshotKey(key string) string {
	return fmt.Sprintf("cart:snapshot:%s", key)
}

func (c *RedisCache) Get(ctx context.Context, key string) (*cart.RawCart, error) {
	data, err := c.client.Get(ctx, snapshotKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart snapshot: %w", err)
	}

	var raw cart.RawCart
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	return &raw, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, raw *cart.RawCart) error {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cart snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}
