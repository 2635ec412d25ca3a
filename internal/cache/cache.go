package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tognee/librephotos/internal/config"
	"github.com/tognee/librephotos/internal/observability"
)

// Invalidator is the coarse invalidation contract the reconcilers publish
// to. The event carries no key: a flush invalidates everything.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// Cache is a read-through cache over redis. Keys are namespaced by a
// generation counter; InvalidateAll bumps the generation, orphaning every
// cached entry at once instead of evicting key by key. Orphans expire
// through their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

const generationKey = "librephotos:cache:generation"

func New(cfg config.RedisConfig, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached bytes for key, or nil on a miss. Errors degrade
// to a miss.
func (c *Cache) Get(ctx context.Context, key string) []byte {
	data, err := c.client.Get(ctx, c.namespaced(ctx, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get", "key", key, "error", err)
		}
		return nil
	}
	return data
}

// Set stores bytes under key in the current generation.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, c.namespaced(ctx, key), data, c.ttl).Err(); err != nil {
		slog.Warn("cache set", "key", key, "error", err)
	}
}

// InvalidateAll bumps the generation counter. Every previously cached
// entry becomes unreachable immediately.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		slog.Warn("cache invalidate", "error", err)
		return
	}
	observability.CacheInvalidations.Inc()
}

func (c *Cache) namespaced(ctx context.Context, key string) string {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		gen = 0
	}
	return fmt.Sprintf("librephotos:%d:%s", gen, key)
}

// Noop is an Invalidator that does nothing, for tests and cache-less runs.
type Noop struct{}

func (Noop) InvalidateAll(context.Context) {}
