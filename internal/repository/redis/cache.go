package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	redisx "github.com/kirinyoku/gamecafe/internal/redis"
)

// Cache keeps café read models as JSON. It is best effort: a redis failure or a value
// that no longer decodes falls through to the loader.
type Cache struct {
	rdb   *redis.Client
	group singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// Load returns the value cached under key, or calls load and keeps its result for ttl.
// Concurrent misses on one key share a single load.
func Load[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok := lookup[T](ctx, c, key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := lookup[T](ctx, c, key); ok {
			return v, nil
		}

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(fresh); err == nil {
			_ = c.rdb.Set(ctx, key, b, ttl).Err()
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T

	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}

	if err := json.Unmarshal(b, &out); err != nil {
		// written by an older layout
		_ = c.rdb.Del(ctx, key).Err()
		return out, false
	}

	return out, true
}

// InvalidateCafe drops the café's cached device list.
func (c *Cache) InvalidateCafe(ctx context.Context, cafeID uuid.UUID) error {
	return c.rdb.Del(ctx, redisx.KeyCafeDevices(cafeID)).Err()
}
