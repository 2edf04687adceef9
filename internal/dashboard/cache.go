package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis based caching of rendered chart snapshots.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// SnapshotKey names a snapshot by session and range. Session IDs are unique
// per fetch, so a new visit never reads an older visit's render.
func SnapshotKey(sessionID string, parts ...string) string {
	return strings.Join(append([]string{"stockpulse", "snapshot", sessionID}, parts...), ":")
}

// FetchBytes returns the cached payload for key or stores the loader's
// result. hit reports whether the payload came from Redis.
func (c *Cache) FetchBytes(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) (payload []byte, hit bool, err error) {
	if loader == nil {
		return nil, false, errors.New("cache: loader required")
	}
	if !c.Enabled() {
		payload, err = loader(ctx)
		return payload, false, err
	}
	payload, err = c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, err
	}
	payload, err = loader(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return nil, false, err
	}
	return payload, false, nil
}
