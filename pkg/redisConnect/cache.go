package redisconnect

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the part of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// JSONCache keeps the JSON text of column values in redis.
type JSONCache struct {
	client Client
	prefix string
	ttl    time.Duration
}

// NewJSONCache creates a cache writing keys as "<prefix>:<key>". A zero ttl
// keeps entries until they are deleted.
func NewJSONCache(client Client, prefix string, ttl time.Duration) *JSONCache {
	if prefix == "" {
		prefix = "jsoncolumn"
	}
	return &JSONCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *JSONCache) Key(key string) string {
	return c.prefix + ":" + key
}

// Get returns the cached text and whether it was present.
func (c *JSONCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (c *JSONCache) Set(ctx context.Context, key, text string) error {
	return c.client.Set(ctx, c.Key(key), text, c.ttl).Err()
}

func (c *JSONCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.Key(key)).Err()
}
