package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis client.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis wraps a Redis client. Keys are stored under prefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get returns the stored value or ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return data, nil
}

// Set stores value with the given TTL. A non-positive TTL stores without
// expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}
