package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares rendered payloads between replicas behind one prefix.
type RedisCache struct {
	cli    redis.UniversalClient
	prefix string
}

// NewRedisCacheFromClient reuses the pool owned by the notice cache.
func NewRedisCacheFromClient(cli redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "recoboard:payload:"
	}
	return &RedisCache{cli: cli, prefix: prefix}
}

func (r *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

// SetBytes with ttl 0 keeps the payload until it is overwritten.
func (r *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(ctx, r.prefix+key, value, ttl).Err()
}

var (
	_ BytesCache = (*RedisCache)(nil)
	_ BytesCache = (*TTLCache)(nil)
)
