package storage

import (
	"context"
	"errors"
	"time"

	coreredis "github.com/vanillake254/BAHATI-YANGU/db/redis"
)

// RedisKV keeps values in Redis, for clients that share a device profile
// across processes
type RedisKV struct {
	redis  *coreredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisKV wraps a Redis client. ttl of zero means no expiry.
func NewRedisKV(client *coreredis.Client, prefix string, ttl time.Duration) *RedisKV {
	return &RedisKV{redis: client, prefix: prefix, ttl: ttl}
}

func (r *RedisKV) key(key string) string {
	return r.prefix + key
}

// Get reads the value of key
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.redis.Get(ctx, r.key(key))
	if errors.Is(err, coreredis.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// Set stores value
func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.redis.Set(ctx, r.key(key), value, r.ttl)
}

// Delete removes key
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.redis.Delete(ctx, r.key(key))
}
