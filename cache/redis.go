package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "arogya:backend:"

// RedisCache stores backend response bodies in Redis. It satisfies
// backend.ResponseCache. A non-positive TTL disables it.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func responseKey(path string) string {
	return keyPrefix + path
}

func (r *RedisCache) Enabled() bool { return r.ttl > 0 }

func (r *RedisCache) Get(ctx context.Context, path string) ([]byte, bool, error) {
	if !r.Enabled() {
		return nil, false, nil
	}
	data, err := r.client.Get(ctx, responseKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisCache) Set(ctx context.Context, path string, body []byte) error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Set(ctx, responseKey(path), body, r.ttl).Err()
}

// Flush removes every cached backend response, e.g. after the base URL
// changed.
func (r *RedisCache) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
