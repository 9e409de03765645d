package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheClient is the narrow surface Store needs from the external cache.
// Defined by the consumer so tests can substitute a fake and force tier
// transitions without a running Redis.
type cacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// redisCache adapts go-redis to cacheClient, translating redis.Nil into the
// store's miss sentinel.
type redisCache struct {
	client *redis.Client
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	return v, err
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRedisClient builds a go-redis client with a short dial timeout and a
// single retry, matching the degrade-gracefully policy: a missing cache must
// not stall session operations.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
}
