package viewmodel

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisIndexPrefix = "qc:index:"

// RedisCache is a QueryCache shared by every server instance. Each entity
// keeps a set of the keys read from it.
type RedisCache struct {
	client *redis.Client
}

var _ QueryCache = (*RedisCache)(nil)

// NewRedisCache connects to url and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{client: c}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(c *redis.Client) *RedisCache {
	return &RedisCache{client: c}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, entities []string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, e := range entities {
		pipe.SAdd(ctx, redisIndexPrefix+e, key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) InvalidateEntity(ctx context.Context, entity string) error {
	idx := redisIndexPrefix + entity
	keys, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(keys, idx)...).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
