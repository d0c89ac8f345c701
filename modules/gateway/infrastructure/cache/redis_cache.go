package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	domainCache "github.com/axiestudio/chatwidget/modules/gateway/domain/entities/cache"
)

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	result, err := c.client.Get(ctx, c.prefix+":"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domainCache.ErrKeyNotFound
		}
		return "", err
	}
	return result, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+":"+key, value, c.ttl).Err()
}
