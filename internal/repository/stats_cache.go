package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const statsKeyPrefix = "classwork:stats:"

// RedisStatsCache 统计结果的短期缓存，值为 JSON
type RedisStatsCache struct {
	Client *redis.Client
}

func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{Client: client}
}

// Get 命中时解码到 dst 并返回 true
func (c *RedisStatsCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.Client.Get(ctx, statsKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, statsKeyPrefix+key, raw, ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = statsKeyPrefix + k
	}
	return c.Client.Del(ctx, full...).Err()
}

// NoopStatsCache 未启用 redis 时使用，从不命中
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }

func (NoopStatsCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (NoopStatsCache) Invalidate(context.Context, ...string) error { return nil }
