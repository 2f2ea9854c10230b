package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client  *redis.Client
	prefix  string
	metrics *CacheMetrics
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client:  client,
		prefix:  prefix,
		metrics: NewCacheMetrics(),
	}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, key)
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("cache set error: %w", err)
	}
	c.metrics.RecordSet()
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.RecordMiss()
			return "", false, nil
		}
		c.metrics.RecordError()
		return "", false, fmt.Errorf("cache get error: %w", err)
	}
	c.metrics.RecordHit()
	return value, true, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		c.metrics.RecordError()
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	if n > 0 {
		c.metrics.RecordHit()
		return true, nil
	}
	c.metrics.RecordMiss()
	return false, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("cache delete error: %w", err)
	}
	c.metrics.RecordDelete()
	return nil
}

func (c *RedisCache) Stats() map[string]interface{} {
	pool := c.client.PoolStats()
	return map[string]interface{}{
		"type":       "redis",
		"prefix":     c.prefix,
		"metrics":    c.metrics.GetStats(),
		"hit_rate":   c.metrics.HitRate(),
		"pool_total": pool.TotalConns,
		"pool_idle":  pool.IdleConns,
	}
}

func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close is a no-op: the client is shared and closed by its owner.
func (c *RedisCache) Close() error {
	return nil
}
