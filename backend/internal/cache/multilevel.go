package cache

import (
	"context"
	"time"
)

// DefaultL1TTL bounds how long a value found only in L2 is kept in L1.
const DefaultL1TTL = time.Minute

// MultiLevelCache fronts a shared cache with process memory. It suits keys
// that only ever go from absent to present, such as revoked token ids: a
// stale L1 hit can then only be a value that really was set.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	l1TTL   time.Duration
	metrics *CacheMetrics
}

func NewMultiLevelCache(l1 *MemoryCache, l2 Cache) *MultiLevelCache {
	return &MultiLevelCache{
		l1:      l1,
		l2:      l2,
		l1TTL:   DefaultL1TTL,
		metrics: NewCacheMetrics(),
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.l1.Set(ctx, key, value, ttl)
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordSet()
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string) (string, bool, error) {
	if value, found, _ := c.l1.Get(ctx, key); found {
		c.metrics.RecordHit()
		return value, true, nil
	}

	value, found, err := c.l2.Get(ctx, key)
	if err != nil {
		c.metrics.RecordError()
		return "", false, err
	}
	if !found {
		c.metrics.RecordMiss()
		return "", false, nil
	}

	c.l1.Set(ctx, key, value, c.l1TTL)
	c.metrics.RecordHit()
	return value, true, nil
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(ctx, key)
	if err := c.l2.Delete(ctx, key); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordDelete()
	return nil
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":             "multilevel",
		"l1":               c.l1.Stats(),
		"l2":               c.l2.Stats(),
		"metrics":          c.metrics.GetStats(),
		"hit_rate_percent": c.metrics.HitRate(),
	}
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	return c.l2.Health(ctx)
}

// Close stops L1. L2 is left to its owner.
func (c *MultiLevelCache) Close() error {
	return c.l1.Close()
}
