package cache

import (
	"context"
	"sync"
	"time"
)

type MemoryCache struct {
	store   sync.Map
	metrics *CacheMetrics

	stopOnce sync.Once
	stopCh   chan struct{}
}

type cacheItem struct {
	value      string
	expiration time.Time
}

func NewMemoryCache() *MemoryCache {
	return newMemoryCache(time.Minute)
}

func newMemoryCache(cleanupEvery time.Duration) *MemoryCache {
	cache := &MemoryCache{
		metrics: NewCacheMetrics(),
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup(cleanupEvery)

	return cache
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		c.store.Delete(key)
		return nil
	}
	c.store.Store(key, &cacheItem{
		value:      value,
		expiration: time.Now().Add(ttl),
	})
	c.metrics.RecordSet()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	item, exists := c.store.Load(key)
	if !exists {
		c.metrics.RecordMiss()
		return "", false, nil
	}

	entry := item.(*cacheItem)
	if time.Now().After(entry.expiration) {
		c.store.Delete(key)
		c.metrics.RecordMiss()
		return "", false, nil
	}

	c.metrics.RecordHit()
	return entry.value, true, nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	c.metrics.RecordDelete()
	return nil
}

func (c *MemoryCache) Len() int {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (c *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":     "memory",
		"items":    c.Len(),
		"metrics":  c.metrics.GetStats(),
		"hit_rate": c.metrics.HitRate(),
	}
}

func (c *MemoryCache) Health(context.Context) error {
	select {
	case <-c.stopCh:
		return ErrCacheClosed
	default:
		return nil
	}
}

func (c *MemoryCache) evictExpired(now time.Time) {
	c.store.Range(func(key, value interface{}) bool {
		if now.After(value.(*cacheItem).expiration) {
			c.store.Delete(key)
		}
		return true
	})
}

func (c *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.evictExpired(now)
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}
