package proxy

import (
	"sync"
	"time"
)

const allClientsCacheKey = "all_clients"

// respCache is the proxy-side short-TTL cache. It is independent from each
// upstream's own api_cache_ttl per spec.md §4.7 ("proxy-side cache TTL is
// independent from upstream cache TTL").
type respCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

func newRespCache(ttl time.Duration) *respCache {
	return &respCache{entries: map[string]cacheEntry{}, ttl: ttl}
}

func (c *respCache) get(key string) (interface{}, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *respCache) put(key string, value interface{}) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}
