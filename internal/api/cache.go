package api

import (
	"sync"
	"time"
)

// allClientsCacheKey is the cache key for the aggregate /api/clients response.
const allClientsCacheKey = "all_clients"

// respCache is a short-TTL, lazily-evicted response cache local to this
// package. It is distinct from internal/retrans's transaction-keyed cache:
// this one caches rendered JSON bodies keyed by client IP (or
// allClientsCacheKey) for api_cache_ttl, to absorb bursts of polling from
// dashboards and the federating proxy.
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

// get returns the cached value for key. Callers must still mark the value
// as cached (e.g. set IsCached/is_cached) since the stored value was built
// fresh at put time.
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
