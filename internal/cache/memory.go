package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Store backed by go-cache
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a memory cache. Entries set with ttl 0 use
// defaultTTL.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns an unexpired value
func (c *MemoryCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// GetWithExpiration returns an unexpired value and when it expires. The
// time is zero for entries that never expire.
func (c *MemoryCache) GetWithExpiration(key string) (any, time.Time, bool) {
	return c.cache.GetWithExpiration(key)
}

// Set stores value for ttl
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

// Delete removes a value
func (c *MemoryCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes every value
func (c *MemoryCache) Clear() {
	c.cache.Flush()
}
