package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/truthgate/internal/model"
)

// MemoryCache is an in-process HitCache with per-entry expiry
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns a copy of the cached hits
func (c *MemoryCache) Get(key string) ([]model.RawHit, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	hits, ok := val.([]model.RawHit)
	if !ok {
		return nil, false
	}
	return append([]model.RawHit(nil), hits...), true
}

// Set stores a copy of hits. A zero ttl uses the default expiry.
func (c *MemoryCache) Set(key string, hits []model.RawHit, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, append([]model.RawHit(nil), hits...), ttl)
}

// Delete removes a key
func (c *MemoryCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes all entries
func (c *MemoryCache) Clear() {
	c.cache.Flush()
}

// Len returns the number of cached entries, including expired ones not yet cleaned
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
