package connector

import (
	"context"
	"time"

	"github.com/ppiankov/truthgate/internal/cache"
	"github.com/ppiankov/truthgate/internal/model"
)

// CachedConnector serves repeated queries from a HitCache. Errors are
// never cached.
type CachedConnector struct {
	inner Connector
	cache cache.HitCache
	ttl   time.Duration
}

// NewCachedConnector wraps inner with c
func NewCachedConnector(inner Connector, c cache.HitCache, ttl time.Duration) *CachedConnector {
	return &CachedConnector{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped connector's name
func (c *CachedConnector) Name() string {
	return c.inner.Name()
}

// Search returns cached hits or queries the wrapped connector
func (c *CachedConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	key := cache.Key(c.inner.Name(), query)
	if hits, ok := c.cache.Get(key); ok {
		return hits, nil
	}

	hits, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, hits, c.ttl)
	return hits, nil
}
