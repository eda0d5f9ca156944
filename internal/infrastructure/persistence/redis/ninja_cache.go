package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
)

// NinjaCache implements ninja.Cache using the generic Redis Cache.
type NinjaCache struct {
	cache *Cache
}

var _ ninja.Cache = (*NinjaCache)(nil)

// NewNinjaCache creates a new NinjaCache.
func NewNinjaCache(cache *Cache) *NinjaCache {
	return &NinjaCache{cache: cache}
}

// Get returns a cached ninja, or (nil, nil) on a miss.
func (c *NinjaCache) Get(ctx context.Context, ninjaID string) (*ninja.Ninja, error) {
	var n ninja.Ninja
	if err := c.cache.Get(ctx, NinjaKey(ninjaID), &n); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// Set caches a ninja card.
func (c *NinjaCache) Set(ctx context.Context, n *ninja.Ninja, ttl time.Duration) error {
	if n == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLNinjaCache
	}
	return c.cache.Set(ctx, NinjaKey(n.ID), n, ttl)
}

// Invalidate drops a ninja card.
func (c *NinjaCache) Invalidate(ctx context.Context, ninjaID string) error {
	return c.cache.Delete(ctx, NinjaKey(ninjaID))
}
