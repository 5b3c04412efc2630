// Package cache provides the in-memory response cache for search and detail
// lookups. Entries expire by write time; nothing here outlives the process.
package cache

import (
	"time"

	"github.com/maypok86/otter/v2"

	"vodmux/work/types"
)

const maxEntriesPerStore = 10_000

// Cache holds separate stores for search and detail responses so one hot
// shape cannot evict the other.
type Cache struct {
	enabled bool
	search  *otter.Cache[string, *types.SearchResponse]
	detail  *otter.Cache[string, *types.DetailResponse]
}

// NewCache creates a cache whose entries expire duration after being
// written. A disabled cache is a valid no-op instance.
func NewCache(enabled bool, duration time.Duration) *Cache {
	if !enabled {
		return &Cache{}
	}
	return &Cache{
		enabled: true,
		search: otter.Must(&otter.Options[string, *types.SearchResponse]{
			MaximumSize:      maxEntriesPerStore,
			ExpiryCalculator: otter.ExpiryWriting[string, *types.SearchResponse](duration),
		}),
		detail: otter.Must(&otter.Options[string, *types.DetailResponse]{
			MaximumSize:      maxEntriesPerStore,
			ExpiryCalculator: otter.ExpiryWriting[string, *types.DetailResponse](duration),
		}),
	}
}

// GetSearch returns a cached search response if present and fresh.
func (c *Cache) GetSearch(key string) (*types.SearchResponse, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.search.GetIfPresent(key)
}

// SetSearch stores a search response. Only successful responses are worth
// keeping; failures must stay retryable.
func (c *Cache) SetSearch(key string, value *types.SearchResponse) {
	if !c.enabled || value == nil || value.Code != 200 {
		return
	}
	c.search.Set(key, value)
}

// GetDetail returns a cached detail response if present and fresh.
func (c *Cache) GetDetail(key string) (*types.DetailResponse, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.detail.GetIfPresent(key)
}

// SetDetail stores a detail response.
func (c *Cache) SetDetail(key string, value *types.DetailResponse) {
	if !c.enabled || value == nil || value.Code != 200 {
		return
	}
	c.detail.Set(key, value)
}

// Purge drops everything, used on graceful restart.
func (c *Cache) Purge() {
	if !c.enabled {
		return
	}
	c.search.InvalidateAll()
	c.detail.InvalidateAll()
}
