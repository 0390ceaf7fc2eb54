package pubcms

import (
	"context"
	"sync"
	"time"
)

type listKey struct {
	category  Category
	published string // "", "true" or "false"
}

type listEntry struct {
	items   []ContentItem
	fetched time.Time
}

// ListCache is an in-memory TTL cache in front of the category listings.
// It keeps the full ordered result per (category, published) pair and pages
// it in memory. Every write through the API invalidates it.
type ListCache struct {
	mu      sync.RWMutex
	entries map[listKey]listEntry
	ttl     time.Duration
	svc     *Service
}

// NewListCache creates a ListCache backed by svc.
func NewListCache(svc *Service, ttl time.Duration) *ListCache {
	return &ListCache{svc: svc, ttl: ttl, entries: make(map[listKey]listEntry)}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ListCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[listKey]listEntry)
	c.mu.Unlock()
}

func keyFor(f ListFilter) listKey {
	k := listKey{category: f.Category}
	if f.Published != nil {
		k.published = "false"
		if *f.Published {
			k.published = "true"
		}
	}
	return k
}

// ensureLoaded returns the cached listing for k, loading it when stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ListCache) ensureLoaded(ctx context.Context, f ListFilter) ([]ContentItem, error) {
	k := keyFor(f)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && time.Since(e.fetched) < c.ttl {
		return e.items, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok && time.Since(e.fetched) < c.ttl {
		return e.items, nil
	}
	items, err := c.svc.List(ctx, ListFilter{Category: f.Category, Published: f.Published})
	if err != nil {
		return nil, err
	}
	c.entries[k] = listEntry{items: items, fetched: time.Now()}
	return items, nil
}

// List returns the page of items selected by f.
func (c *ListCache) List(ctx context.Context, f ListFilter) ([]ContentItem, error) {
	items, err := c.ensureLoaded(ctx, f)
	if err != nil {
		return nil, err
	}
	start := min(max(f.Offset, 0), len(items))
	end := len(items)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	page := make([]ContentItem, end-start)
	copy(page, items[start:end])
	return page, nil
}
