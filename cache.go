package clubsite

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ContentCache is an in-memory cache of published content items with TTL.
type ContentCache struct {
	mu         sync.RWMutex
	items      []ContentItem
	categories []string
	fetched    time.Time
	ttl        time.Duration
	store      ContentStore
}

// NewContentCache creates a ContentCache backed by the given store.
func NewContentCache(s ContentStore, ttl time.Duration) *ContentCache {
	return &ContentCache{store: s, ttl: ttl}
}

func (c *ContentCache) valid() bool {
	return c.items != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.items = nil
	c.categories = nil
	c.mu.Unlock()
}

func (c *ContentCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	items, err := c.store.ListContent(ctx, "")
	if err != nil {
		return err
	}
	if items == nil {
		items = []ContentItem{}
	}
	set := make(map[string]struct{})
	for _, it := range items {
		if it.Category != "" {
			set[it.Category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(set))
	for cat := range set {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	c.items = items
	c.categories = categories
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached items after making sure the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ContentCache) ensureLoaded(ctx context.Context) ([]ContentItem, []string, error) {
	c.mu.RLock()
	if c.valid() {
		items, cats := c.items, c.categories
		c.mu.RUnlock()
		return items, cats, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.items, c.categories, nil
}

// ListContent returns published items, optionally filtered by category.
func (c *ContentCache) ListContent(ctx context.Context, category string) ([]ContentItem, error) {
	items, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return items, nil
	}
	filtered := []ContentItem{}
	for _, it := range items {
		if it.Category == category {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// ListCategories returns the distinct categories of published items.
func (c *ContentCache) ListCategories(ctx context.Context) ([]string, error) {
	_, cats, err := c.ensureLoaded(ctx)
	return cats, err
}

// GetContent returns a single published item by slug from the cache.
func (c *ContentCache) GetContent(ctx context.Context, slug string) (ContentItem, error) {
	items, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return ContentItem{}, err
	}
	for _, it := range items {
		if it.Slug == slug {
			return it, nil
		}
	}
	return ContentItem{}, ErrNotFound
}
