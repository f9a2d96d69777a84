// Package cache keeps recent analyze responses in memory so repeat requests
// with max_age can skip the browser and the metrics provider.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/use-agent/pagelens/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.AnalyzeResponse
	createdAt time.Time
}

// Cache is an in-memory report cache keyed by normalized URL.
// It is safe for concurrent use.
type Cache struct {
	store *gocache.Cache
	now   func() time.Time
}

// New creates a Cache whose entries expire after ttl. Expired entries are
// purged every ttl/4 (at least once a minute).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 4
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	return &Cache{
		store: gocache.New(ttl, cleanup),
		now:   time.Now,
	}
}

// Get returns the response stored under key if it is younger than maxAge.
// maxAge <= 0 disables the lookup.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.AnalyzeResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}

	// Hand out a copy so callers can set CacheStatus freely.
	resp := *e.response
	return &resp, true
}

// Set stores resp under key with the default TTL.
func (c *Cache) Set(key string, resp *models.AnalyzeResponse) {
	stored := *resp
	stored.CacheStatus = ""
	c.store.SetDefault(key, &entry{response: &stored, createdAt: c.now()})
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
