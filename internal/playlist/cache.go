package playlist

import (
	"sync"
	"time"
)

type cacheEntry struct {
	result   *ResolveResult
	storedAt time.Time
}

// ResponseCache is an in-process TTL cache for fully resolved playlist
// responses. Entries are written as whole values and only ever invalidated
// by an explicit refresh; there is no background sweeper, staleness is
// checked on read.
type ResponseCache struct {
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewResponseCache creates a response cache with the given entry TTL
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for a playlist if present and fresh
func (c *ResponseCache) Get(playlistID string) (*ResolveResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[playlistID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.result, true
}

// Set stores a resolved result for a playlist
func (c *ResponseCache) Set(playlistID string, result *ResolveResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[playlistID] = cacheEntry{result: result, storedAt: c.now()}
}

// Invalidate drops a playlist's cached result
func (c *ResponseCache) Invalidate(playlistID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, playlistID)
}

// Len returns the number of cached entries, fresh or stale
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
