package api

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// searchCache caches search responses by query key with a TTL. Concurrent
// requests for the same key are collapsed into one provider fan-out.
type searchCache struct {
	mu      sync.RWMutex
	entries map[string]searchCacheEntry
	ttl     time.Duration
	group   singleflight.Group
}

type searchCacheEntry struct {
	response  *searchResponse
	expiresAt time.Time
}

func newSearchCache(ttl time.Duration) *searchCache {
	return &searchCache{
		entries: make(map[string]searchCacheEntry),
		ttl:     ttl,
	}
}

// getOrFetch returns the cached response for key or runs fetch once,
// whatever the number of concurrent callers. The boolean reports a cache hit.
func (c *searchCache) getOrFetch(key string, fetch func() (*searchResponse, error)) (*searchResponse, bool, error) {
	if response, ok := c.get(key); ok {
		return response, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent flight may have populated the cache while this
		// caller was queued behind it.
		if response, ok := c.get(key); ok {
			return response, nil
		}

		response, err := fetch()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = searchCacheEntry{
			response:  response,
			expiresAt: time.Now().Add(c.ttl),
		}
		c.mu.Unlock()

		return response, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.(*searchResponse), false, nil
}

func (c *searchCache) get(key string) (*searchResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.response, true
}
