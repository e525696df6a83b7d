package rates

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache holds resolved exchange rates keyed by currency pair, with a
// freshness window. It is injected into the Converter rather than living as
// package state so tests can control freshness.
//
// Concurrent misses on the same pair may both trigger a lookup; the last
// writer wins. Rates are idempotent within the TTL so this is acceptable.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// NewCache creates a rate cache with the given freshness window.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached rate for a pair if present and fresh.
func (c *Cache) Get(from, to string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[pairKey(from, to)]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return decimal.Zero, false
	}
	return entry.rate, true
}

// Set stores the rate for a pair, stamping it with the current time.
func (c *Cache) Set(from, to string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[pairKey(from, to)] = cacheEntry{
		rate:      rate,
		fetchedAt: time.Now(),
	}
}

// Len returns the number of cached pairs, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func pairKey(from, to string) string {
	return from + "/" + to
}
