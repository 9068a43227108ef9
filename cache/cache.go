// Package cache provides the in-process TTL cache for completed color
// analyses, keyed by canonical hex.
package cache

import (
	"sync"
	"time"
)

// entry wraps a cached value with its expiry and insertion order.
type entry struct {
	value     interface{}
	expiresAt time.Time
	seq       uint64
}

// Cache is a bounded TTL cache. Expired entries are dropped lazily on Get
// and eagerly by Purge; when full, the oldest entry is evicted.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	capacity int
	seq      uint64
}

// New creates a cache with the given TTL and capacity. A zero or negative
// capacity means unbounded; a zero TTL means entries never expire.
func New(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores a value, evicting the oldest entry when at capacity.
func (c *Cache) Put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity > 0 && len(c.entries) >= c.capacity {
		if _, exists := c.entries[key]; !exists {
			c.evictOldestLocked()
		}
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}
	c.seq++
	c.entries[key] = entry{value: value, expiresAt: expires, seq: c.seq}
}

// evictOldestLocked removes the entry with the lowest insertion sequence.
// Callers must hold the mutex.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestSeq uint64
	first := true
	for k, e := range c.entries {
		if first || e.seq < oldestSeq {
			oldestKey = k
			oldestSeq = e.seq
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of entries, expired ones included until purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes all expired entries and returns how many were dropped.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
