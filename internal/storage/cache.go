// cache.go - In-memory cache of recent extraction results

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pakorn/invoice_extract_ai/internal/invoice"
)

// ResultCache remembers recent extractions keyed by a hash of the image
// payload, so an identical upload within the TTL is answered without
// re-running the pipeline. Records are immutable, so handing the same
// pointer to multiple callers is safe.
type ResultCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	record   *invoice.Record
	storedAt time.Time
}

// NewResultCache creates a cache with the given entry TTL.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// HashPayload derives the cache key for an encoded image payload.
func HashPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached record for key, or nil when absent or expired.
func (c *ResultCache) Get(key string) *invoice.Record {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Since(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}
	return entry.record
}

// Put stores a record under key, evicting expired entries as a side
// effect to keep the map bounded.
func (c *ResultCache) Put(key string, rec *invoice.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.entries {
		if time.Since(entry.storedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{record: rec, storedAt: time.Now()}
}

// Clear removes every cached entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
