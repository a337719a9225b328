// Package rescache provides an in-memory TTL cache for whole aggregated
// responses, with ETag support for the HTTP layer. It absorbs duplicate
// aggregate reads (today's fixtures, hot-league snapshots); individual
// fixture lookups go through the fixture store instead.
package rescache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Type partitions the key space by the kind of aggregate being cached.
type Type string

const (
	TypeDaily Type = "daily"    // fixtures for one date
	TypeHot   Type = "hot"      // hot-league snapshot
	TypeLive  Type = "snapshot" // combined live+scheduled snapshot
)

// TTLs per aggregate kind. Short and fixed — freshness of individual
// fixtures is the store's job, this layer only dedupes bursts of reads.
const (
	TTLDaily = 60 * time.Second
	TTLHot   = 2 * time.Minute
	TTLLive  = 30 * time.Second
)

type entry struct {
	data      []byte
	etag      string
	hits      int
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache for aggregate JSON blobs.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	enabled bool
}

// New creates a cache. Pass enabled=false for a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		enabled: enabled,
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Key derives a cache key from a type and its request parts.
func Key(typ Type, parts ...string) string {
	return string(typ) + ":" + strings.Join(parts, ":")
}

// Get retrieves a cached aggregate. Returns data, etag, and whether the
// entry was found and still valid. A hit increments the entry's counter.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, exists := c.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, "", false
	}
	e.hits++
	return e.data, e.etag, true
}

// Set stores an aggregate blob with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		data:      data,
		etag:      etag,
		expiresAt: time.Now().Add(ttl),
	}
	return etag
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, hits := 0, 0
	now := time.Now()
	for _, e := range c.entries {
		hits += e.hits
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]interface{}{
		"enabled":      c.enabled,
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
		"total_hits":   hits,
	}
}

// evictLoop periodically removes expired entries.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evict()
	}
}

func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if an If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	return ifNoneMatch == etag
}
