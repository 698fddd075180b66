// Package cache provides result caching for shortest-path queries.
//
// Dijkstra runs are cheap on small graphs but dominate request latency
// once the network grows past a few thousand people. Caching the
// resolved route for a (source, target) pair avoids recomputing it for
// repeated lookups, which is the common access pattern when a client
// walks a contact list.
//
// Entries are invalidated wholesale on any graph mutation; weights can
// shift anywhere in the network after an upsert, so per-pair
// invalidation would be unsound.
//
// Usage:
//
//	cache := NewPathCache(1000, 5*time.Minute)
//
//	key := cache.Key(source, target)
//	if result, ok := cache.Get(key); ok {
//		return result
//	}
//
//	result := computePath(source, target)
//	cache.Put(key, result)
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickadesina/soc-cli/pkg/pathfind"
)

// PathCache is a thread-safe LRU cache for resolved path results.
//
// The cache uses a hash map for O(1) lookups, a doubly-linked list for
// LRU ordering, and an optional TTL for expiration.
//
// Example:
//
//	cache := NewPathCache(1000, 5*time.Minute)
//
//	key := cache.Key("alice", "bob")
//	if result, ok := cache.Get(key); ok {
//		return result
//	}
//
//	result, err := pathfind.ShortestPath(g, "alice", "bob")
//	if err == nil {
//		cache.Put(key, result)
//	}
type PathCache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration
	enabled bool

	list  *list.List
	items map[uint64]*list.Element

	hits   uint64
	misses uint64
}

// cacheEntry holds a cached result with metadata.
type cacheEntry struct {
	key       uint64
	result    *pathfind.PathResult
	expiresAt time.Time
}

// NewPathCache creates a new path cache.
//
// Parameters:
//   - maxSize: Maximum number of cached results (LRU eviction when exceeded)
//   - ttl: Time-to-live for cached entries (0 = no expiration)
func NewPathCache(maxSize int, ttl time.Duration) *PathCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &PathCache{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key generates a cache key for a source/target pair.
//
// Paths are directional, so Key(a, b) != Key(b, a). A NUL separator
// keeps ("ab", "c") distinct from ("a", "bc").
func (c *PathCache) Key(source, target string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(target))
	return h.Sum64()
}

// Get retrieves a cached result if present and not expired.
//
// Returns (result, true) on cache hit, (nil, false) on miss.
// Moves the entry to front of LRU list on hit.
func (c *PathCache) Get(key uint64) (*pathfind.PathResult, bool) {
	if !c.enabled {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.RLock()
	elem, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)

	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		c.removeElement(elem)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	c.list.MoveToFront(elem)
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return entry.result, true
}

// Put adds a result to the cache.
//
// If the cache is full, the least recently used entry is evicted.
// If the key already exists, the result is updated.
func (c *PathCache) Put(key uint64, result *pathfind.PathResult) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.result = result
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{
		key:    key,
		result: result,
	}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	elem := c.list.PushFront(entry)
	c.items[key] = elem
}

// Invalidate removes all entries. Call after any graph mutation; an
// upsert can reshape routes far from the touched node.
func (c *PathCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of cached entries.
func (c *PathCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats returns cache statistics.
func (c *PathCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     // Current number of entries
	MaxSize int     // Maximum capacity
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}

// SetEnabled enables or disables the cache.
func (c *PathCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled

	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the lock.
func (c *PathCache) evictOldest() {
	elem := c.list.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache.
// Caller must hold the lock.
func (c *PathCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}
