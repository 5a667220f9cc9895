// Package cache memoises similarity results between index changes.
package cache

import (
	"sync"
	"time"
)

// SimilarCache is an LRU of similar-id lists keyed by (animal id, k). Entries
// expire after ttl and are dropped whenever the index generation moves on.
type SimilarCache struct {
	mu       sync.RWMutex
	entries  map[cacheKey]*cacheEntry
	order    []cacheKey
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheKey struct {
	animalID int64
	k        int
}

type cacheEntry struct {
	ids       []int64
	timestamp time.Time
	indexGen  uint64
}

func NewSimilarCache(maxSize int, ttl time.Duration) *SimilarCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SimilarCache{
		entries: make(map[cacheKey]*cacheEntry),
		order:   make([]cacheKey, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *SimilarCache) Get(animalID int64, k int) ([]int64, bool) {
	key := cacheKey{animalID: animalID, k: k}

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return append([]int64(nil), entry.ids...), true
}

func (c *SimilarCache) Put(animalID int64, k int, ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{animalID: animalID, k: k}
	entry := &cacheEntry{
		ids:       append([]int64(nil), ids...),
		timestamp: c.now(),
		indexGen:  c.indexGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry and starts a new index generation.
func (c *SimilarCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[cacheKey]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *SimilarCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SimilarCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *SimilarCache) moveToEnd(key cacheKey) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *SimilarCache) removeFromOrder(key cacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
