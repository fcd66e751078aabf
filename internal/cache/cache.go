// Package cache provides the revision cache: a memory-weight-bounded map
// from (revision, path) to materialized tree fragments.
//
// Entries are immutable and safely shared. The bound is a total byte
// budget, not an entry count; each entry carries an estimated footprint and
// the least recently used entries are evicted until the budget holds.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/simplelru"
)

// Key addresses one tree fragment: the root path of the fragment within
// the tree committed at a revision.
type Key struct {
	Revision string
	Path     string
}

// Stats are monotonic counters plus the current total weight. They may be
// read racily; they have no correctness impact.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Weight    int64
	MaxWeight int64
}

// HitRate returns the fraction of lookups served from the cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a weight-bounded LRU. Loading on miss is synchronous and is not
// deduplicated across concurrent identical requests; loaders must be
// idempotent and safe to race.
type Cache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU
	weights map[Key]int64
	weight  int64
	max     int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache bounded by maxWeight bytes.
func New(maxWeight int64) *Cache {
	c := &Cache{
		weights: make(map[Key]int64),
		max:     maxWeight,
	}
	// the entry-count bound never triggers; eviction is driven by weight
	lru, err := simplelru.NewLRU(int(^uint(0)>>1), c.onEvict)
	if err != nil {
		panic(err)
	}
	c.lru = lru
	return c
}

func (c *Cache) onEvict(key, _ interface{}) {
	k := key.(Key)
	c.weight -= c.weights[k]
	delete(c.weights, k)
	c.evictions.Add(1)
}

// GetOrLoad returns the cached value for key, or invokes load, stores the
// result under its reported weight, and returns it. The load runs outside
// the cache lock.
func (c *Cache) GetOrLoad(key Key, load func() (value interface{}, weight int64, err error)) (interface{}, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return v, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	v, w, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if cached, ok := c.lru.Get(key); ok {
		// lost a racing load; keep the resident entry
		c.mu.Unlock()
		return cached, nil
	}
	c.lru.Add(key, v)
	c.weights[key] = w
	c.weight += w
	c.evictLocked()
	c.mu.Unlock()
	return v, nil
}

// Peek returns the cached value without loading or updating recency.
func (c *Cache) Peek(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Recompute re-estimates the weight of an already-cached entry in place.
// It never reloads: an absent key is a no-op, and a present key keeps its
// value unchanged.
func (c *Cache) Recompute(key Key, weigh func(value interface{}) int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Peek(key)
	if !ok {
		return
	}
	w := weigh(v)
	c.weight += w - c.weights[key]
	c.weights[key] = w
	c.evictLocked()
}

func (c *Cache) evictLocked() {
	for c.weight > c.max && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	w := c.weight
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Weight:    w,
		MaxWeight: c.max,
	}
}
