package cache

import (
	"image"
	"sync"
	"sync/atomic"
)

// DefaultBudget is the cost budget used when New is given a non-positive one.
const DefaultBudget = 256 << 20

// CostFunc reports the cost of a value, typically its size in bytes.
type CostFunc[V any] func(V) int64

// ImageCost estimates the memory held by a decoded image as 4 bytes per pixel.
func ImageCost(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Stats is a snapshot of cache statistics.
type Stats struct {
	Len       int
	Used      int64
	Budget    int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// LRU is a thread-safe least-recently-used cache bounded by total cost.
//
// When an insertion pushes the total cost over budget, the least recently
// used entries are evicted until it fits. A single value costing more than
// the whole budget is not stored.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruEntry[K, V]
	list    lruList[K]
	cost    CostFunc[V]
	budget  int64
	used    int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type lruEntry[K comparable, V any] struct {
	value V
	cost  int64
	node  *lruNode[K]
}

// New creates a cache with the given cost budget. A nil cost counts every
// entry as 1, turning the budget into an entry limit.
func New[K comparable, V any](budget int64, cost CostFunc[V]) *LRU[K, V] {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		entries: make(map[K]*lruEntry[K, V]),
		cost:    cost,
		budget:  budget,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.list.moveToFront(e.node)
	v := e.value
	c.mu.Unlock()

	c.hits.Add(1)
	return v, true
}

// Set stores value under key, replacing any previous value, and evicts
// least recently used entries until the budget holds. It reports whether
// the value was stored.
func (c *LRU[K, V]) Set(key K, value V) bool {
	cost := c.cost(value)
	if cost > c.budget {
		c.Delete(key)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.used += cost - e.cost
		e.value = value
		e.cost = cost
		c.list.moveToFront(e.node)
	} else {
		c.entries[key] = &lruEntry[K, V]{
			value: value,
			cost:  cost,
			node:  c.list.pushFront(key),
		}
		c.used += cost
	}

	for c.used > c.budget {
		oldest := c.list.back()
		if oldest == nil || oldest.key == key {
			break
		}
		c.removeLocked(oldest.key)
		c.evictions.Add(1)
	}
	return true
}

// Delete removes key. It reports whether the key was present.
func (c *LRU[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

func (c *LRU[K, V]) removeLocked(key K) {
	e := c.entries[key]
	c.list.unlink(e.node)
	c.used -= e.cost
	delete(c.entries, key)
}

// Clear removes every entry. Statistics are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*lruEntry[K, V])
	c.list.clear()
	c.used = 0
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Used returns the total cost of all entries.
func (c *LRU[K, V]) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Budget returns the cost budget.
func (c *LRU[K, V]) Budget() int64 {
	return c.budget
}

// Stats returns current statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	n, used := len(c.entries), c.used
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       n,
		Used:      used,
		Budget:    c.budget,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
