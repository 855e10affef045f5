// Package cache provides the compiled-query cache.
package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRU is a size-bounded map evicting the least recently used entry.
type LRU[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]*node[K, V]
	maxSize int
	head    *node[K, V]
	tail    *node[K, V]
	stats   Stats
}

// node represents a node in the doubly-linked list for LRU
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// NewLRU creates an LRU holding at most maxSize entries. A maxSize below
// one holds a single entry.
func NewLRU[K comparable, V any](maxSize int) *LRU[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[K, V]{
		data:    make(map[K]*node[K, V]),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	c.stats.Hits++
	return n.value, true
}

// Peek retrieves a value without touching recency or statistics.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.data[key]; ok {
		return n.value, true
	}
	var zero V
	return zero, false
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}
	if len(c.data) >= c.maxSize {
		c.evictLRU()
	}
	n := &node[K, V]{key: key, value: value}
	c.addToFront(n)
	c.data[key] = n
}

// Invalidate removes a specific key from the cache
func (c *LRU[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.data[key]; ok {
		c.removeNode(n)
	}
}

// Clear removes all entries and resets the statistics.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]*node[K, V])
	c.head = nil
	c.tail = nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.data))
	for n := c.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns cache statistics
func (c *LRU[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

func (c *LRU[K, V]) addToFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *LRU[K, V]) removeNode(n *node[K, V]) {
	c.unlink(n)
	delete(c.data, n.key)
}

func (c *LRU[K, V]) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeNode(c.tail)
	c.stats.Evictions++
}

// Cache memoizes compiled values by key. Concurrent misses on the same key
// compile once; the other callers wait for and share the result. Failed
// compilations are not cached.
type Cache[V any] struct {
	lru   *LRU[string, V]
	group singleflight.Group
}

// New creates a cache holding at most size compiled values.
func New[V any](size int) *Cache[V] {
	return &Cache[V]{lru: NewLRU[string, V](size)}
}

// GetOrCompile returns the value cached under key, compiling and storing
// it on a miss. hit reports whether the value was already cached.
func (c *Cache[V]) GetOrCompile(key string, compile func() (V, error)) (v V, hit bool, err error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}
	out, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lru.Peek(key); ok {
			return v, nil
		}
		v, err := compile()
		if err != nil {
			return nil, err
		}
		c.lru.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return out.(V), false, nil
}

// Invalidate drops the value cached under key.
func (c *Cache[V]) Invalidate(key string) {
	c.lru.Invalidate(key)
}

// Clear drops every cached value.
func (c *Cache[V]) Clear() {
	c.lru.Clear()
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns hit, miss and eviction counts.
func (c *Cache[V]) Stats() Stats {
	return c.lru.Stats()
}
