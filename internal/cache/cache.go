package cache

import (
	"container/list"
	"sync"
	"time"
)

// ScopedCache is an LRU cache with TTL whose entries belong to an int64
// scope, here an account ID. Invalidating a scope advances its
// generation, which changes the effective key of every entry in that
// scope at once; the orphaned entries age out through TTL and LRU
// eviction instead of being swept eagerly.
type ScopedCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[entryKey]*list.Element
	order   *list.List
	gens    map[int64]uint64

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// entryKey is the full lookup key: entries written before an
// Invalidate call carry an older generation and can never match again.
type entryKey struct {
	scope int64
	gen   uint64
	key   string
}

type entry[T any] struct {
	key       entryKey
	value     T
	expiresAt time.Time
}

// NewScopedCache creates a cache and starts its periodic cleanup
// goroutine. Callers must Stop the cache on shutdown.
func NewScopedCache[T any](maxSize int, ttl time.Duration, cleanupInterval time.Duration) *ScopedCache[T] {
	c := &ScopedCache[T]{
		maxSize:     maxSize,
		ttl:         ttl,
		items:       make(map[entryKey]*list.Element),
		order:       list.New(),
		gens:        make(map[int64]uint64),
		stopCleanup: make(chan struct{}),
	}
	go c.startCleanup(cleanupInterval)
	return c
}

// Get retrieves a value stored under (scope, key) in the scope's
// current generation.
func (c *ScopedCache[T]) Get(scope int64, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[c.currentKey(scope, key)]
	if !exists {
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores a value under (scope, key) in the scope's current
// generation, evicting the least recently used entry when full.
func (c *ScopedCache[T]) Set(scope int64, key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{
		key:       c.currentKey(scope, key),
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[e.key]; exists {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.items[e.key] = c.order.PushFront(e)

	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate makes every cached entry of the scope unreachable.
func (c *ScopedCache[T]) Invalidate(scope int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[scope]++
}

// Len returns the number of stored entries, unreachable ones included.
func (c *ScopedCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (c *ScopedCache[T]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// CleanExpired removes all expired entries and returns how many were
// dropped.
func (c *ScopedCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeElement(elem)
	}
	return len(expired)
}

func (c *ScopedCache[T]) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// currentKey binds a (scope, key) pair to the scope's generation.
// Callers must hold c.mu.
func (c *ScopedCache[T]) currentKey(scope int64, key string) entryKey {
	return entryKey{scope: scope, gen: c.gens[scope], key: key}
}

func (c *ScopedCache[T]) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
