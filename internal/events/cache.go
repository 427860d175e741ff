package events

import (
	"sync"
)

// Cache is a keyed in-memory cache whose entries are evicted by change events.
// Every eviction bumps the key's generation, so a value computed before an
// eviction can be refused with SetIfGeneration.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	gens  map[string]uint64
}

// NewCache creates an empty cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]V),
		gens:  make(map[string]uint64),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v
}

// Generation returns the number of times key has been invalidated.
// Read it before loading the value to cache.
func (c *Cache[V]) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// SetIfGeneration stores v only if key has not been invalidated since gen
// was read. It reports whether v was stored.
func (c *Cache[V]) SetIfGeneration(key string, v V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.items[key] = v
	return true
}

func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.gens[key]++
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// InvalidateOn evicts key(e) whenever an event for one of tables is
// published on b. It returns a function that stops the invalidation.
func (c *Cache[V]) InvalidateOn(b *Broker, key func(Event) string, tables ...Table) (cancel func()) {
	return b.OnChange(func(e Event) {
		c.Invalidate(key(e))
	}, tables...)
}

// ByUser keys cache entries by the user that owns the changed row.
func ByUser(e Event) string {
	return e.UserID
}
