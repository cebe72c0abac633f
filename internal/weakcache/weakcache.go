// Package weakcache memoises values by the identity of a key pointer without
// keeping the key alive.
package weakcache

import (
	"runtime"
	"sync"
	"weak"
)

// Cache maps *K identities to *V. An entry is dropped once its key has been
// garbage collected. Values must not reference their key, or the key never
// becomes unreachable.
type Cache[K, V any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[K]]*V
}

// GetOrCreate returns the value cached for key, calling create on a miss.
// create runs with the cache locked and must not call back into it.
func (c *Cache[K, V]) GetOrCreate(key *K, create func() *V) *V {
	wp := weak.Make(key)
	c.mu.Lock()
	if v, ok := c.entries[wp]; ok {
		c.mu.Unlock()
		return v
	}
	if c.entries == nil {
		c.entries = make(map[weak.Pointer[K]]*V)
	}
	v := create()
	c.entries[wp] = v
	c.mu.Unlock()

	runtime.AddCleanup(key, c.evict, wp)
	return v
}

// Get returns the cached value for key, if any.
func (c *Cache[K, V]) Get(key *K) (*V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[weak.Make(key)]
	return v, ok
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) evict(wp weak.Pointer[K]) {
	c.mu.Lock()
	delete(c.entries, wp)
	c.mu.Unlock()
}
