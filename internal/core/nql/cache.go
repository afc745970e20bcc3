package nql

import (
	"container/list"
	"sync"
)

// Cache is a thread-safe LRU of compiled queries keyed by query text.
// Compiled queries are immutable and returned shared.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	text  string
	query Query
}

// NewCache creates a cache holding up to capacity queries. A capacity below
// one is treated as one.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached compilation of text.
func (c *Cache) Get(text string) (Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).query, true
}

// Put stores q under text, evicting the least recently used entry when full.
func (c *Cache) Put(text string, q Query) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).query = q
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.entries, oldest.Value.(*cacheEntry).text)
			c.order.Remove(oldest)
		}
	}
	c.entries[text] = c.order.PushFront(&cacheEntry{text: text, query: q})
}

// Compile returns the cached query for text, compiling and caching it on a
// miss. Failed compilations are not cached.
func (c *Cache) Compile(text string) (Query, error) {
	if q, ok := c.Get(text); ok {
		return q, nil
	}
	q, err := Compile(text)
	if err != nil {
		return nil, err
	}
	c.Put(text, q)
	return q, nil
}

// Len returns the number of cached queries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
