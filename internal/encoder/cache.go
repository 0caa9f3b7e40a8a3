package encoder

import (
	"container/list"
	"context"
	"sync"
)

// Cache is an LRU cache of encoded queries keyed by text.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache creates a cache holding up to capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached vector for key. Callers must not modify it.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores value for key, evicting the least recently used entry at capacity.
func (c *Cache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CachedEncoder memoizes another encoder.
type CachedEncoder struct {
	TextEncoder
	cache *Cache
}

// NewCachedEncoder wraps enc with an LRU cache of the given size.
func NewCachedEncoder(enc TextEncoder, size int) *CachedEncoder {
	return &CachedEncoder{TextEncoder: enc, cache: NewCache(size)}
}

// Encode returns a copy of the cached vector or encodes and caches text.
func (e *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return append([]float32(nil), v...), nil
	}
	v, err := e.TextEncoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append([]float32(nil), v...))
	return v, nil
}
