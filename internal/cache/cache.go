package cache

import (
	"sync"
)

// ResultCache memoizes condensed distance vectors keyed by a digest of
// the request (input bytes plus exponent).
type ResultCache interface {
	// Get retrieves a cached result.
	Get(key uint64) ([]float32, bool)
	// Put stores a result.
	Put(key uint64, dists []float32)
	// Size returns the number of cached results.
	Size() int
}

// MapCache is a simple in-memory implementation of ResultCache.
type MapCache struct {
	data map[uint64][]float32
	mu   sync.RWMutex
}

func NewMapCache() *MapCache {
	return &MapCache{
		data: make(map[uint64][]float32),
	}
}

func (c *MapCache) Get(key uint64) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return copy to avoid modification of cached value
	if v, ok := c.data[key]; ok {
		dst := make([]float32, len(v))
		copy(dst, v)
		return dst, true
	}
	return nil, false
}

func (c *MapCache) Put(key uint64, dists []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Store copy
	dst := make([]float32, len(dists))
	copy(dst, dists)
	c.data[key] = dst
}

func (c *MapCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
