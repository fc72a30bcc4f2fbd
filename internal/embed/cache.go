package embed

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an LRU of candidate embeddings keyed by canonical id. Purely a
// performance layer: a miss only means recomputing a deterministic vector.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to size embeddings.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached embedding for the canonical id, if present.
func (c *Cache) Get(canonicalID string) ([]float32, bool) {
	return c.lru.Get(canonicalID)
}

// Add stores an embedding under the canonical id.
func (c *Cache) Add(canonicalID string, vec []float32) {
	c.lru.Add(canonicalID, vec)
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	return c.lru.Len()
}
