package services

import (
	"sync"
	"time"
)

// CachedForest is a built result together with its expiry policy. A zero or
// negative TTL never expires; only Refresh replaces such an entry.
type CachedForest struct {
	Result  *BuildResult
	BuiltAt time.Time
	TTL     time.Duration
}

func (c CachedForest) Fresh(now time.Time) bool {
	if c.Result == nil {
		return false
	}
	if c.TTL <= 0 {
		return true
	}
	return now.Sub(c.BuiltAt) < c.TTL
}

// ForestCache holds one CachedForest per dataset.
type ForestCache interface {
	Get(dataset string) (CachedForest, bool)
	Put(dataset string, entry CachedForest)
	Invalidate(dataset string)
}

type MemoryForestCache struct {
	mu      sync.RWMutex
	entries map[string]CachedForest
}

func NewMemoryForestCache() *MemoryForestCache {
	return &MemoryForestCache{entries: make(map[string]CachedForest)}
}

func (c *MemoryForestCache) Get(dataset string) (CachedForest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[dataset]
	return v, ok
}

func (c *MemoryForestCache) Put(dataset string, entry CachedForest) {
	if entry.Result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dataset] = entry
}

func (c *MemoryForestCache) Invalidate(dataset string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, dataset)
}
