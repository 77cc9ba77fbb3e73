package translate

import "sync"

// Cache stores successful translations keyed by normalized target language
// and source text. Injectable so tests can substitute a fresh instance and
// production can change the eviction policy without touching call sites.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// memoryCache is a size-bounded in-process cache. When the cap is reached
// the oldest insertion is evicted. Translations for this domain are stable
// enough that staleness carries no safety impact.
type memoryCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]string
	order   []string
}

// NewMemoryCache creates a bounded cache. A maxSize of 0 or less disables
// the bound.
func NewMemoryCache(maxSize int) Cache {
	return &memoryCache{
		maxSize: maxSize,
		entries: make(map[string]string),
	}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if c.maxSize > 0 && len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = value
}
