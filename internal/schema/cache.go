package schema

import (
	"sync"
	"sync/atomic"
)

type cacheKey struct {
	root string
	path string
	deep bool
}

// cacheEntry is computed at most once; later readers block on once until
// the first computation finishes.
type cacheEntry struct {
	once sync.Once
	res  *Resolution
	err  error
}

// resolutionCache memoizes resolutions process-wide. Entries are immutable
// and never evicted.
type resolutionCache struct {
	mu       sync.RWMutex
	entries  map[cacheKey]*cacheEntry
	computed atomic.Int64
}

func newResolutionCache() *resolutionCache {
	return &resolutionCache{entries: make(map[cacheKey]*cacheEntry)}
}

func (c *resolutionCache) get(key cacheKey, compute func() (*Resolution, error)) (*Resolution, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		entry, ok = c.entries[key]
		if !ok {
			entry = &cacheEntry{}
			c.entries[key] = entry
		}
		c.mu.Unlock()
	}

	entry.once.Do(func() {
		c.computed.Add(1)
		entry.res, entry.err = compute()
	})
	return entry.res, entry.err
}

func (c *resolutionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
