package services

import (
	"sync"
	"time"
)

// SettingsCache caches string settings resolved through a loader, with a
// per-entry TTL and an injected clock. It is owned by its caller; there is no
// package-level instance.
type SettingsCache struct {
	loader func(key string) (string, error)
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewSettingsCache creates a settings cache. now may be nil, in which case
// time.Now is used.
func NewSettingsCache(loader func(key string) (string, error), ttl time.Duration, now func() time.Time) *SettingsCache {
	if now == nil {
		now = time.Now
	}
	return &SettingsCache{
		loader:  loader,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for a key, loading it through the loader when
// missing or expired. Loader errors are not cached.
func (c *SettingsCache) Get(key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := c.loader(key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops the cached entry for a key
func (c *SettingsCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
