package upload

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryCache is an in-process Cache adapter for tests and
// single-instance deployments. Expired entries are reaped lazily on
// Get rather than by a background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Put(_ context.Context, s Session, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.ID.String()] = memoryEntry{session: s.Clone(), expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, id string) (Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return Session{}, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, id)
		return Session{}, false, nil
	}
	return e.session.Clone(), true, nil
}

func (c *MemoryCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
