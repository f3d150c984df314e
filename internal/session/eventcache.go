package session

import (
	"fmt"
	"sync"

	"github.com/armalogs/backend/internal/models"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// EventCache keeps decoded event tables keyed by file ID, so several reports
// on the same table decode it once. Cached stores are shared and must not be
// modified.
type EventCache struct {
	mu      sync.Mutex
	entries map[string]models.EventStore
	order   []string // oldest first
	max     int
}

// NewEventCache creates a cache holding at most max tables.
func NewEventCache(max int) *EventCache {
	if max <= 0 {
		max = MaxCachedTables
	}
	return &EventCache{
		entries: make(map[string]models.EventStore),
		max:     max,
	}
}

// Get returns the cached table of fileID, calling load on a miss.
func (c *EventCache) Get(fileID string, load func(string) (models.EventStore, error)) (models.EventStore, error) {
	c.mu.Lock()
	if events, ok := c.entries[fileID]; ok {
		c.mu.Unlock()
		return events, nil
	}
	c.mu.Unlock()

	events, err := load(fileID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fileID]; !ok {
		c.order = append(c.order, fileID)
	}
	c.entries[fileID] = events
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		fmt.Printf("[EventCache] Evicted table %s\n", shortID(oldest))
	}

	return events, nil
}

// Invalidate drops the cached table of fileID.
func (c *EventCache) Invalidate(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[fileID]; !ok {
		return
	}
	delete(c.entries, fileID)
	for i, id := range c.order {
		if id == fileID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// List returns the cached file IDs, oldest first.
func (c *EventCache) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Stats returns statistics about the cache.
func (c *EventCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := 0
	for _, store := range c.entries {
		events += len(store)
	}
	return map[string]interface{}{
		"cachedTables": len(c.entries),
		"cachedEvents": events,
		"maxTables":    c.max,
	}
}
