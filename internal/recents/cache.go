package recents

import (
	"fmt"
	"slices"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultSize is the number of contacts kept when no other capacity is configured.
const DefaultSize = 10

// Cache is a bounded, most-recently-used-first list of contact ids. It holds every id at most
// once and evicts the least recently touched id when it grows beyond its capacity.
//
// Cache is not safe for concurrent use; the contact store serializes access to it.
type Cache struct {
	lru     *simplelru.LRU[string, struct{}]
	evicted []string
}

// New returns an empty cache holding at most size ids.
func New(size int) (*Cache, error) {
	c := &Cache{}
	lru, err := simplelru.NewLRU[string, struct{}](size, func(id string, _ struct{}) {
		c.evicted = append(c.evicted, id)
	})
	if err != nil {
		return nil, fmt.Errorf("recents cache of size %d: %w", size, err)
	}
	c.lru = lru
	return c, nil
}

// Touch moves id to the front of the cache, inserting it if needed. It returns the ids that were
// evicted to stay within capacity, oldest first.
func (c *Cache) Touch(id string) []string {
	c.evicted = nil
	c.lru.Add(id, struct{}{})
	evicted := c.evicted
	c.evicted = nil
	return evicted
}

// IDs returns the cached ids, most recently touched first.
func (c *Cache) IDs() []string {
	ids := c.lru.Keys()
	slices.Reverse(ids)
	return ids
}

// Contains reports whether id is cached without changing its position.
func (c *Cache) Contains(id string) bool {
	return c.lru.Contains(id)
}

// Remove drops id from the cache. It returns false if id was not cached.
func (c *Cache) Remove(id string) bool {
	return c.lru.Remove(id)
}

// Len returns the number of cached ids.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
	c.evicted = nil
}

// Restore replaces the content with ids, given most recently touched first. Duplicates keep
// their first (most recent) position and ids beyond capacity are dropped.
func (c *Cache) Restore(ids []string) {
	c.Clear()
	for i := len(ids) - 1; i >= 0; i-- {
		c.lru.Add(ids[i], struct{}{})
	}
	c.evicted = nil
}
