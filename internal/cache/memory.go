package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxEntries bounds a Memory cache created with a non-positive size.
const DefaultMaxEntries = 1024

// Memory is an in-process LRU cache with per-entry expiry.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64

	now func() time.Time
}

type memoryEntry struct {
	key       string
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// Stats reports Memory cache usage.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewMemory returns an empty Memory cache holding at most maxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the stored value or ErrMiss.
func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, ErrMiss
	}
	e := el.Value.(*memoryEntry)
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, ErrMiss
	}

	c.order.MoveToFront(el)
	c.hits.Add(1)
	return append([]byte(nil), e.data...), nil
}

// Set stores a copy of value, evicting the least recently used entry when
// full.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	data := append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.data, e.expiresAt = data, expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}
	c.entries[key] = c.order.PushFront(&memoryEntry{key: key, data: data, expiresAt: expiresAt})
	return nil
}

// Stats returns usage counters.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	n := c.order.Len()
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Entries: n, MaxEntries: c.maxEntries, Hits: hits, Misses: misses, HitRate: rate}
}
