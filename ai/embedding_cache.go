package ai

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultEmbeddingCacheSize = 1024
	defaultEmbeddingCacheTTL  = 30 * time.Minute
)

// CachedEmbedder memoizes Embed calls keyed by input text. Retrieval and
// planning embed the same query several times per request (global scope,
// user scope, conversation memory), so a small LRU in front of the provider
// saves most of those round trips.
type CachedEmbedder struct {
	inner interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    *list.List
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	element   *list.Element
	vector    []float32
	expiresAt time.Time
}

// NewCachedEmbedder wraps inner with an LRU of the given capacity and TTL.
// Non-positive arguments fall back to defaults.
func NewCachedEmbedder(inner interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}, capacity int, ttl time.Duration) *CachedEmbedder {
	if capacity <= 0 {
		capacity = defaultEmbeddingCacheSize
	}
	if ttl <= 0 {
		ttl = defaultEmbeddingCacheTTL
	}
	return &CachedEmbedder{
		inner:    inner,
		entries:  make(map[string]*cacheEntry),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Embed returns the cached vector for text, calling the provider on a miss.
// Provider errors are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.get(text); ok {
		return vector, nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(text, vector)
	return vector, nil
}

func (c *CachedEmbedder) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.order.Remove(e.element)
		delete(c.entries, text)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	return e.vector, true
}

func (c *CachedEmbedder) put(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[text]; ok {
		e.vector = vector
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}

	e := &cacheEntry{
		vector:    vector,
		expiresAt: time.Now().Add(c.ttl),
	}
	e.element = c.order.PushFront(text)
	c.entries[text] = e
}

// Len reports the number of live entries, expired ones included until eviction.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
