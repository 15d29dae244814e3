package query

import (
	"context"
	"sync"
	"time"
)

// InfiniteCache shares paged queries by key so that every caller asking for
// the same key sees the same pages and the same in-flight fetch.
type InfiniteCache[T any] struct {
	ctx  context.Context
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*Infinite[T]
}

func NewInfiniteCache[T any](ctx context.Context, opts Options) *InfiniteCache[T] {
	return &InfiniteCache[T]{
		ctx:     ctx,
		opts:    opts,
		now:     time.Now,
		entries: make(map[string]*Infinite[T]),
	}
}

func (c *InfiniteCache[T]) Get(key string, limit int, fetch PageFetcher[T]) *Infinite[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.entries[key]; ok {
		return q
	}
	q := newInfinite(c.ctx, limit, fetch, c.opts, c.now)
	c.entries[key] = q
	return q
}

func (c *InfiniteCache[T]) Peek(key string) (*Infinite[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.entries[key]
	return q, ok
}

func (c *InfiniteCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops entries nobody is subscribed to that have been idle for
// longer than GCTime.
func (c *InfiniteCache[T]) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, q := range c.entries {
		if q.idle(now, c.opts.GCTime) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
