package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Fetcher[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache holds single values by key. Concurrent misses for one key share a
// single upstream fetch.
type Cache[K comparable, V any] struct {
	ctx   context.Context
	fetch Fetcher[K, V]
	opts  Options
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[K]*valueEntry[V]
}

type valueEntry[V any] struct {
	value     V
	hasValue  bool
	err       error
	fetching  bool
	updatedAt time.Time
}

type Result[V any] struct {
	Value      V
	HasValue   bool
	Err        error
	IsFetching bool
}

func NewCache[K comparable, V any](ctx context.Context, fetch Fetcher[K, V], opts Options) *Cache[K, V] {
	return &Cache[K, V]{
		ctx:     ctx,
		fetch:   fetch,
		opts:    opts,
		now:     time.Now,
		entries: make(map[K]*valueEntry[V]),
	}
}

// Get returns the cached value while it is fresh and fetches otherwise.
// The fetch runs under the cache's context, so a caller giving up does not
// cancel it for the other waiters.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		c.setFetching(key, true)
		var v V
		err := retry(c.ctx, c.opts, func(ctx context.Context) error {
			val, err := c.fetch(ctx, key)
			if err != nil {
				return err
			}
			v = val
			return nil
		})
		c.put(key, v, err)
		return v, err
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek reports what is cached for key without fetching.
func (c *Cache[K, V]) Peek(key K) Result[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Result[V]{}
	}
	return Result[V]{Value: e.value, HasValue: e.hasValue, Err: e.err, IsFetching: e.fetching}
}

// Prefetch starts a background Get unless the value is fresh.
func (c *Cache[K, V]) Prefetch(key K) {
	if _, ok := c.fresh(key); ok {
		return
	}
	c.setFetching(key, true)
	go func() {
		_, _ = c.Get(c.ctx, key)
	}()
}

func (c *Cache[K, V]) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.fetching {
			continue
		}
		if now.Sub(e.updatedAt) >= c.opts.StaleTime+c.opts.GCTime {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache[K, V]) fresh(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || !e.hasValue || e.err != nil {
		return zero, false
	}
	if c.now().Sub(e.updatedAt) >= c.opts.StaleTime {
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) setFetching(key K, fetching bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &valueEntry[V]{updatedAt: c.now()}
		c.entries[key] = e
	}
	e.fetching = fetching
}

func (c *Cache[K, V]) put(key K, v V, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &valueEntry[V]{}
		c.entries[key] = e
	}
	e.fetching = false
	e.updatedAt = c.now()
	e.err = err
	if err == nil {
		e.value = v
		e.hasValue = true
	}
}
