package episodic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Cached memoises Ask answers per normalised query. Any write through
// Append or Compress clears the cache. An answer computed while a write
// completed is returned but never cached.
type Cached struct {
	engine Engine
	cache  *ristretto.Cache

	mu  sync.Mutex
	gen uint64
}

// NewCached wraps engine with an answer cache holding up to entries
// answers.
func NewCached(engine Engine, entries int) (*Cached, error) {
	if entries <= 0 {
		return nil, fmt.Errorf("cache entries must be positive, got %d", entries)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(entries) * 10,
		MaxCost:            int64(entries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create answer cache: %w", err)
	}
	return &Cached{engine: engine, cache: cache}, nil
}

// Unwrap returns the decorated engine.
func (c *Cached) Unwrap() Engine {
	return c.engine
}

func (c *Cached) Append(ctx context.Context, t Turn) error {
	defer c.invalidate()
	return c.engine.Append(ctx, t)
}

func (c *Cached) Ask(ctx context.Context, query string) (string, error) {
	key := normaliseQuery(query)
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}

	gen := c.generation()
	answer, err := c.engine.Ask(ctx, query)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.cache.Set(key, answer, 1)
		c.cache.Wait()
	}
	return answer, nil
}

func (c *Cached) Compress(ctx context.Context) error {
	defer c.invalidate()
	return c.engine.Compress(ctx)
}

func (c *Cached) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// invalidate advances the generation and drops every cached answer. Sets
// from asks that started under an older generation are discarded.
func (c *Cached) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Clear()
}

func (c *Cached) Counts(ctx context.Context) (Counts, error) {
	counter, ok := c.engine.(Counter)
	if !ok {
		return Counts{}, fmt.Errorf("%T does not report counts", c.engine)
	}
	return counter.Counts(ctx)
}

func (c *Cached) Available() bool {
	return c.engine.Available()
}

func (c *Cached) Close() error {
	c.cache.Close()
	return c.engine.Close()
}

func normaliseQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
