package embedding

import (
	"context"
	"fmt"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/dgraph-io/ristretto"
)

// Cached memoizes another provider's vectors. Recall queries repeat often
// and remote providers are slow, so identical text skips the provider.
type Cached struct {
	inner Provider
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to maxEntries vectors.
func NewCached(inner Provider, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Name() string   { return c.inner.Name() }
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Unwrap returns the wrapped provider.
func (c *Cached) Unwrap() Provider { return c.inner }

// Embed returns a cached copy when available.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			observability.RecordEmbeddingCache(true)
			return copyVector(vec), nil
		}
	}
	observability.RecordEmbeddingCache(false)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, wrapError(c.Name(), err)
	}

	c.cache.Set(text, copyVector(vec), 1)
	return vec, nil
}

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases the cache and the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Close()
	if closer, ok := c.inner.(Closer); ok {
		return closer.Close()
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
