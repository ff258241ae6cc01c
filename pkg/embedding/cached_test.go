package embedding

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	Provider
	calls atomic.Int32
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Provider.Embed(ctx, text)
}

func TestCached_Embed(t *testing.T) {
	inner := &countingProvider{Provider: NewHashed(16)}
	cached, err := NewCached(inner, 100)
	require.NoError(t, err)
	defer cached.Close()

	assert.Equal(t, "hashed", cached.Name())
	assert.Equal(t, 16, cached.Dimension())

	first, err := cached.Embed(context.Background(), "Use uv not pip")
	require.NoError(t, err)
	cached.Wait()

	second, err := cached.Embed(context.Background(), "Use uv not pip")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	// Callers own the returned slice.
	second[0] = 42
	third, err := cached.Embed(context.Background(), "Use uv not pip")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), third[0])

	_, err = cached.Embed(context.Background(), "something else")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{Provider: NewHashed(16)}
	cached, err := NewCached(inner, 10)
	require.NoError(t, err)
	defer cached.Close()

	_, err = cached.Embed(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
	cached.Wait()
	_, err = cached.Embed(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, int32(2), inner.calls.Load())
}
