package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "memories.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_RoundTrip(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.Save(ctx, sampleRecords()))

	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	for i, want := range sampleRecords() {
		got := loaded[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Importance, got.Importance)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, want.Embedding, got.Embedding)
		assert.Equal(t, want.Metadata, got.Metadata)
	}
}

func TestSQLite_SaveOverwrites(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRecords()))
	require.NoError(t, s.Save(ctx, sampleRecords()[1:]))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b2", loaded[0].ID)

	require.NoError(t, s.Save(ctx, nil))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.db")
	ctx := context.Background()

	s, err := NewSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleRecords()))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	store, err := memory.NewStore(ctx, memory.Config{
		Embedder:    fixedEmbedder{dim: 4},
		Snapshotter: s,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count(nil))

	rec, ok := store.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "Use uv instead of pip", rec.Content)
}

func TestDeserializeFloat32(t *testing.T) {
	_, err := deserializeFloat32([]byte{1, 2, 3})
	assert.Error(t, err)

	v, err := deserializeFloat32([]byte{0, 0, 0x80, 0x3f})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}
