package memory

import (
	"context"
	"testing"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, withDetector bool) (*toolexecutor.ToolExecutor, *Store) {
	t.Helper()
	store, _, _ := newTestStore(t)
	executor := toolexecutor.New()

	cfg := ToolsConfig{Store: store, ProviderName: "concept"}
	if withDetector {
		cfg.Detector = correction.NewDetector()
	}
	require.NoError(t, RegisterMemoryTools(executor, cfg))
	return executor, store
}

func TestRegisterMemoryTools(t *testing.T) {
	t.Run("registers tools in order", func(t *testing.T) {
		executor, _ := newTestExecutor(t, true)
		assert.Equal(t, []string{
			"remember", "recall", "list_memories", "get_memory", "forget",
			"list_categories", "memory_stats", "learn_from_text",
		}, executor.ListTools())
	})

	t.Run("learn_from_text needs a detector", func(t *testing.T) {
		executor, _ := newTestExecutor(t, false)
		assert.Nil(t, executor.GetTool("learn_from_text"))
		assert.Equal(t, 7, executor.GetToolCount())
	})

	t.Run("store is required", func(t *testing.T) {
		err := RegisterMemoryTools(toolexecutor.New(), ToolsConfig{})
		assert.Error(t, err)
	})

	t.Run("schemas expose constraints", func(t *testing.T) {
		executor, _ := newTestExecutor(t, false)
		schema, ok := executor.InputSchema("remember")
		require.True(t, ok)

		props := schema["properties"].(map[string]interface{})
		category := props["category"].(map[string]interface{})
		assert.Equal(t, []interface{}{"python", "git", "docker", "general"}, category["enum"])

		importance := props["importance"].(map[string]interface{})
		assert.Equal(t, 1.0, importance["minimum"])
		assert.Equal(t, 10.0, importance["maximum"])
		assert.Equal(t, []string{"content"}, schema["required"])
	})
}

func TestMemoryTools_ThroughExecutor(t *testing.T) {
	executor, store := newTestExecutor(t, true)
	ctx := context.Background()

	t.Run("remember then recall", func(t *testing.T) {
		res := executor.Execute(ctx, "remember", map[string]interface{}{
			"content":    "Use uv not pip",
			"category":   "python",
			"importance": float64(8),
		}, nil)
		require.True(t, res.Success, res.Error)

		remembered := res.Output.(*RememberResult)
		assert.Equal(t, CategoryPython, remembered.Category)
		assert.Equal(t, 8, remembered.Importance)

		res = executor.Execute(ctx, "recall", map[string]interface{}{"query": "python package manager"}, nil)
		require.True(t, res.Success, res.Error)

		recalled := res.Output.(*RecallResult)
		require.GreaterOrEqual(t, recalled.Count, 1)
		assert.Equal(t, "Use uv not pip", recalled.Results[0].Content)
		assert.Greater(t, recalled.Results[0].Score, 0.0)
	})

	t.Run("schema violations are validation errors", func(t *testing.T) {
		before := store.Count(nil)

		cases := []map[string]interface{}{
			{"content": ""},
			{"content": "x", "importance": float64(11)},
			{"content": "x", "category": "rust"},
			{"content": "x", "tags": []interface{}{"a"}},
		}
		for _, params := range cases {
			res := executor.Execute(ctx, "remember", params, nil)
			assert.False(t, res.Success)
			assert.Equal(t, toolexecutor.ErrorTypeValidation, res.ErrorType())
		}

		res := executor.Execute(ctx, "recall", map[string]interface{}{"query": "x", "limit": float64(0)}, nil)
		assert.Equal(t, toolexecutor.ErrorTypeValidation, res.ErrorType())

		assert.Equal(t, before, store.Count(nil))
	})

	t.Run("list_memories", func(t *testing.T) {
		res := executor.Execute(ctx, "list_memories", map[string]interface{}{"limit": float64(5)}, nil)
		require.True(t, res.Success, res.Error)
		listed := res.Output.(*ListMemoriesResult)
		assert.Equal(t, store.Count(nil), listed.Total)
		assert.Equal(t, 5, listed.Limit)
	})

	t.Run("get_memory not found", func(t *testing.T) {
		res := executor.Execute(ctx, "get_memory", map[string]interface{}{"id": "missing"}, nil)
		assert.False(t, res.Success)
		assert.Equal(t, toolexecutor.ErrorTypeNotFound, res.ErrorType())
	})

	t.Run("learn_from_text", func(t *testing.T) {
		res := executor.Execute(ctx, "learn_from_text", map[string]interface{}{"text": "use podman instead of docker"}, nil)
		require.True(t, res.Success, res.Error)
		learned := res.Output.(*LearnResult)
		assert.True(t, learned.Detected)
		assert.Equal(t, "podman", learned.Preferred)
		assert.Equal(t, "docker", learned.Deprecated)
		require.NotNil(t, learned.Memory)
		assert.Equal(t, CategoryDocker, learned.Memory.Category)
	})

	t.Run("memory_stats", func(t *testing.T) {
		res := executor.Execute(ctx, "memory_stats", nil, nil)
		require.True(t, res.Success, res.Error)
		stats := res.Output.(*MemoryStatsResult)
		assert.Equal(t, "concept", stats.Provider)
		assert.Equal(t, int64(1), stats.AutoDetection.Corrections)
	})

	t.Run("embedding failure is reported", func(t *testing.T) {
		failing := &conceptEmbedder{}
		failing.fail.Store(true)
		brokenStore, err := NewStore(ctx, Config{Embedder: failing})
		require.NoError(t, err)

		broken := toolexecutor.New()
		require.NoError(t, RegisterMemoryTools(broken, ToolsConfig{Store: brokenStore}))

		res := broken.Execute(ctx, "remember", map[string]interface{}{"content": "Use uv"}, nil)
		assert.False(t, res.Success)
		assert.Equal(t, toolexecutor.ErrorTypeEmbedding, res.ErrorType())
	})
}
