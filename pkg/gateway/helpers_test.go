package gateway

import (
	"context"
	"testing"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/embedding"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// newMemoryRouter wires an in-memory store, the memory tools and the MCP
// methods onto a fresh router.
func newMemoryRouter(t *testing.T) (*RPCRouter, *memory.Store) {
	t.Helper()

	store, err := memory.NewStore(context.Background(), memory.Config{
		Embedder: embedding.NewHashed(64),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	executor := toolexecutor.New()
	require.NoError(t, memory.RegisterMemoryTools(executor, memory.ToolsConfig{
		Store:        store,
		Detector:     correction.NewDetector(),
		ProviderName: embedding.ProviderHashed,
	}))

	handler, err := NewMCPHandler(MCPConfig{
		Executor: executor,
		Info:     ServerInfo{Name: "mcp-standards", Version: "test"},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	router := NewRPCRouter(zerolog.Nop())
	require.NoError(t, handler.Register(router))

	return router, store
}
