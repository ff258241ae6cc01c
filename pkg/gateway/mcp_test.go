package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, router *RPCRouter, method string, params interface{}) *RPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	resp := router.RouteRequest(context.Background(), &RPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  raw,
	})
	require.NotNil(t, resp)
	return resp
}

func decodeToolText(t *testing.T, resp *RPCResponse) (ToolCallResult, map[string]interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolCallResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	return result, payload
}

func TestMCPHandler_Initialize(t *testing.T) {
	router, _ := newMemoryRouter(t)

	resp := call(t, router, MethodInitialize, map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]string{"name": "test-client", "version": "1.0"},
	})
	require.Nil(t, resp.Error)

	result := resp.Result.(InitializeResult)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "mcp-standards", result.ServerInfo.Name)
	assert.Contains(t, result.Capabilities, "tools")

	assert.Nil(t, router.RouteRequest(context.Background(), &RPCRequest{Method: MethodInitialized}))

	ping := call(t, router, MethodPing, nil)
	assert.Nil(t, ping.Error)
	assert.Equal(t, map[string]interface{}{}, ping.Result)
}

func TestMCPHandler_ToolsList(t *testing.T) {
	router, _ := newMemoryRouter(t)

	resp := call(t, router, MethodToolsList, map[string]interface{}{})
	require.Nil(t, resp.Error)

	tools := resp.Result.(ToolsListResult).Tools
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"])
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{
		"remember", "recall", "list_memories", "get_memory",
		"forget", "list_categories", "memory_stats", "learn_from_text",
	}, names)

	required := tools[0].InputSchema["required"]
	assert.ElementsMatch(t, []string{"content"}, required)
}

func TestMCPHandler_ToolsCall(t *testing.T) {
	router, store := newMemoryRouter(t)

	t.Run("remember then recall", func(t *testing.T) {
		result, payload := decodeToolText(t, call(t, router, MethodToolsCall, ToolCallParams{
			Name:      "remember",
			Arguments: map[string]interface{}{"content": "Use uv not pip", "category": "python", "importance": 8},
		}))
		assert.False(t, result.IsError)
		assert.NotEmpty(t, payload["id"])
		assert.Equal(t, 1, store.Count(nil))

		result, payload = decodeToolText(t, call(t, router, MethodToolsCall, ToolCallParams{
			Name:      "recall",
			Arguments: map[string]interface{}{"query": "python package manager"},
		}))
		assert.False(t, result.IsError)
		assert.Equal(t, float64(1), payload["count"])
		first := payload["results"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "Use uv not pip", first["content"])
	})

	t.Run("tool errors are results", func(t *testing.T) {
		result, payload := decodeToolText(t, call(t, router, MethodToolsCall, ToolCallParams{
			Name:      "remember",
			Arguments: map[string]interface{}{"content": "x", "importance": 11},
		}))
		assert.True(t, result.IsError)
		assert.Equal(t, toolexecutor.ErrorTypeValidation, payload["type"])
		assert.NotEmpty(t, payload["error"])
	})

	t.Run("not found", func(t *testing.T) {
		result, payload := decodeToolText(t, call(t, router, MethodToolsCall, ToolCallParams{
			Name:      "get_memory",
			Arguments: map[string]interface{}{"id": "missing"},
		}))
		assert.True(t, result.IsError)
		assert.Equal(t, "not_found", payload["type"])
	})

	t.Run("unknown tool is invalid params", func(t *testing.T) {
		resp := call(t, router, MethodToolsCall, ToolCallParams{Name: "nope"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		resp := call(t, router, MethodToolsCall, map[string]interface{}{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})
}

func TestToolCallResultFrom(t *testing.T) {
	ok := ToolCallResultFrom(toolexecutor.ToolResult{Success: true, Output: map[string]int{"count": 2}})
	assert.False(t, ok.IsError)
	assert.JSONEq(t, `{"count":2}`, ok.Content[0].Text)

	failed := ToolCallResultFrom(toolexecutor.ToolResult{
		Success:  false,
		Error:    "boom",
		Metadata: map[string]interface{}{"error_type": "internal"},
	})
	assert.True(t, failed.IsError)
	assert.JSONEq(t, `{"error":"boom","type":"internal"}`, failed.Content[0].Text)
}

func TestNewMCPHandler_RequiresExecutor(t *testing.T) {
	_, err := NewMCPHandler(MCPConfig{})
	assert.Error(t, err)
}
