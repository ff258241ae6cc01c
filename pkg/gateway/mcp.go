package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// MCP method names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is returned by initialize.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
	Instructions    string                 `json:"instructions,omitempty"`
}

// Tool is one entry of a tools/list result.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolsListResult is returned by tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams are the params of tools/call.
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Content is a single MCP content block.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is returned by tools/call. Tool failures are reported in
// the result with IsError set, not as JSON-RPC errors.
type ToolCallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// MCPHandler exposes a tool executor through the MCP methods.
type MCPHandler struct {
	executor     *toolexecutor.ToolExecutor
	info         ServerInfo
	instructions string
	logger       zerolog.Logger
}

// MCPConfig configures an MCPHandler.
type MCPConfig struct {
	Executor     *toolexecutor.ToolExecutor
	Info         ServerInfo
	Instructions string
	Logger       zerolog.Logger
}

// NewMCPHandler creates the MCP method set.
func NewMCPHandler(cfg MCPConfig) (*MCPHandler, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Info.Name == "" {
		cfg.Info.Name = "mcp-standards"
	}
	return &MCPHandler{
		executor:     cfg.Executor,
		info:         cfg.Info,
		instructions: cfg.Instructions,
		logger:       cfg.Logger,
	}, nil
}

// Register installs the MCP methods on router.
func (h *MCPHandler) Register(router *RPCRouter) error {
	methods := map[string]RequestHandler{
		MethodInitialize:  h.initialize,
		MethodInitialized: h.initialized,
		MethodPing:        h.ping,
		MethodToolsList:   h.toolsList,
		MethodToolsCall:   h.toolsCall,
	}
	for name, handler := range methods {
		if err := router.RegisterMethod(name, handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

func (h *MCPHandler) initialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &RPCError{Code: InvalidParams, Message: "invalid initialize params", Data: err.Error()}
		}
	}

	logger := tracing.LoggerFromContext(ctx, h.logger)
	logger.Info().
		Str("client", req.ClientInfo.Name).
		Str("client_version", req.ClientInfo.Version).
		Str("requested_protocol", req.ProtocolVersion).
		Msg("MCP client initializing")

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		ServerInfo:   h.info,
		Instructions: h.instructions,
	}, nil
}

func (h *MCPHandler) initialized(ctx context.Context, params json.RawMessage) (interface{}, error) {
	logger := tracing.LoggerFromContext(ctx, h.logger)
	logger.Debug().Msg("MCP client initialized")
	return map[string]interface{}{}, nil
}

func (h *MCPHandler) ping(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return map[string]interface{}{}, nil
}

func (h *MCPHandler) toolsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	defs := h.executor.Definitions()
	tools := make([]Tool, 0, len(defs))
	for _, def := range defs {
		schema, ok := h.executor.InputSchema(def.Name)
		if !ok {
			schema = toolexecutor.BuildInputSchema(def)
		}
		tools = append(tools, Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return ToolsListResult{Tools: tools}, nil
}

func (h *MCPHandler) toolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var call ToolCallParams
	if len(params) == 0 {
		return nil, NewRPCError(InvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "invalid tools/call params", Data: err.Error()}
	}
	if call.Name == "" {
		return nil, NewRPCError(InvalidParams, "missing tool name")
	}
	if h.executor.GetTool(call.Name) == nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	result := h.executor.Execute(ctx, call.Name, call.Arguments, &toolexecutor.ExecutionContext{
		ClientID:  tracing.GetClientID(ctx),
		Transport: tracing.GetTransport(ctx),
	})

	return ToolCallResultFrom(result), nil
}

// ToolCallResultFrom renders an executor result as MCP text content.
func ToolCallResultFrom(result toolexecutor.ToolResult) ToolCallResult {
	var payload interface{}
	if result.Success {
		payload = result.Output
	} else {
		payload = map[string]interface{}{
			"error": result.Error,
			"type":  result.ErrorType(),
		}
	}

	text, err := json.Marshal(payload)
	if err != nil {
		text = []byte(fmt.Sprintf(`{"error":%q,"type":"internal"}`, err.Error()))
		return ToolCallResult{Content: []Content{{Type: "text", Text: string(text)}}, IsError: true}
	}

	return ToolCallResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: !result.Success,
	}
}
