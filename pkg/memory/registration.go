package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
)

// ToolExecutor interface for registering tools
// This avoids circular dependency with pkg/toolexecutor
type ToolExecutor interface {
	RegisterTool(def toolexecutor.ToolDefinition) error
}

// ToolsConfig holds what the memory tools need at call time.
type ToolsConfig struct {
	Store        *Store
	Detector     *correction.Detector // Optional, learn_from_text is skipped when nil
	ProviderName string
}

// RegisterMemoryTools registers all memory tools with the tool executor
func RegisterMemoryTools(executor ToolExecutor, cfg ToolsConfig) error {
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	store := cfg.Store

	tools := []toolexecutor.ToolDefinition{
		{
			Name: "remember",
			Description: "Store a user preference, correction or workflow rule in semantic memory. " +
				"Use when the user shares a preference or corrects a suggestion, " +
				"e.g. 'use uv not pip', 'prefer conventional commits'.",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "content",
					Type:        "string",
					Description: "The preference or correction to remember",
					Required:    true,
					Pattern:     `\S`,
				},
				{
					Name:        "category",
					Type:        "string",
					Description: "Category: python, git, docker, or general",
					Enum:        CategoryNames(),
					Default:     string(CategoryGeneral),
				},
				{
					Name:        "importance",
					Type:        "integer",
					Description: "Importance from 1 (low) to 10 (high)",
					Default:     DefaultImportance,
					Minimum:     toolexecutor.Bound(MinImportance),
					Maximum:     toolexecutor.Bound(MaxImportance),
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[RememberParams](params)
				if err != nil {
					return nil, err
				}
				return Remember(ctx, store, p)
			},
		},
		{
			Name: "recall",
			Description: "Search stored preferences by meaning. Use before recommending tools, " +
				"package managers, git workflows or docker setups.",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "query",
					Type:        "string",
					Description: "Natural language query, e.g. 'python package manager'",
					Required:    true,
					Pattern:     `\S`,
				},
				{
					Name:        "category",
					Type:        "string",
					Description: "Optional category filter",
					Enum:        CategoryNames(),
				},
				{
					Name:        "limit",
					Type:        "integer",
					Description: "Maximum number of results",
					Default:     DefaultSearchLimit,
					Minimum:     toolexecutor.Bound(1),
					Maximum:     toolexecutor.Bound(MaxRecallLimit),
				},
				{
					Name:        "min_score",
					Type:        "number",
					Description: "Minimum cosine similarity",
					Default:     0.0,
					Minimum:     toolexecutor.Bound(-1),
					Maximum:     toolexecutor.Bound(1),
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[RecallParams](params)
				if err != nil {
					return nil, err
				}
				return Recall(ctx, store, p)
			},
		},
		{
			Name:        "list_memories",
			Description: "List stored preferences, most important and most recent first",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "category",
					Type:        "string",
					Description: "Optional category filter",
					Enum:        CategoryNames(),
				},
				{
					Name:        "limit",
					Type:        "integer",
					Description: "Page size",
					Default:     DefaultListLimit,
					Minimum:     toolexecutor.Bound(1),
					Maximum:     toolexecutor.Bound(MaxListLimit),
				},
				{
					Name:        "offset",
					Type:        "integer",
					Description: "Number of records to skip",
					Default:     0,
					Minimum:     toolexecutor.Bound(0),
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[ListMemoriesParams](params)
				if err != nil {
					return nil, err
				}
				return ListMemories(ctx, store, p)
			},
		},
		{
			Name:        "get_memory",
			Description: "Fetch a single stored preference by id",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "id",
					Type:        "string",
					Description: "Memory id",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[GetMemoryParams](params)
				if err != nil {
					return nil, err
				}
				return GetMemory(ctx, store, p)
			},
		},
		{
			Name:        "forget",
			Description: "Delete a stored preference by id",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "id",
					Type:        "string",
					Description: "Memory id",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[ForgetParams](params)
				if err != nil {
					return nil, err
				}
				return Forget(ctx, store, p)
			},
		},
		{
			Name:        "list_categories",
			Description: "List memory categories with their record counts",
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return ListCategories(ctx, store)
			},
		},
		{
			Name:        "memory_stats",
			Description: "Get memory statistics",
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return MemoryStats(ctx, store, cfg.ProviderName, cfg.Detector)
			},
		},
	}

	if cfg.Detector != nil {
		detector := cfg.Detector
		tools = append(tools, toolexecutor.ToolDefinition{
			Name: "learn_from_text",
			Description: "Detect a correction ('use X not Y', 'prefer X over Y') or preference " +
				"('always X before Y') in free text and remember it",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "text",
					Type:        "string",
					Description: "Text that may contain a correction or preference",
					Required:    true,
					Pattern:     `\S`,
				},
				{
					Name:        "importance",
					Type:        "integer",
					Description: "Importance assigned to a detected preference",
					Default:     DefaultImportance,
					Minimum:     toolexecutor.Bound(MinImportance),
					Maximum:     toolexecutor.Bound(MaxImportance),
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				p, err := decodeParams[LearnParams](params)
				if err != nil {
					return nil, err
				}
				return LearnFromText(ctx, store, detector, p)
			},
		})
	}

	// Register each tool
	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}

	return nil
}

func decodeParams[T any](params map[string]interface{}) (T, error) {
	var out T
	jsonData, err := json.Marshal(params)
	if err != nil {
		return out, fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return out, &ValidationError{Reason: fmt.Sprintf("failed to decode params: %v", err)}
	}
	return out, nil
}
