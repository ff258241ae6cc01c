package toolexecutor

import (
	"context"
	"time"
)

// Error types reported in ToolResult.Metadata["error_type"].
const (
	ErrorTypeValidation = "validation"
	ErrorTypeEmbedding  = "embedding"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeTimeout    = "timeout"
	ErrorTypeInternal   = "internal"
)

// TypedError lets handler errors choose their own error_type.
type TypedError interface {
	error
	ErrorType() string
}

// ToolParameter describes one named argument. Type is a JSON Schema type.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Minimum     *float64    `json:"minimum,omitempty"`
	Maximum     *float64    `json:"maximum,omitempty"`
	Pattern     string      `json:"pattern,omitempty"`
}

// Bound returns a pointer for ToolParameter.Minimum and Maximum.
func Bound(v float64) *float64 {
	return &v
}

// ToolHandler runs a tool. params has already passed schema validation.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ExecutionContext carries per-call caller information. A non-zero Timeout
// overrides the executor default.
type ExecutionContext struct {
	ClientID  string
	Transport string
	Timeout   time.Duration
}

// ToolResult is the outcome of Execute. Failed results set Error and
// Metadata["error_type"]; every result sets Metadata["duration"] in ms.
type ToolResult struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorType returns the classified error type of a failed result.
func (r ToolResult) ErrorType() string {
	if r.Success {
		return ""
	}
	t, _ := r.Metadata["error_type"].(string)
	return t
}
