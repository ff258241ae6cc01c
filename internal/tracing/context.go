package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the JSON-RPC request id
	RequestIDKey ContextKey = "request_id"
	// ClientIDKey is the context key for the connected client
	ClientIDKey ContextKey = "client_id"
	// TransportKey is the context key for the transport a request arrived on
	TransportKey ContextKey = "transport"
	// ToolKey is the context key for the executing tool name
	ToolKey ContextKey = "tool"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	ClientID  string
	Transport string
	Tool      string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithClientID adds a client ID to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

// WithTransport records which transport (stdio, websocket, http) served the request.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, TransportKey, transport)
}

// WithTool adds the executing tool name to the context
func WithTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, ToolKey, tool)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return stringValue(ctx, TraceIDKey) }

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }

// GetClientID retrieves the client ID from the context
func GetClientID(ctx context.Context) string { return stringValue(ctx, ClientIDKey) }

// GetTransport retrieves the transport name from the context
func GetTransport(ctx context.Context) string { return stringValue(ctx, TransportKey) }

// GetTool retrieves the tool name from the context
func GetTool(ctx context.Context) string { return stringValue(ctx, ToolKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		ClientID:  GetClientID(ctx),
		Transport: GetTransport(ctx),
		Tool:      GetTool(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.ClientID != "" {
		ctx = WithClientID(ctx, tc.ClientID)
	}
	if tc.Transport != "" {
		ctx = WithTransport(ctx, tc.Transport)
	}
	if tc.Tool != "" {
		ctx = WithTool(ctx, tc.Tool)
	}
	return ctx
}

// NewRequestContext creates a context for an incoming request with a fresh
// trace ID.
func NewRequestContext(ctx context.Context, transport, clientID string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	if transport != "" {
		ctx = WithTransport(ctx, transport)
	}
	if clientID != "" {
		ctx = WithClientID(ctx, clientID)
	}
	return ctx
}
