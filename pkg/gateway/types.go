package gateway

import (
	"context"
	"encoding/json"
	"time"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// Transport names used in logs, metrics and trace context.
const (
	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
	TransportHTTP      = "http"
)

// RPCRequest represents a JSON-RPC 2.0 request or notification
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *RPCRequest) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// RequestID renders the id for logs: strings unquoted, numbers as written.
func (r *RPCRequest) RequestID() string {
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return string(r.ID)
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// NewRPCError creates an RPC error
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// RequestHandler handles one RPC method. params is the raw "params" member
// and may be empty.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// RPC error codes
const (
	ParseError             = -32700
	InvalidRequest         = -32600
	MethodNotFound         = -32601
	InvalidParams          = -32602
	InternalError          = -32603
	AuthenticationRequired = -32001
	RateLimitExceeded      = -32005
	TooManyConcurrent      = -32006
)

// AuthChallenge is sent to a WebSocket client when a shared secret is set.
type AuthChallenge struct {
	Event     string `json:"event"`
	Challenge string `json:"challenge"`
}

// AuthResponse is the client's signed answer to a challenge.
type AuthResponse struct {
	Method    string `json:"method"`
	Signature string `json:"signature"`
}

// AuthResult reports the outcome of an authentication attempt.
type AuthResult struct {
	Event   string `json:"event"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// ClientInfo describes a connected WebSocket client.
type ClientInfo struct {
	ID            string    `json:"id"`
	Transport     string    `json:"transport"`
	Authenticated bool      `json:"authenticated"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastActivity  time.Time `json:"lastActivity"`
	IPAddress     string    `json:"ipAddress"`
	Idle          bool      `json:"idle"`
}
