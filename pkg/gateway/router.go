package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "mcp-standards.gateway"

// RPCRouter maps JSON-RPC method names to handlers. Every transport
// funnels its messages through one router.
type RPCRouter struct {
	mu       sync.RWMutex
	handlers map[string]RequestHandler
	logger   zerolog.Logger
}

func NewRPCRouter(logger zerolog.Logger) *RPCRouter {
	observability.EnsureRegistered()
	return &RPCRouter{handlers: map[string]RequestHandler{}, logger: logger}
}

// RegisterMethod installs handler for name, replacing any previous one.
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("method %q: handler cannot be nil", name)
	}
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
	return nil
}

func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	delete(r.handlers, name)
	r.mu.Unlock()
}

func (r *RPCRouter) HasMethod(name string) bool {
	return r.lookup(name) != nil
}

// GetMethods returns the registered method names in sorted order.
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *RPCRouter) lookup(name string) RequestHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// ParseRequest decodes one message. A missing "jsonrpc" member is accepted
// and filled in; any other version is rejected. On an *RPCError with code
// InvalidRequest the returned request still carries the id.
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	req := &RPCRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}

	switch {
	case req.JSONRPC == "":
		req.JSONRPC = JSONRPCVersion
	case req.JSONRPC != JSONRPCVersion:
		return req, NewRPCError(InvalidRequest, fmt.Sprintf("Invalid request: unsupported jsonrpc version %q", req.JSONRPC))
	}
	if req.Method == "" {
		return req, NewRPCError(InvalidRequest, "Invalid request: missing method field")
	}
	return req, nil
}

// HandleMessage parses one raw message and routes it. It returns nil when
// no response must be written (notifications and blank lines).
func (r *RPCRouter) HandleMessage(ctx context.Context, data []byte) *RPCResponse {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	req, err := r.ParseRequest(data)
	if err != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return errorResponse(id, asRPCError(err, ParseError))
	}
	return r.RouteRequest(ctx, req)
}

// RouteRequest runs the handler for req inside an "rpc.<method>" span.
// Handler errors that are not *RPCError become InternalError.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse(nil, NewRPCError(InvalidRequest, "invalid request"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !req.IsNotification() {
		ctx = tracing.WithRequestID(ctx, req.RequestID())
	}

	start := time.Now()
	transport := tracing.GetTransport(ctx)
	ctx, span := tracing.StartSpan(ctx, tracerName, "rpc."+req.Method,
		attribute.String("rpc.method", req.Method),
		attribute.String("transport", transport),
	)
	defer span.End()
	log := tracing.LoggerFromContext(ctx, r.logger).With().Str("method", req.Method).Logger()

	handler := r.lookup(req.Method)
	if handler == nil {
		observability.RecordRPCRequest(req.Method, transport, time.Since(start), false)
		span.SetStatus(codes.Error, "method not found")
		if req.IsNotification() {
			log.Debug().Msg("Ignoring unknown notification")
			return nil
		}
		return errorResponse(req.ID, NewRPCError(MethodNotFound, "Method not found: "+req.Method))
	}

	result, err := handler(ctx, req.Params)
	elapsed := time.Since(start)
	observability.RecordRPCRequest(req.Method, transport, elapsed, err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Msg("RPC request failed")
	} else {
		log.Debug().Dur("duration", elapsed).Msg("RPC request handled")
	}

	switch {
	case req.IsNotification():
		return nil
	case err != nil:
		return errorResponse(req.ID, asRPCError(err, InternalError))
	default:
		return &RPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	}
}

// asRPCError unwraps an *RPCError from err or wraps err with code.
func asRPCError(err error, code int) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewRPCError(code, err.Error())
}

func errorResponse(id json.RawMessage, err *RPCError) *RPCResponse {
	return &RPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}
