package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p map[string]interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{"echo": p["input"]}, nil
}

func TestRPCRouter_RegisterMethod(t *testing.T) {
	router := NewRPCRouter(zerolog.Nop())

	t.Run("should register method successfully", func(t *testing.T) {
		err := router.RegisterMethod("test.method", echoHandler)
		assert.NoError(t, err)
		assert.True(t, router.HasMethod("test.method"))
	})

	t.Run("should reject nil handler", func(t *testing.T) {
		err := router.RegisterMethod("test.nil", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "handler cannot be nil")
	})

	t.Run("should unregister method", func(t *testing.T) {
		router.UnregisterMethod("test.method")
		assert.False(t, router.HasMethod("test.method"))
		router.UnregisterMethod("non.existent")
	})
}

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter(zerolog.Nop())

	t.Run("should parse valid request", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{"key":"value"}}`))
		require.NoError(t, err)
		assert.Equal(t, "1", string(req.ID))
		assert.Equal(t, "ping", req.Method)
		assert.JSONEq(t, `{"key":"value"}`, string(req.Params))
		assert.False(t, req.IsNotification())
	})

	t.Run("should default jsonrpc version", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"id":"a","method":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)
	})

	t.Run("should recognise notifications", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.NoError(t, err)
		assert.True(t, req.IsNotification())

		req, err = router.ParseRequest([]byte(`{"jsonrpc":"2.0","id":null,"method":"x"}`))
		require.NoError(t, err)
		assert.True(t, req.IsNotification())
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{invalid json}`))
		require.Error(t, err)

		rpcErr, ok := err.(*RPCError)
		require.True(t, ok)
		assert.Equal(t, ParseError, rpcErr.Code)
	})

	t.Run("should reject request without method", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"jsonrpc":"2.0","id":7}`))
		require.Error(t, err)
		assert.Equal(t, "7", string(req.ID))

		rpcErr, ok := err.(*RPCError)
		require.True(t, ok)
		assert.Equal(t, InvalidRequest, rpcErr.Code)
		assert.Contains(t, rpcErr.Message, "missing method")
	})

	t.Run("should reject other protocol versions", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`))
		require.Error(t, err)
		assert.Equal(t, InvalidRequest, err.(*RPCError).Code)
	})
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter(zerolog.Nop())
	require.NoError(t, router.RegisterMethod("test.echo", echoHandler))
	require.NoError(t, router.RegisterMethod("test.error", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, fmt.Errorf("handler error")
	}))
	require.NoError(t, router.RegisterMethod("test.rpcerror", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, NewRPCError(InvalidParams, "bad params")
	}))
	require.NoError(t, router.RegisterMethod("test.request", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]string{
			"request_id": tracing.GetRequestID(ctx),
			"transport":  tracing.GetTransport(ctx),
		}, nil
	}))

	ctx := tracing.NewRequestContext(context.Background(), TransportStdio, "")

	t.Run("should route to registered handler", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{
			ID:     json.RawMessage(`"1"`),
			Method: "test.echo",
			Params: json.RawMessage(`{"input":"hello"}`),
		})
		require.NotNil(t, resp)
		assert.Equal(t, `"1"`, string(resp.ID))
		assert.Nil(t, resp.Error)
		assert.Equal(t, "hello", resp.Result.(map[string]interface{})["echo"])
	})

	t.Run("should return error for unknown method", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: json.RawMessage(`2`), Method: "unknown.method"})
		require.NotNil(t, resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, MethodNotFound, resp.Error.Code)
	})

	t.Run("should map plain errors to internal error", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: json.RawMessage(`3`), Method: "test.error"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InternalError, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "handler error")
	})

	t.Run("should keep RPC error codes", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: json.RawMessage(`4`), Method: "test.rpcerror"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("should not answer notifications", func(t *testing.T) {
		assert.Nil(t, router.RouteRequest(ctx, &RPCRequest{Method: "test.echo"}))
		assert.Nil(t, router.RouteRequest(ctx, &RPCRequest{Method: "unknown.notification"}))
		assert.Nil(t, router.RouteRequest(ctx, &RPCRequest{Method: "test.error"}))
	})

	t.Run("should carry request id and transport into handler context", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: json.RawMessage(`"req-9"`), Method: "test.request"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]string)
		assert.Equal(t, "req-9", result["request_id"])
		assert.Equal(t, TransportStdio, result["transport"])
	})
}

func TestRPCRouter_HandleMessage(t *testing.T) {
	router := NewRPCRouter(zerolog.Nop())
	require.NoError(t, router.RegisterMethod("test.echo", echoHandler))

	t.Run("parse error has null id", func(t *testing.T) {
		resp := router.HandleMessage(context.Background(), []byte(`{"id":`))
		require.NotNil(t, resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ParseError, resp.Error.Code)

		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"id":null`)
	})

	t.Run("blank line is ignored", func(t *testing.T) {
		assert.Nil(t, router.HandleMessage(context.Background(), []byte("  \n")))
	})

	t.Run("round trip", func(t *testing.T) {
		resp := router.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":5,"method":"test.echo","params":{"input":"x"}}`))
		require.NotNil(t, resp)
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":5,"result":{"echo":"x"}}`, string(data))
	})
}

func TestRPCRouter_GetMethods(t *testing.T) {
	router := NewRPCRouter(zerolog.Nop())
	assert.Empty(t, router.GetMethods())

	for _, name := range []string{"method3", "method1", "method2"} {
		require.NoError(t, router.RegisterMethod(name, echoHandler))
	}
	assert.Equal(t, []string{"method1", "method2", "method3"}, router.GetMethods())
}
