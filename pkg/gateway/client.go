package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrClientClosed is returned for calls made after the connection closed.
var ErrClientClosed = errors.New("connection closed")

type clientResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RemoteClient calls a Server over WebSocket.
type RemoteClient struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan *clientResponse
	closed  chan struct{}
	err     error
}

// DialConfig configures Dial.
type DialConfig struct {
	URL          string // ws://host:port/ws
	SharedSecret string
	Header       http.Header
	Logger       zerolog.Logger
}

// Dial connects and, when a secret is given, completes the challenge
// handshake before returning.
func Dial(ctx context.Context, cfg DialConfig) (*RemoteClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	if cfg.SharedSecret != "" {
		if err := authenticate(conn, cfg.SharedSecret); err != nil {
			conn.Close()
			return nil, err
		}
	}

	c := &RemoteClient{
		conn:    conn,
		logger:  cfg.Logger,
		pending: make(map[string]chan *clientResponse),
		closed:  make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

func authenticate(conn *websocket.Conn, secret string) error {
	var challenge AuthChallenge
	if err := conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("failed to read auth challenge: %w", err)
	}
	if challenge.Event != EventAuthChallenge {
		return fmt.Errorf("expected %s, got %q", EventAuthChallenge, challenge.Event)
	}

	if err := conn.WriteJSON(AuthResponse{
		Method:    MethodAuthResponse,
		Signature: SignChallenge(secret, challenge.Challenge),
	}); err != nil {
		return fmt.Errorf("failed to send auth response: %w", err)
	}

	var result AuthResult
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("failed to read auth result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("authentication failed: %s", result.Message)
	}
	return nil
}

// Call sends a request and waits for its response. JSON-RPC errors are
// returned as *RPCError.
func (c *RemoteClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}
	rawID, _ := json.Marshal(id)

	var rawParams json.RawMessage
	if params != nil {
		if rawParams, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
	}

	ch := make(chan *clientResponse, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := RPCRequest{JSONRPC: JSONRPCVersion, ID: rawID, Method: method, Params: rawParams}
	c.writeMu.Lock()
	err = c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-c.closed:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Initialize performs the MCP handshake.
func (c *RemoteClient) Initialize(ctx context.Context, clientName, clientVersion string) (*InitializeResult, error) {
	raw, err := c.Call(ctx, MethodInitialize, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]string{"name": clientName, "version": clientVersion},
	})
	if err != nil {
		return nil, err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid initialize result: %w", err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteJSON(RPCRequest{JSONRPC: JSONRPCVersion, Method: MethodInitialized})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send initialized notification: %w", err)
	}

	return &result, nil
}

// ListTools returns the server's tools.
func (c *RemoteClient) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.Call(ctx, MethodToolsList, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var result ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool.
func (c *RemoteClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolCallResult, error) {
	raw, err := c.Call(ctx, MethodToolsCall, ToolCallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid tools/call result: %w", err)
	}
	return &result, nil
}

// Close closes the connection.
func (c *RemoteClient) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *RemoteClient) readLoop() {
	defer close(c.closed)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = ErrClientClosed
			c.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("Connection closed")
			}
			return
		}

		var resp clientResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring unparseable message")
			continue
		}

		var id string
		if err := json.Unmarshal(resp.ID, &id); err != nil {
			c.logger.Debug().RawJSON("message", message).Msg("Ignoring message without request id")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[id]
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}
