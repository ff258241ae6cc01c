package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	maxRequestBytes   = 1 << 20
	readHeaderTimeout = 10 * time.Second

	// TraceHeader lets HTTP callers supply their own trace id. The id used
	// is echoed back on the response.
	TraceHeader = "X-Trace-Id"
)

// Config holds server configuration
type Config struct {
	Addr              string // e.g. ":8765"
	SharedSecret      string // optional; when set clients must authenticate
	Router            *RPCRouter
	RequestsPerMinute int
	MaxConcurrent     int
	Logger            zerolog.Logger
}

// Server serves MCP over WebSocket (/ws) and single-shot HTTP (/rpc), plus
// /healthz and /metrics.
type Server struct {
	cfg      Config
	auth     authenticator
	sessions *sessionSet
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	httpSrv  *http.Server
	ln       net.Listener
	draining atomic.Bool
	inflight sync.WaitGroup
}

// NewServer validates cfg and builds a Server. Nothing listens until Start.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Addr == "":
		return nil, errors.New("listen address is required")
	case cfg.Router == nil:
		return nil, errors.New("router is required")
	}

	return &Server{
		cfg:      cfg,
		auth:     newAuthenticator(cfg.SharedSecret),
		sessions: newSessionSet(),
		logger:   cfg.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			// Browsers are not expected; the shared secret gates access.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWebSocket)
	mux.HandleFunc("/rpc", s.serveRPC)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("MCP server listening")
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("MCP server stopped unexpectedly")
		}
	}()
	return nil
}

// Addr returns the bound address, which differs from the configured one
// when listening on port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Stop refuses new work, waits for in-flight requests until ctx expires,
// then closes every session and the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.draining.Store(true)

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached with requests still running")
	}

	for _, sess := range s.sessions.list() {
		_ = sess.conn.Close()
	}
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info().Msg("MCP server stopped")
	return nil
}

// GetConnectedClients lists the open WebSocket sessions.
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.sessions.infos()
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	id, err := gonanoid.New()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate client id")
		_ = conn.Close()
		return
	}

	sess := newSession(id, conn, r.RemoteAddr, NewClientRateLimiter(s.cfg.RequestsPerMinute, s.cfg.MaxConcurrent))
	log := s.logger.With().Str("client_id", id).Logger()

	if s.auth.required() {
		challenge, err := newChallenge()
		if err == nil {
			sess.challenge = challenge
			err = sess.writeJSON(AuthChallenge{Event: EventAuthChallenge, Challenge: challenge})
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to send auth challenge")
			_ = conn.Close()
			return
		}
	} else {
		sess.authed.Store(true)
	}

	s.sessions.add(sess)
	log.Info().Str("remote", r.RemoteAddr).Msg("Client connected")

	go s.readLoop(sess, log)
}

func (s *Server) readLoop(sess *session, log zerolog.Logger) {
	defer func() {
		_ = sess.conn.Close()
		s.sessions.remove(sess.id)
		log.Info().Msg("Client disconnected")
	}()

	for {
		_, msg, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		sess.touch()
		if !s.dispatch(sess, msg, log) {
			return
		}
	}
}

// dispatch handles one inbound frame. It returns false when the session
// should be dropped.
func (s *Server) dispatch(sess *session, msg []byte, log zerolog.Logger) bool {
	var answer AuthResponse
	if json.Unmarshal(msg, &answer) == nil && answer.Method == MethodAuthResponse {
		result := s.auth.answer(sess, answer.Signature)
		if err := sess.writeJSON(result); err != nil {
			log.Warn().Err(err).Msg("Failed to send auth result")
			return false
		}
		if result.Success {
			log.Info().Msg("Client authenticated")
			return true
		}
		log.Warn().Str("reason", result.Message).Msg("Authentication failed")
		return sess.failures < maxAuthAttempts
	}

	req, err := s.cfg.Router.ParseRequest(msg)
	if err != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		s.reply(sess, errorResponse(id, asRPCError(err, ParseError)), log)
		return true
	}

	if !sess.authed.Load() {
		s.reply(sess, errorResponse(req.ID, NewRPCError(AuthenticationRequired, "Authentication required")), log)
		return true
	}

	ok, code, reason := sess.limiter.Acquire()
	if !ok {
		if !req.IsNotification() {
			s.reply(sess, errorResponse(req.ID, NewRPCError(code, reason)), log)
		}
		return true
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer sess.limiter.Release()

		ctx := tracing.NewRequestContext(context.Background(), TransportWebSocket, sess.id)
		if resp := s.cfg.Router.RouteRequest(ctx, req); resp != nil {
			s.reply(sess, resp, log)
		}
	}()
	return true
}

func (s *Server) reply(sess *session, resp *RPCResponse, log zerolog.Logger) {
	if err := sess.writeJSON(resp); err != nil {
		log.Warn().Err(err).Msg("Failed to send response")
	}
}

// serveRPC answers one JSON-RPC message per POST. Notifications get 202.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method != http.MethodPost:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	case s.draining.Load():
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	case !s.auth.validSecret(r.Header.Get(SecretHeader)):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	s.inflight.Add(1)
	defer s.inflight.Done()

	ctx := tracing.NewRequestContext(r.Context(), TransportHTTP, r.RemoteAddr)
	if traceID := r.Header.Get(TraceHeader); traceID != "" {
		ctx = tracing.WithTraceID(ctx, traceID)
	}

	resp := s.cfg.Router.HandleMessage(ctx, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(TraceHeader, tracing.GetTraceID(ctx))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Msg("Failed to encode RPC response")
	}
}
