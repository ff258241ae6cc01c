package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent bounds in-flight requests per client or stream.
const DefaultMaxConcurrent = 10

// StdioServer serves newline-delimited JSON-RPC over a reader/writer pair,
// normally stdin and stdout.
type StdioServer struct {
	router        *RPCRouter
	maxConcurrent int
	logger        zerolog.Logger

	writeMu sync.Mutex
}

// NewStdioServer creates a stdio server. Non-positive maxConcurrent uses
// DefaultMaxConcurrent.
func NewStdioServer(router *RPCRouter, maxConcurrent int, logger zerolog.Logger) *StdioServer {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &StdioServer{
		router:        router,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Serve reads requests until in reaches EOF or ctx is cancelled, then waits
// for in-flight requests to finish. Each request runs in its own goroutine;
// responses may be written out of order.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				select {
				case lines <- trimmed:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	observability.SetActiveConnections(TransportStdio, 1)
	defer observability.SetActiveConnections(TransportStdio, 0)
	s.logger.Info().Int("max_concurrent", s.maxConcurrent).Msg("Serving MCP over stdio")

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			g.Go(func() error {
				s.handle(ctx, line, out)
				return nil
			})
		}
	}

	_ = g.Wait()
	s.logger.Info().Msg("Stdio stream closed")

	select {
	case err := <-readErr:
		return fmt.Errorf("failed to read stdin: %w", err)
	default:
		return nil
	}
}

func (s *StdioServer) handle(ctx context.Context, line []byte, out io.Writer) {
	ctx = tracing.NewRequestContext(ctx, TransportStdio, TransportStdio)

	resp := s.router.HandleMessage(ctx, line)
	if resp == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
		data, _ = json.Marshal(errorResponse(resp.ID, NewRPCError(InternalError, "failed to encode response")))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := out.Write(append(data, '\n')); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
