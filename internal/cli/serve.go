package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/embedding"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/gateway"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tools over MCP",
	Long: `Serve remember, recall, list_memories and the other memory tools over the
Model Context Protocol.

By default the server speaks JSON-RPC on stdin/stdout, which is how MCP
clients launch it. With --listen it also accepts WebSocket connections on
/ws and single requests on POST /rpc, and exposes /metrics and /healthz.
Logs always go to stderr and the log file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "also serve WebSocket/HTTP on this address, e.g. 127.0.0.1:8765")
	serveCmd.Flags().Bool("no-stdio", false, "do not read requests from stdin")
	rootCmd.AddCommand(serveCmd)
}

type serveOptions struct {
	stdio  bool
	listen string
	in     io.Reader
	out    io.Writer

	// ready, when set, receives the bound network address once the
	// WebSocket/HTTP server is listening.
	ready chan<- string
}

func runServe(cmd *cobra.Command, args []string) error {
	noStdio, _ := cmd.Flags().GetBool("no-stdio")
	listen, _ := cmd.Flags().GetString("listen")

	app, err := newApp(cmd.Context(), appOptions{console: true})
	if err != nil {
		return err
	}
	defer app.Close()

	if listen == "" {
		listen = app.Config.Server.Listen
	}
	if noStdio && listen == "" {
		return errors.New("nothing to serve: --no-stdio needs --listen or server.listen")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, app, serveOptions{
		stdio:  !noStdio,
		listen: listen,
		in:     os.Stdin,
		out:    os.Stdout,
	})
}

// serve runs every configured transport until ctx is cancelled or stdin
// closes, then shuts them down.
func serve(ctx context.Context, app *App, opts serveOptions) error {
	cfg := app.Config
	log := app.Logger

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Version:     version,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Load a remote or model-backed provider ahead of the first request.
	// Failure is sticky and surfaces as embedding errors on the tools.
	g.Go(func() error {
		if err := embedding.Warm(gctx, app.Provider); err != nil {
			log.Warn().Err(err).Str("provider", app.Provider.Name()).Msg("Embedding provider failed to initialize")
		}
		return nil
	})

	if opts.stdio {
		stdio := gateway.NewStdioServer(app.Router, cfg.Server.MaxConcurrent, log)
		g.Go(func() error {
			// stdin closing means the client is gone
			defer cancel()
			return stdio.Serve(gctx, opts.in, opts.out)
		})
	}

	if opts.listen != "" {
		server, err := gateway.NewServer(gateway.Config{
			Addr:              opts.listen,
			SharedSecret:      cfg.Server.SharedSecret,
			Router:            app.Router,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			MaxConcurrent:     cfg.Server.MaxConcurrent,
			Logger:            log,
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
		if opts.ready != nil {
			opts.ready <- server.Addr()
		}

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen != opts.listen {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           observability.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Listen).Msg("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if !opts.stdio {
		// Keep the group alive until a signal arrives.
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	log.Info().
		Bool("stdio", opts.stdio).
		Str("listen", opts.listen).
		Int("memories", app.Store.Count(nil)).
		Msg("mcp-standards ready")

	err := g.Wait()
	log.Info().Msg("mcp-standards stopped")
	return err
}
