package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/airmcp-com/mcp-standards-sub000/internal/config"
	"github.com/airmcp-com/mcp-standards-sub000/internal/logger"
	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/embedding"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/gateway"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/persistence"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

const (
	transportCLI  = "cli"
	auditFileName = "audit.log"

	serverInstructions = "Personal coding standards memory. Call recall before recommending " +
		"package managers, git workflows or docker setups, and remember when the user " +
		"states a preference or corrects a suggestion."
)

// App is the wired memory service shared by every subcommand.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Provider embedding.Provider
	Snapshot memory.Snapshotter
	Store    *memory.Store
	Detector *correction.Detector
	Executor *toolexecutor.ToolExecutor
	Router   *gateway.RPCRouter

	log     *logger.Logger
	closers []io.Closer
}

type appOptions struct {
	// console enables log output on stderr. One-shot commands keep the
	// terminal clean unless --log-level was given.
	console bool
}

// loadConfig reads the config file named by --config and applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// newApp builds the service: logger, embedding provider, snapshot backend,
// store, tool executor and MCP router.
func newApp(ctx context.Context, opts appOptions) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	l, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   opts.console || rootCmd.PersistentFlags().Changed("log-level"),
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: l.GetZerolog(),
		log:    l,
	}

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, auditFileName)); err != nil {
		a.Logger.Warn().Err(err).Msg("Audit log unavailable")
	}

	provider, err := embedding.New(embedding.Config{
		Provider:          cfg.Embedding.Provider,
		Dimension:         cfg.Embedding.Dimension,
		CacheSize:         cfg.Embedding.CacheSize,
		Model:             cfg.Embedding.Model,
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		ModelPath:         cfg.Embedding.ModelPath,
		TokenizerPath:     cfg.Embedding.TokenizerPath,
		SharedLibraryPath: cfg.Embedding.LibraryPath,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.Provider = provider

	snapshot, err := a.openSnapshot()
	if err != nil {
		return err
	}
	a.Snapshot = snapshot

	store, err := memory.NewStore(ctx, memory.Config{
		Embedder:    provider,
		Snapshotter: snapshot,
		Logger:      a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	a.Store = store

	a.Executor = toolexecutor.New()
	a.Executor.SetTimeout(cfg.Server.ToolTimeout)

	a.Detector = correction.NewDetector()
	if err := memory.RegisterMemoryTools(a.Executor, memory.ToolsConfig{
		Store:        store,
		Detector:     a.Detector,
		ProviderName: provider.Name(),
	}); err != nil {
		return err
	}

	a.Router = gateway.NewRPCRouter(a.Logger)
	handler, err := gateway.NewMCPHandler(gateway.MCPConfig{
		Executor:     a.Executor,
		Info:         gateway.ServerInfo{Name: "mcp-standards", Version: version},
		Instructions: serverInstructions,
		Logger:       a.Logger,
	})
	if err != nil {
		return err
	}
	return handler.Register(a.Router)
}

func (a *App) openSnapshot() (memory.Snapshotter, error) {
	cfg := a.Config.Storage

	switch cfg.Format {
	case config.FormatSQLite:
		db, err := persistence.NewSQLite(cfg.Path, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite snapshot: %w", err)
		}
		a.closers = append(a.closers, db)
		return db, nil
	default:
		file, err := persistence.NewJSONFile(persistence.JSONConfig{
			Path:         cfg.Path,
			AtomicWrites: cfg.AtomicWrites,
			Logger:       a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open json snapshot: %w", err)
		}
		return file, nil
	}
}

// Close releases the provider, snapshot backend, audit log and log file.
func (a *App) Close() {
	if a.Provider != nil {
		if err := embedding.Close(a.Provider); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding provider")
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close snapshot backend")
		}
	}
	_ = observability.CloseAuditLogger()
	if a.log != nil {
		_ = a.log.Close()
	}
}

// ToolError is a failed tool call made from the command line.
type ToolError struct {
	Tool    string
	Type    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Tool, e.Type, e.Message)
}

// callTool runs a tool through the executor, exactly as an MCP client would,
// and decodes its output into out.
func (a *App) callTool(ctx context.Context, tool string, params map[string]interface{}, out interface{}) error {
	ctx = tracing.NewRequestContext(ctx, transportCLI, transportCLI)

	result := a.Executor.Execute(ctx, tool, params, &toolexecutor.ExecutionContext{
		ClientID:  transportCLI,
		Transport: transportCLI,
	})
	if !result.Success {
		return &ToolError{Tool: tool, Type: result.ErrorType(), Message: result.Error}
	}
	if out == nil {
		return nil
	}

	data, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("failed to encode %s output: %w", tool, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s output: %w", tool, err)
	}
	return nil
}

// withApp builds the app for a one-shot command and closes it afterwards.
func withApp(ctx context.Context, fn func(*App) error) error {
	app, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
