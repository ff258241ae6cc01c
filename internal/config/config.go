package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Storage formats.
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Embedding providers.
const (
	ProviderHashed = "hashed"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// Config represents the mcp-standards configuration
type Config struct {
	DataDir   string          `mapstructure:"data_dir" json:"data_dir"`
	Storage   StorageConfig   `mapstructure:"storage" json:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing" json:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
}

// StorageConfig selects where and how the memory snapshot is written
type StorageConfig struct {
	Path         string `mapstructure:"path" json:"path"`
	Format       string `mapstructure:"format" json:"format"`
	AtomicWrites bool   `mapstructure:"atomic_writes" json:"atomic_writes"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider" json:"provider"`
	Model         string `mapstructure:"model" json:"model"`
	Dimension     int    `mapstructure:"dimension" json:"dimension"`
	APIKey        string `mapstructure:"api_key" json:"api_key"`
	BaseURL       string `mapstructure:"base_url" json:"base_url"`
	ModelPath     string `mapstructure:"model_path" json:"model_path"`
	TokenizerPath string `mapstructure:"tokenizer_path" json:"tokenizer_path"`
	LibraryPath   string `mapstructure:"library_path" json:"library_path"`
	CacheSize     int64  `mapstructure:"cache_size" json:"cache_size"`
}

// ServerConfig configures the MCP transports
type ServerConfig struct {
	Listen            string        `mapstructure:"listen" json:"listen"` // empty means stdio only
	ToolTimeout       time.Duration `mapstructure:"tool_timeout" json:"tool_timeout"`
	MaxConcurrent     int           `mapstructure:"max_concurrent" json:"max_concurrent"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" json:"requests_per_minute"`
	SharedSecret      string        `mapstructure:"shared_secret" json:"shared_secret"`
}

// MetricsConfig configures the standalone Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" json:"listen"`
}

// TracingConfig configures OpenTelemetry
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	File      string `mapstructure:"file" json:"file"`
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`
	MaxSize   int    `mapstructure:"max_size" json:"max_size"`
	MaxAge    int    `mapstructure:"max_age" json:"max_age"`
	Compress  bool   `mapstructure:"compress" json:"compress"`
	Redaction bool   `mapstructure:"redaction" json:"redaction"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Format:       FormatJSON,
			AtomicWrites: true,
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderHashed,
			Model:     "text-embedding-3-small",
			Dimension: 384,
			CacheSize: 1000,
		},
		Server: ServerConfig{
			ToolTimeout:       30 * time.Second,
			MaxConcurrent:     10,
			RequestsPerMinute: 120,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "mcp-standards",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   10,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// SnapshotFileName is the default snapshot name for a storage format.
func SnapshotFileName(format string) string {
	if strings.EqualFold(format, FormatSQLite) {
		return "memories.db"
	}
	return "memories.json"
}

// String returns the config as indented JSON with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Embedding.APIKey = maskSecret(c.Embedding.APIKey)
	masked.Server.SharedSecret = maskSecret(c.Server.SharedSecret)

	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("error marshaling config: %v", err)
	}
	return string(data)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Validate checks the configuration for structural errors
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Format) {
	case FormatJSON, FormatSQLite:
	default:
		return fmt.Errorf("invalid storage format: %s (must be %s or %s)", c.Storage.Format, FormatJSON, FormatSQLite)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case ProviderHashed:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding api_key is required for the openai provider")
		}
	case ProviderONNX:
		if c.Embedding.ModelPath == "" || c.Embedding.TokenizerPath == "" {
			return fmt.Errorf("embedding model_path and tokenizer_path are required for the onnx provider")
		}
	default:
		return fmt.Errorf("invalid embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.CacheSize < 0 {
		return fmt.Errorf("embedding cache_size must be >= 0")
	}
	if c.Server.ToolTimeout < 0 {
		return fmt.Errorf("server tool_timeout must be >= 0")
	}
	if c.Server.MaxConcurrent < 0 {
		return fmt.Errorf("server max_concurrent must be >= 0")
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("server requests_per_minute must be >= 0")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	return nil
}
