package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. MCP_STANDARDS_EMBEDDING_PROVIDER.
	EnvPrefix = "MCP_STANDARDS"

	defaultDirName  = ".mcp-standards"
	defaultFileName = "config.json"
	logFileName     = "mcp-standards.log"
)

// envKeys lists every key that may be overridden from the environment.
var envKeys = []string{
	"data_dir",
	"storage.path", "storage.format", "storage.atomic_writes",
	"embedding.provider", "embedding.model", "embedding.dimension", "embedding.api_key",
	"embedding.base_url", "embedding.model_path", "embedding.tokenizer_path",
	"embedding.library_path", "embedding.cache_size",
	"server.listen", "server.tool_timeout", "server.max_concurrent",
	"server.requests_per_minute", "server.shared_secret",
	"metrics.enabled", "metrics.listen",
	"tracing.enabled", "tracing.service_name",
	"logging.level", "logging.file", "logging.pretty", "logging.max_size",
	"logging.max_age", "logging.compress", "logging.redaction",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means
// ~/.mcp-standards/config.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file when it exists, applies environment overrides
// and fills in derived paths.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)

	if err := ApplyDerivedPaths(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDerivedPaths fills in the data directory, snapshot path and log file
// when they are not set, and expands a leading ~ in each.
func ApplyDerivedPaths(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, defaultDirName)
	}

	var err error
	if cfg.DataDir, err = expandHome(cfg.DataDir); err != nil {
		return err
	}

	cfg.Storage.Format = strings.ToLower(cfg.Storage.Format)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, SnapshotFileName(cfg.Storage.Format))
	}
	if cfg.Storage.Path, err = expandHome(cfg.Storage.Path); err != nil {
		return err
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, logFileName)
	}
	if cfg.Logging.File, err = expandHome(cfg.Logging.File); err != nil {
		return err
	}

	return nil
}

// Save writes the configuration to the loader's path
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("data_dir", cfg.DataDir)
	v.Set("storage", cfg.Storage)
	v.Set("embedding", cfg.Embedding)
	v.Set("server", cfg.Server)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return expandHome(l.configPath)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName, defaultFileName), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
