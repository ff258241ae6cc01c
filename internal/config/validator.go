package config

import (
	"fmt"
	"net"
	"strings"
)

// Validator performs field-level checks that go beyond Config.Validate and
// reports every problem at once.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates an embedding provider name
func (v *Validator) ValidateProvider(provider string) error {
	return oneOf("embedding provider", provider, ProviderHashed, ProviderOpenAI, ProviderONNX)
}

// ValidateFormat validates a storage format
func (v *Validator) ValidateFormat(format string) error {
	return oneOf("storage format", format, FormatJSON, FormatSQLite)
}

// ValidateDimension validates an embedding dimension
func (v *Validator) ValidateDimension(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if dim > 8192 {
		return fmt.Errorf("embedding dimension too large (max 8192), got %d", dim)
	}
	return nil
}

// ValidateListenAddr validates a host:port listen address. Empty is allowed.
func (v *Validator) ValidateListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, "debug", "info", "warn", "error")
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateFormat(cfg.Storage.Format); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateProvider(cfg.Embedding.Provider); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateDimension(cfg.Embedding.Dimension); err != nil {
		errors = append(errors, err)
	}
	switch cfg.Embedding.Provider {
	case ProviderOpenAI:
		// Compatible endpoints issue their own key formats.
		if cfg.Embedding.BaseURL == "" {
			if err := v.ValidateAPIKey(cfg.Embedding.APIKey, ProviderOpenAI); err != nil {
				errors = append(errors, fmt.Errorf("embedding: %w", err))
			}
		} else if cfg.Embedding.APIKey == "" {
			errors = append(errors, fmt.Errorf("embedding: api_key is required for the openai provider"))
		}
	case ProviderONNX:
		if cfg.Embedding.ModelPath == "" {
			errors = append(errors, fmt.Errorf("embedding: model_path is required for the onnx provider"))
		}
		if cfg.Embedding.TokenizerPath == "" {
			errors = append(errors, fmt.Errorf("embedding: tokenizer_path is required for the onnx provider"))
		}
	}
	if cfg.Embedding.CacheSize < 0 {
		errors = append(errors, fmt.Errorf("embedding.cache_size must be >= 0"))
	}

	if err := v.ValidateListenAddr(cfg.Server.Listen); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.ToolTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.tool_timeout must be >= 0"))
	}
	if cfg.Server.MaxConcurrent < 0 {
		errors = append(errors, fmt.Errorf("server.max_concurrent must be >= 0"))
	}
	if cfg.Server.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.requests_per_minute must be >= 0"))
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateListenAddr(cfg.Metrics.Listen); err != nil {
			errors = append(errors, fmt.Errorf("metrics: %w", err))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	return errors
}

func oneOf(field, value string, valid ...string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", field, value, strings.Join(valid, ", "))
}
