package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Provider names accepted by New.
const (
	ProviderHashed = "hashed"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// ErrONNXUnavailable is returned when the onnx provider is selected in a
// binary built without the onnx tag.
var ErrONNXUnavailable = errors.New("onnx provider not available: rebuild with -tags onnx")

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Dimension int
	CacheSize int64 // 0 disables the query cache

	// openai
	Model   string
	APIKey  string
	BaseURL string

	// onnx
	ModelPath         string
	TokenizerPath     string
	SharedLibraryPath string
}

// New builds the configured provider. Remote and model-backed providers are
// wrapped in Lazy so construction never blocks; the query cache, when
// enabled, sits in front of everything.
func New(cfg Config, logger zerolog.Logger) (Provider, error) {
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHashed:
		p = NewHashed(dimension)

	case ProviderOpenAI:
		p = NewLazy(ProviderOpenAI, dimension, func(ctx context.Context) (Provider, error) {
			return NewOpenAI(OpenAIConfig{
				APIKey:    cfg.APIKey,
				BaseURL:   cfg.BaseURL,
				Model:     cfg.Model,
				Dimension: dimension,
			})
		}, logger)

	case ProviderONNX:
		if !ONNXAvailable {
			return nil, ErrONNXUnavailable
		}
		p = NewLazy(ProviderONNX, dimension, func(ctx context.Context) (Provider, error) {
			return NewONNX(ONNXConfig{
				ModelPath:         cfg.ModelPath,
				TokenizerPath:     cfg.TokenizerPath,
				SharedLibraryPath: cfg.SharedLibraryPath,
				Dimension:         dimension,
				Logger:            logger,
			})
		}, logger)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q (must be one of: %s, %s, %s)",
			cfg.Provider, ProviderHashed, ProviderOpenAI, ProviderONNX)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCached(p, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		p = cached
	}

	logger.Debug().
		Str("provider", p.Name()).
		Int("dimension", dimension).
		Int64("cache_size", cfg.CacheSize).
		Msg("Embedding provider configured")

	return p, nil
}

// Warm initializes a lazily constructed provider ahead of the first request.
func Warm(ctx context.Context, p Provider) error {
	for {
		switch v := p.(type) {
		case *Lazy:
			return v.Warm(ctx)
		case *Cached:
			p = v.Unwrap()
		default:
			return nil
		}
	}
}

// Close releases provider resources, if it holds any.
func Close(p Provider) error {
	if c, ok := p.(Closer); ok {
		return c.Close()
	}
	return nil
}
