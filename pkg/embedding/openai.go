package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string // Falls back to OPENAI_API_KEY
	BaseURL    string // Optional, for compatible endpoints
	Model      string
	Dimension  int
	MaxRetries int // 0 keeps the client default
}

// OpenAI embeds text with the OpenAI embeddings API.
type OpenAI struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required (set embedding.api_key or OPENAI_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}, nil
}

func (p *OpenAI) Name() string   { return "openai" }
func (p *OpenAI) Dimension() int { return p.dimension }

// Embed calls the embeddings endpoint. text-embedding-3 models are asked for
// exactly Dimension() values.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embed(ctx, text)
	if err != nil {
		return nil, wrapError(p.Name(), err)
	}
	return vec, nil
}

func (p *OpenAI) embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.model),
	}
	if strings.HasPrefix(p.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(p.dimension))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("OpenAI returned no embeddings")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != p.dimension {
		return nil, fmt.Errorf("OpenAI returned %d dimensions, expected %d", len(raw), p.dimension)
	}

	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
