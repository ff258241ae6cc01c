//go:build onnx

package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXAvailable reports whether this binary was built with ONNX support.
const ONNXAvailable = true

// ONNXConfig configures the local ONNX provider.
type ONNXConfig struct {
	ModelPath         string
	TokenizerPath     string
	SharedLibraryPath string // Optional, path to libonnxruntime
	Dimension         int
	MaxSequence       int
	Logger            zerolog.Logger
}

// ONNX runs a sentence-transformer model (all-MiniLM-L6-v2 by default)
// through ONNX Runtime.
type ONNX struct {
	session     *ort.DynamicAdvancedSession
	tokenizer   *WordPiece
	dimension   int
	maxSequence int

	// The session is not safe for concurrent Run calls.
	mu sync.Mutex
}

var ortInit sync.Once
var ortInitErr error

// NewONNX loads the model and tokenizer. It is slow and belongs behind Lazy.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx model path is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, errors.New("onnx tokenizer path is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.MaxSequence <= 0 {
		cfg.MaxSequence = DefaultMaxSequence
	}

	ortInit.Do(func() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", ortInitErr)
	}

	tokenizer, err := LoadWordPiece(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	cfg.Logger.Info().
		Str("model", cfg.ModelPath).
		Int("dimension", cfg.Dimension).
		Msg("ONNX model loaded")

	return &ONNX{
		session:     session,
		tokenizer:   tokenizer,
		dimension:   cfg.Dimension,
		maxSequence: cfg.MaxSequence,
	}, nil
}

func (e *ONNX) Name() string   { return "onnx" }
func (e *ONNX) Dimension() int { return e.dimension }

// Embed mean-pools the last hidden state over attended tokens and
// normalizes the result.
func (e *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, wrapError(e.Name(), err)
	}
	return vec, nil
}

func (e *ONNX) embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask, types := e.tokenizer.Encode(text, e.maxSequence)
	shape := ort.NewShape(1, int64(e.maxSequence))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typesTensor, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	outputs := []ort.Value{nil}

	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected ONNX output tensor type")
	}

	return poolOutput(tensor.GetData(), tensor.GetShape(), mask, e.dimension)
}

// Close releases the ONNX session.
func (e *ONNX) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func poolOutput(data []float32, shape ort.Shape, mask []int64, dimension int) ([]float32, error) {
	out := make([]float32, dimension)

	switch len(shape) {
	case 2:
		if len(data) < dimension {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), dimension)
		}
		copy(out, data[:dimension])

	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != dimension {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, dimension)
		}
		attended := float32(0)
		for i := 0; i < seqLen && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			offset := i * hidden
			for j := 0; j < hidden; j++ {
				out[j] += data[offset+j]
			}
		}
		if attended > 0 {
			for j := range out {
				out[j] /= attended
			}
		}

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}

	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range out {
			out[i] /= n
		}
	}
	return out, nil
}
