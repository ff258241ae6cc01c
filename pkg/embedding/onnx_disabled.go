//go:build !onnx

package embedding

import "github.com/rs/zerolog"

// ONNXAvailable reports whether this binary was built with ONNX support.
const ONNXAvailable = false

// ONNXConfig configures the local ONNX provider.
type ONNXConfig struct {
	ModelPath         string
	TokenizerPath     string
	SharedLibraryPath string
	Dimension         int
	MaxSequence       int
	Logger            zerolog.Logger
}

// ONNX is a placeholder so callers compile without the onnx tag.
type ONNX struct{ Provider }

// NewONNX always fails in this build.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	return nil, ErrONNXUnavailable
}
