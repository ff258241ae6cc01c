package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrEmbedding is matched by every EmbeddingError.
	ErrEmbedding = errors.New("embedding error")
	// ErrDimensionMismatch means a loaded record does not fit the provider dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDuplicateID means a loaded snapshot repeats a record id.
	ErrDuplicateID = errors.New("duplicate record id")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// EmbeddingError reports that the provider could not produce a vector.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

// Unwrap exposes both ErrEmbedding and the provider's own error.
func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbedding, e.Err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsEmbedding reports whether err is an EmbeddingError.
func IsEmbedding(err error) bool {
	return errors.Is(err, ErrEmbedding)
}

// ErrorType classifies the error for tool responses.
func (e *ValidationError) ErrorType() string { return "validation" }

// ErrorType classifies the error for tool responses.
func (e *EmbeddingError) ErrorType() string { return "embedding" }

// NotFoundError is returned by tool handlers that require an existing record.
// The store itself reports absence with a boolean.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory not found: %s", e.ID)
}

// ErrorType classifies the error for tool responses.
func (e *NotFoundError) ErrorType() string { return "not_found" }
