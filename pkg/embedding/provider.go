// Package embedding turns text into fixed-length vectors.
//
// Providers are cheap to construct. Expensive setup (loading a model,
// validating an API key) is deferred by Lazy until the first Embed call,
// and concurrent first callers share a single initialization.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrEmbedding is matched by every Embed failure.
	ErrEmbedding = errors.New("embedding failed")
	// ErrEmptyText is returned for text with no content to embed.
	ErrEmptyText = errors.New("text is empty")
	// ErrNotInitialized is matched by every error from a provider whose
	// initialization failed.
	ErrNotInitialized = errors.New("embedding provider not initialized")
)

// Error is the error returned by Provider.Embed. It matches ErrEmbedding
// and the underlying cause.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrEmbedding, e.Err}
}

// wrapError tags err with the provider name unless it already is an *Error.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var embedErr *Error
	if errors.As(err, &embedErr) {
		return err
	}
	return &Error{Provider: provider, Err: err}
}

// Provider embeds text into vectors of a fixed dimension.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// Closer is implemented by providers holding native or network resources.
type Closer interface {
	Close() error
}

// State is the lifecycle of a Lazy provider.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Initializer builds the real provider.
type Initializer func(ctx context.Context) (Provider, error)

// Lazy defers provider construction to the first Embed call. A failed
// initialization is final; every later call returns the same error.
type Lazy struct {
	name      string
	dimension int
	init      Initializer
	logger    zerolog.Logger

	mu       sync.Mutex
	state    State
	done     chan struct{}
	provider Provider
	err      error
}

// NewLazy wraps init. dimension must match what the built provider reports.
func NewLazy(name string, dimension int, init Initializer, logger zerolog.Logger) *Lazy {
	return &Lazy{
		name:      name,
		dimension: dimension,
		init:      init,
		logger:    logger,
	}
}

// Name returns the provider name.
func (l *Lazy) Name() string { return l.name }

// Dimension is known before initialization.
func (l *Lazy) Dimension() int { return l.dimension }

// State reports the current lifecycle state.
func (l *Lazy) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Warm forces initialization without embedding anything.
func (l *Lazy) Warm(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

// Embed initializes the provider if needed, then embeds text.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	p, err := l.get(ctx)
	if err != nil {
		return nil, wrapError(l.name, err)
	}
	vec, err := p.Embed(ctx, text)
	if err != nil {
		return nil, wrapError(l.name, err)
	}
	return vec, nil
}

// Close releases the underlying provider if it was built.
func (l *Lazy) Close() error {
	l.mu.Lock()
	p := l.provider
	l.mu.Unlock()

	if c, ok := p.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Lazy) get(ctx context.Context) (Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		l.mu.Lock()
		switch l.state {
		case StateReady:
			p := l.provider
			l.mu.Unlock()
			return p, nil

		case StateFailed:
			err := l.err
			l.mu.Unlock()
			return nil, err

		case StateInitializing:
			done := l.done
			l.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			l.state = StateInitializing
			l.done = make(chan struct{})
			l.mu.Unlock()

			l.initialize(ctx)
		}
	}
}

// initialize runs without the caller's cancellation so one impatient caller
// cannot fail initialization for everyone else.
func (l *Lazy) initialize(ctx context.Context) {
	l.logger.Info().Str("provider", l.name).Msg("Initializing embedding provider")

	p, err := l.init(context.WithoutCancel(ctx))
	if err == nil && p == nil {
		err = errors.New("initializer returned no provider")
	}
	if err == nil && p.Dimension() != l.dimension {
		err = fmt.Errorf("provider reports %d dimensions, expected %d", p.Dimension(), l.dimension)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.state = StateFailed
		l.err = &Error{Provider: l.name, Err: fmt.Errorf("%w: %w", ErrNotInitialized, err)}
		l.logger.Error().Err(err).Str("provider", l.name).Msg("Embedding provider initialization failed")
	} else {
		l.state = StateReady
		l.provider = p
		l.logger.Info().Str("provider", l.name).Int("dimension", l.dimension).Msg("Embedding provider ready")
	}
	close(l.done)
}
