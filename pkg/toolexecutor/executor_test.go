package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindError struct{ kind string }

func (e *kindError) Error() string     { return e.kind + " failure" }
func (e *kindError) ErrorType() string { return e.kind }

func register(t *testing.T, te *ToolExecutor, name string, h ToolHandler, params ...ToolParameter) {
	t.Helper()
	require.NoError(t, te.RegisterTool(ToolDefinition{Name: name, Description: name, Parameters: params, Handler: h}))
}

func TestExecuteSuccess(t *testing.T) {
	te := New()
	register(t, te, "echo", func(_ context.Context, p map[string]interface{}) (interface{}, error) {
		return p["message"], nil
	}, ToolParameter{Name: "message", Type: "string", Description: "text", Required: true})

	result := te.Execute(context.Background(), "echo", map[string]interface{}{"message": "use uv"}, nil)

	require.True(t, result.Success)
	assert.Equal(t, "use uv", result.Output)
	assert.False(t, result.Truncated)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.ErrorType())
	assert.Contains(t, result.Metadata, "duration")
}

func TestExecutePassesCallerToHandler(t *testing.T) {
	te := New()
	var got *ExecutionContext
	register(t, te, "whoami", func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		got = ExecContextFromContext(ctx)
		return ClientFromContext(ctx), nil
	})

	result := te.Execute(context.Background(), "whoami", nil, &ExecutionContext{ClientID: "client-42", Transport: "websocket"})
	require.True(t, result.Success)
	assert.Equal(t, "client-42", result.Output)
	require.NotNil(t, got)
	assert.Equal(t, "websocket", got.Transport)

	assert.Empty(t, ClientFromContext(context.Background()))
}

func TestExecuteUnknownTool(t *testing.T) {
	result := New().Execute(context.Background(), "nonexistent", nil, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "tool not found: nonexistent", result.Error)
	assert.Equal(t, ErrorTypeNotFound, result.ErrorType())
}

func TestExecuteValidation(t *testing.T) {
	te := New()
	calls := 0
	register(t, te, "strict", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return "ok", nil
	},
		ToolParameter{Name: "content", Type: "string", Description: "Content", Required: true, Pattern: `\S`},
		ToolParameter{Name: "category", Type: "string", Description: "Category", Enum: []string{"python", "git"}},
		ToolParameter{Name: "importance", Type: "integer", Description: "Importance", Minimum: Bound(1), Maximum: Bound(10)},
	)

	bad := map[string]map[string]interface{}{
		"missing required":  {},
		"wrong type":        {"content": 123},
		"blank content":     {"content": "   "},
		"enum violation":    {"content": "x", "category": "rust"},
		"below minimum":     {"content": "x", "importance": 0},
		"above maximum":     {"content": "x", "importance": 11},
		"not an integer":    {"content": "x", "importance": 2.5},
		"unknown parameter": {"content": "x", "extra": true},
	}
	for name, params := range bad {
		t.Run(name, func(t *testing.T) {
			result := te.Execute(context.Background(), "strict", params, nil)
			assert.False(t, result.Success)
			assert.True(t, strings.HasPrefix(result.Error, "parameter validation failed: "), result.Error)
			assert.Equal(t, ErrorTypeValidation, result.ErrorType())
		})
	}
	assert.Zero(t, calls, "handler must not run on invalid input")

	// JSON numbers decode as float64; whole values satisfy "integer".
	result := te.Execute(context.Background(), "strict", map[string]interface{}{
		"content": "x", "category": "git", "importance": float64(10),
	}, nil)
	assert.True(t, result.Success)
	assert.Equal(t, 1, calls)
}

func TestExecuteClassifiesHandlerErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &kindError{kind: ErrorTypeValidation}, want: ErrorTypeValidation},
		{err: fmt.Errorf("wrapped: %w", &kindError{kind: ErrorTypeEmbedding}), want: ErrorTypeEmbedding},
		{err: &kindError{}, want: ErrorTypeInternal},
		{err: fmt.Errorf("remote: %w", context.DeadlineExceeded), want: ErrorTypeTimeout},
		{err: errors.New("boom"), want: ErrorTypeInternal},
	}

	te := New()
	for i, tt := range tests {
		name := fmt.Sprintf("failing_%d", i)
		err := tt.err
		register(t, te, name, func(context.Context, map[string]interface{}) (interface{}, error) { return nil, err })

		result := te.Execute(context.Background(), name, nil, nil)
		assert.False(t, result.Success, name)
		assert.Equal(t, err.Error(), result.Error, name)
		assert.Equal(t, tt.want, result.ErrorType(), name)
		assert.Equal(t, tt.want, ClassifyError(err), name)
	}
	assert.Empty(t, ClassifyError(nil))
}

func TestExecuteRecoversPanics(t *testing.T) {
	te := New()
	register(t, te, "panics", func(context.Context, map[string]interface{}) (interface{}, error) {
		panic("bad state")
	})

	result := te.Execute(context.Background(), "panics", nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "tool panicked: bad state", result.Error)
	assert.Equal(t, ErrorTypeInternal, result.ErrorType())
}

func TestExecuteTimeouts(t *testing.T) {
	te := New()
	register(t, te, "slow", func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		select {
		case <-time.After(2 * time.Second):
			return "done", nil
		case <-ctx.Done():
			time.Sleep(10 * time.Millisecond)
			return nil, ctx.Err()
		}
	})

	t.Run("per call", func(t *testing.T) {
		result := te.Execute(context.Background(), "slow", nil, &ExecutionContext{Timeout: 50 * time.Millisecond})
		assert.Equal(t, ErrorTypeTimeout, result.ErrorType())
		assert.Equal(t, "tool execution timeout after 50ms", result.Error)
	})

	t.Run("executor default", func(t *testing.T) {
		te.SetTimeout(40 * time.Millisecond)
		result := te.Execute(context.Background(), "slow", nil, nil)
		assert.Equal(t, ErrorTypeTimeout, result.ErrorType())
	})

	t.Run("caller cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		result := te.Execute(ctx, "slow", nil, &ExecutionContext{Timeout: time.Second})
		assert.Equal(t, ErrorTypeInternal, result.ErrorType())
		assert.Contains(t, result.Error, "cancelled")
	})
}

func TestExecuteTruncatesLargeOutput(t *testing.T) {
	te := New()
	te.SetMaxOutputSize(1024)
	register(t, te, "large", func(context.Context, map[string]interface{}) (interface{}, error) {
		return map[string]string{"data": strings.Repeat("A", 2048)}, nil
	})
	register(t, te, "small", func(context.Context, map[string]interface{}) (interface{}, error) {
		return map[string]int{"total": 3}, nil
	})

	result := te.Execute(context.Background(), "large", nil, nil)
	require.True(t, result.Success)
	assert.True(t, result.Truncated)
	out := result.Output.(string)
	assert.True(t, strings.HasPrefix(out, `{"data":"AAA`))
	assert.True(t, strings.HasSuffix(out, truncatedSuffix))
	assert.Len(t, out, 1024+len(truncatedSuffix))

	result = te.Execute(context.Background(), "small", nil, nil)
	assert.False(t, result.Truncated)
	assert.Equal(t, map[string]int{"total": 3}, result.Output)
}
