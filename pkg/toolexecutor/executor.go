package toolexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tracerName      = "mcp-standards.toolexecutor"
	truncatedSuffix = "\n... [output truncated]"
)

type outcome struct {
	value interface{}
	err   error
}

// Execute validates params against the tool's schema and runs its handler
// under a timeout. It never returns a Go error: failures are reported in
// the ToolResult.
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	ctx = tracing.WithTool(ctx, toolName)
	if execCtx != nil {
		ctx = ContextWithExecContext(ctx, execCtx)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "tool.execute", attribute.String("tool", toolName))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	te.mu.RLock()
	tool := te.byName[toolName]
	timeout, maxOutput := te.timeout, te.maxOutputSize
	te.mu.RUnlock()
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	failed := func(errType string, err error) ToolResult {
		elapsed := time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error_type", errType))
		observability.RecordToolExecution(toolName, elapsed, false, errType)

		ev := logger.Warn()
		if errType == ErrorTypeInternal {
			ev = logger.Error()
		}
		ev.Err(err).Str("error_type", errType).Dur("duration", elapsed).Msg("Tool call failed")

		return ToolResult{
			Error: err.Error(),
			Metadata: map[string]interface{}{
				"duration":   elapsed.Milliseconds(),
				"error_type": errType,
			},
		}
	}

	if tool == nil {
		return failed(ErrorTypeNotFound, fmt.Errorf("tool not found: %s", toolName))
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validate(tool.schema, params); err != nil {
		return failed(ErrorTypeValidation, fmt.Errorf("parameter validation failed: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		v, err := tool.def.Handler(callCtx, params)
		done <- outcome{value: v, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed(ErrorTypeInternal, fmt.Errorf("tool execution cancelled: %w", ctx.Err()))
		}
		return failed(ErrorTypeTimeout, fmt.Errorf("tool execution timeout after %v", timeout))
	}
	if res.err != nil {
		return failed(ClassifyError(res.err), res.err)
	}

	elapsed := time.Since(start)
	output, truncated := truncateOutput(res.value, maxOutput)
	observability.RecordToolExecution(toolName, elapsed, true, "")
	logger.Debug().Dur("duration", elapsed).Bool("truncated", truncated).Msg("Tool call completed")

	return ToolResult{
		Success:   true,
		Output:    output,
		Truncated: truncated,
		Metadata:  map[string]interface{}{"duration": elapsed.Milliseconds()},
	}
}

// ClassifyError maps a handler error to an error_type. Errors implementing
// TypedError choose their own; deadline errors are timeouts; anything else
// is internal.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var typed TypedError
	if errors.As(err, &typed) && typed.ErrorType() != "" {
		return typed.ErrorType()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeInternal
}

func validate(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// truncateOutput replaces output whose JSON encoding exceeds maxSize with
// the first maxSize bytes of that encoding plus a marker.
func truncateOutput(output interface{}, maxSize int) (interface{}, bool) {
	if output == nil {
		return nil, false
	}

	text, isString := output.(string)
	if !isString {
		data, err := json.Marshal(output)
		if err != nil {
			text = fmt.Sprint(output)
		} else {
			text = string(data)
		}
	}
	if len(text) <= maxSize {
		return output, false
	}

	log.Warn().Int("size", len(text)).Int("limit", maxSize).Msg("Tool output truncated")
	return text[:maxSize] + truncatedSuffix, true
}
