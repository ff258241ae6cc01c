package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID == "" && tc.RequestID == "" && tc.ClientID == "" && tc.Transport == "" && tc.Tool == "" {
		return logger
	}

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RequestID != "" {
		lc = lc.Str("request_id", tc.RequestID)
	}
	if tc.ClientID != "" {
		lc = lc.Str("client_id", tc.ClientID)
	}
	if tc.Transport != "" {
		lc = lc.Str("transport", tc.Transport)
	}
	if tc.Tool != "" {
		lc = lc.Str("tool", tc.Tool)
	}
	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return baseLogger
	}
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values that target lacks from source.
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}
	if tc.ClientID != "" && GetClientID(target) == "" {
		target = WithClientID(target, tc.ClientID)
	}
	if tc.Transport != "" && GetTransport(target) == "" {
		target = WithTransport(target, tc.Transport)
	}
	if tc.Tool != "" && GetTool(target) == "" {
		target = WithTool(target, tc.Tool)
	}

	return target
}

// CloneContext creates a background context carrying the same tracing
// values, for work that must outlive the request that started it.
func CloneContext(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
