package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithClientID(ctx, "client-1")
	ctx = WithTool(ctx, "remember")

	ctxLogger := PropagateToLogger(ctx, logger)
	ctxLogger.Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-123"`, `"client_id":"client-1"`, `"tool":"remember"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got %s", want, out)
		}
	}
	if strings.Contains(out, "request_id") {
		t.Errorf("Unexpected request_id in %s", out)
	}
}

func TestLoggerFromContextWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctxLogger := LoggerFromContext(context.Background(), logger)
	ctxLogger.Info().Msg("plain")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("Unexpected trace_id in %s", buf.String())
	}
}

func TestMergeContext(t *testing.T) {
	source := WithTraceID(context.Background(), "source-trace")
	source = WithClientID(source, "source-client")

	target := WithTraceID(context.Background(), "target-trace")

	merged := MergeContext(target, source)

	if GetTraceID(merged) != "target-trace" {
		t.Error("Existing trace ID should not be overwritten")
	}
	if GetClientID(merged) != "source-client" {
		t.Error("Missing client ID should be copied from source")
	}
}

func TestCloneContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	parent = WithTraceID(parent, "trace-clone")
	parent = WithTransport(parent, "websocket")

	clone := CloneContext(parent)
	cancel()

	if clone.Err() != nil {
		t.Error("Clone must not be cancelled with its parent")
	}
	if GetTraceID(clone) != "trace-clone" || GetTransport(clone) != "websocket" {
		t.Error("Clone should carry tracing values")
	}
}
