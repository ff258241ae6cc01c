package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Audit outcomes.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

// auditSink appends one JSON line per memory mutation. Lines look like
//
//	{"level":"info","type":"memory","action":"memory:store","actor":"cli","status":"success","metadata":{...},"time":"..."}
type auditSink struct {
	mu     sync.Mutex
	log    zerolog.Logger
	closer io.Closer
}

// auditTo is nil until InitAuditLogger; events are dropped meanwhile.
var auditTo atomic.Pointer[auditSink]

// InitAuditLogger starts appending audit lines to path, replacing any
// previous audit file.
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	sink := &auditSink{log: zerolog.New(f).With().Timestamp().Logger(), closer: f}
	if prev := auditTo.Swap(sink); prev != nil {
		_ = prev.close()
	}
	return nil
}

// CloseAuditLogger stops auditing and closes the file.
func CloseAuditLogger() error {
	if prev := auditTo.Swap(nil); prev != nil {
		return prev.close()
	}
	return nil
}

func (s *auditSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// RecordMemoryAudit records a memory mutation (store, delete, clear). The
// event is also attached to the active span, and the line carries its
// trace id.
func RecordMemoryAudit(ctx context.Context, action, actor, status string, metadata map[string]interface{}) {
	action = "memory:" + action

	var traceID string
	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if sc := span.SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
			span.AddEvent(action, trace.WithAttributes(
				attribute.String("audit.actor", actor),
				attribute.String("audit.status", status),
			))
		}
	}

	sink := auditTo.Load()
	if sink == nil {
		return
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.closer == nil {
		return
	}

	ev := sink.log.Info().
		Str("type", "memory").
		Str("action", action).
		Str("actor", actor).
		Str("status", status)
	if traceID != "" {
		ev = ev.Str("trace_id", traceID)
	}
	if len(metadata) > 0 {
		ev = ev.Interface("metadata", metadata)
	}
	ev.Send()
}
