package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the process tracer provider.
type Options struct {
	ServiceName string
	Version     string
	// SampleRatio outside (0,1] samples every trace.
	SampleRatio float64
	// Exporter receives finished spans in batches. Spans are recorded but
	// dropped when nil.
	Exporter sdktrace.SpanExporter
}

var global struct {
	once sync.Once
	mu   sync.Mutex
	tp   *sdktrace.TracerProvider
}

// InitOpenTelemetry installs the global tracer provider. Only the first
// call has any effect.
func InitOpenTelemetry(opts Options) error {
	global.once.Do(func() {
		res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		))
		if err != nil {
			// Schema conflicts still yield a usable resource.
			res = resource.NewSchemaless(semconv.ServiceName(opts.ServiceName))
		}

		ratio := opts.SampleRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 1
		}

		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		}
		if opts.Exporter != nil {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(opts.Exporter))
		}
		tp := sdktrace.NewTracerProvider(tpOpts...)

		global.mu.Lock()
		global.tp = tp
		global.mu.Unlock()
		otel.SetTracerProvider(tp)
	})
	return nil
}

// ShutdownOpenTelemetry flushes pending spans. It is a no-op before
// InitOpenTelemetry.
func ShutdownOpenTelemetry(ctx context.Context) error {
	global.mu.Lock()
	tp := global.tp
	global.mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on tracerName. When ctx has no trace ID yet, the
// span's own trace ID is stored so log lines and spans correlate.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	if GetTraceID(ctx) != "" {
		return ctx, span
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}
