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

// tracerName is the single instrumentation scope of this binary.
const tracerName = "github.com/strixops/strix"

var (
	setupOnce sync.Once
	setupErr  error

	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// Setup installs the process-wide tracer provider. The resource carries
// only the service name and version; run and agent identity travel on
// individual spans through the context helpers. Safe to call more than
// once.
func Setup(serviceName, serviceVersion string) error {
	setupOnce.Do(func() {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(serviceVersion),
			),
		)
		if err != nil {
			setupErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})
	return setupErr
}

// Shutdown flushes pending spans and stops the provider installed by Setup.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	providerMu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span under this binary's tracer, stamps it with the
// run and agent identity held in ctx, and mirrors the span's trace id
// back into the context so the log fields line up with the trace.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if runID := GetRunID(ctx); runID != "" {
		attrs = append(attrs, attribute.String("strix.run_id", runID))
	}
	if agent := GetAgent(ctx); agent != "" {
		attrs = append(attrs, attribute.String("strix.agent", agent))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}
	return ctx, span
}
