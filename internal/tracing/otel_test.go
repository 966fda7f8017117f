package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestSetup(t *testing.T) {
	t.Run("should be safe to call repeatedly", func(t *testing.T) {
		require.NoError(t, Setup("strix", "test"))
		require.NoError(t, Setup("strix", "test"))
	})
}

func TestStartSpan(t *testing.T) {
	t.Run("should stamp run and agent identity on the span", func(t *testing.T) {
		rec := installRecorder(t)

		ctx := WithRunID(context.Background(), "run_9d2c")
		ctx = WithAgent(ctx, "bug_bounter")
		_, span := StartSpan(ctx, "agent.run")
		span.End()

		spans := rec.Ended()
		require.Len(t, spans, 1)
		attrs := spans[0].Attributes()
		assert.Contains(t, attrs, attribute.String("strix.run_id", "run_9d2c"))
		assert.Contains(t, attrs, attribute.String("strix.agent", "bug_bounter"))
	})

	t.Run("should mirror the trace id into the context", func(t *testing.T) {
		installRecorder(t)

		ctx, span := StartSpan(context.Background(), "agent.run")
		defer span.End()

		assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	})

	t.Run("should keep a trace id already in the context", func(t *testing.T) {
		installRecorder(t)

		ctx := WithTraceID(context.Background(), "manual-trace")
		ctx, span := StartSpan(ctx, "agent.run")
		defer span.End()

		assert.Equal(t, "manual-trace", GetTraceID(ctx))
	})
}
