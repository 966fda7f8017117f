package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToHandoff carries tracing across an agent handoff. The trace
// and run ids survive; only the agent name changes.
func PropagateToHandoff(ctx context.Context, agent string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
		ctx = WithTraceID(ctx, traceID)
	}
	return WithAgent(ctx, agent)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.Agent != "" {
		logger = logger.With().Str("agent", tc.Agent).Logger()
	}

	return logger
}
