package tracing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Run("should round-trip ids through the context", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithTraceID(ctx, "trace-1")
		ctx = WithRunID(ctx, "run-1")
		ctx = WithAgent(ctx, "red_teamer")

		tc := FromContext(ctx)
		assert.Equal(t, "trace-1", tc.TraceID)
		assert.Equal(t, "run-1", tc.RunID)
		assert.Equal(t, "red_teamer", tc.Agent)
	})

	t.Run("should return empty strings on a bare context", func(t *testing.T) {
		tc := FromContext(context.Background())
		assert.Empty(t, tc.TraceID)
		assert.Empty(t, tc.RunID)
		assert.Empty(t, tc.Agent)
	})

	t.Run("should generate unique trace ids", func(t *testing.T) {
		assert.NotEqual(t, NewTraceID(), NewTraceID())
	})
}

func TestPropagateToHandoff(t *testing.T) {
	t.Run("should keep the trace and swap the agent", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-1")
		ctx = WithAgent(ctx, "red_teamer")

		next := PropagateToHandoff(ctx, "bug_bounter")
		assert.Equal(t, "trace-1", GetTraceID(next))
		assert.Equal(t, "bug_bounter", GetAgent(next))
	})

	t.Run("should mint a trace id when missing", func(t *testing.T) {
		next := PropagateToHandoff(context.Background(), "bug_bounter")
		assert.NotEmpty(t, GetTraceID(next))
	})
}

func TestPropagateToLogger(t *testing.T) {
	t.Run("should not panic on an empty context", func(t *testing.T) {
		logger := PropagateToLogger(context.Background(), zerolog.Nop())
		logger.Info().Msg("ok")
	})
}
