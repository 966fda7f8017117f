package agent

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/strixops/strix/internal/observability"
	"github.com/strixops/strix/internal/tracing"
)

// DefaultMaxTurns bounds a run when the configuration does not.
const DefaultMaxTurns = 20

// TranscriptStore persists a run's message sequence and active agent
// name. Sessions are deliberately excluded: they do not survive a process
// restart and are treated as lost.
type TranscriptStore interface {
	SaveRun(ctx context.Context, state RunState) error
}

// RunnerConfig holds run controller configuration.
type RunnerConfig struct {
	Executor    *TurnExecutor
	Coordinator *Coordinator

	// Store, when set, receives the terminal RunState of every run.
	Store TranscriptStore

	// MaxTurns bounds the run; hitting it completes (with Truncated),
	// it does not fail.
	MaxTurns int

	// EventBuffer sizes the stream channel.
	EventBuffer int

	Logger zerolog.Logger
}

// Runner is the top-level driver: it owns the run state, repeatedly
// invokes the turn executor and applies its deltas until a termination
// condition. It is the single writer of RunState.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a run controller.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Executor == nil {
		return nil, fmt.Errorf("turn executor is required")
	}
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("handoff coordinator is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Runner{cfg: cfg}, nil
}

// Run executes a run to its terminal state, blocking the caller. The
// returned state always carries the full accumulated history, also when
// the run failed.
func (r *Runner) Run(ctx context.Context, initial []Message, startingAgent string) RunState {
	return r.run(ctx, initial, startingAgent, nil)
}

// Stream executes a run and delivers its events as a finite sequence.
// The channel closes after the run_finished event. A stream is not
// restartable; call Stream again for a fresh run. Cancelling ctx stops
// the run at the next turn boundary, never mid tool call.
func (r *Runner) Stream(ctx context.Context, initial []Message, startingAgent string) <-chan Event {
	runID := newRunID()
	em := newEventEmitter(runID, startingAgent, r.cfg.EventBuffer)

	go func() {
		defer close(em.ch)
		state := r.runWithID(ctx, runID, initial, startingAgent, em)
		em.emitTerminal(ctx, state)
	}()

	return em.ch
}

func (r *Runner) run(ctx context.Context, initial []Message, startingAgent string, em *eventEmitter) RunState {
	return r.runWithID(ctx, newRunID(), initial, startingAgent, em)
}

func (r *Runner) runWithID(ctx context.Context, runID string, initial []Message, startingAgent string, em *eventEmitter) RunState {
	start := time.Now()
	ctx = tracing.WithRunID(ctx, runID)
	ctx = tracing.PropagateToHandoff(ctx, startingAgent)
	ctx, span := tracing.StartSpan(ctx, "agent.run")
	defer span.End()

	logger := tracing.PropagateToLogger(ctx, r.cfg.Logger)

	state := RunState{
		RunID:       runID,
		History:     cloneHistory(initial),
		ActiveAgent: startingAgent,
		Status:      StatusRunning,
	}

	active, err := r.cfg.Coordinator.Activate(startingAgent)
	if err != nil {
		state.Status = StatusFailed
		state.Err = err
		logger.Error().Err(err).Msg("Run failed: unknown starting agent")
		r.finish(ctx, &state, start, logger)
		return state
	}

	var obs TurnObserver
	if em != nil {
		obs = em
	}

	for state.TurnCount < r.cfg.MaxTurns {
		// Cancellation takes effect here, at the turn boundary, so a
		// dispatched tool call is never cut off half-executed.
		if ctx.Err() != nil {
			state.Status = StatusCompleted
			state.Cancelled = true
			logger.Info().Int("turns", state.TurnCount).Msg("Run cancelled at turn boundary")
			r.finish(ctx, &state, start, logger)
			return state
		}

		delta, err := r.cfg.Executor.ExecuteTurn(ctx, active, state.History, obs)
		if err != nil {
			state.Status = StatusFailed
			state.Err = err
			logger.Error().Err(err).Int("turns", state.TurnCount).Msg("Run failed")
			r.finish(ctx, &state, start, logger)
			return state
		}

		state.History = append(state.History, delta.Messages...)
		state.TurnCount++

		if delta.Handoff != "" {
			next, err := r.cfg.Coordinator.Activate(delta.Handoff)
			if err != nil {
				// Advisory by contract; the executor validates targets,
				// so this only trips on definitions changing mid-run.
				logger.Warn().Err(err).Str("target", delta.Handoff).Msg("Handoff rejected, keeping current agent")
			} else {
				prev := active.Name
				active = next
				state.ActiveAgent = next.Name
				ctx = tracing.PropagateToHandoff(ctx, next.Name)
				if em != nil {
					em.AgentChanged(prev, next.Name)
				}
			}
			continue
		}

		if delta.ToolCallCount == 0 {
			state.Status = StatusCompleted
			logger.Info().Int("turns", state.TurnCount).Msg("Run completed")
			r.finish(ctx, &state, start, logger)
			return state
		}
	}

	// Turn budget exhausted: a bounded run is a completed run.
	state.Status = StatusCompleted
	state.Truncated = true
	logger.Info().Int("turns", state.TurnCount).Msg("Run truncated at max turns")
	r.finish(ctx, &state, start, logger)
	return state
}

func (r *Runner) finish(ctx context.Context, state *RunState, start time.Time, logger zerolog.Logger) {
	observability.RecordAgentRun(string(state.Status), time.Since(start))

	if r.cfg.Store != nil {
		// A cancelled run still gets persisted.
		if err := r.cfg.Store.SaveRun(context.WithoutCancel(ctx), *state); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist run transcript")
		}
	}
}

func newRunID() string {
	id, err := gonanoid.New()
	if err != nil {
		// nanoid only fails when the entropy source does; fall back to
		// a timestamp id rather than aborting the run.
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}
