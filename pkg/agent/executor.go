package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/strixops/strix/internal/observability"
	"github.com/strixops/strix/pkg/tool"
)

// TurnObserver receives the events of one executing turn, in order:
// model output fully resolved first, then tool-call events in dispatch
// order. Implementations must not block.
type TurnObserver interface {
	ModelDelta(text string)
	ModelMessage(msg Message)
	ToolCallStarted(call ToolCall)
	ToolCallFinished(call ToolCall, result ToolResult)
}

type noopObserver struct{}

func (noopObserver) ModelDelta(string)                     {}
func (noopObserver) ModelMessage(Message)                  {}
func (noopObserver) ToolCallStarted(ToolCall)              {}
func (noopObserver) ToolCallFinished(ToolCall, ToolResult) {}

// ExecutorConfig holds turn executor configuration.
type ExecutorConfig struct {
	Registry    *tool.Registry
	Coordinator *Coordinator
	Provider    Provider

	// MaxRetries bounds model call attempts per turn. Default 3.
	MaxRetries int

	// ModelTimeout bounds each model call attempt.
	ModelTimeout time.Duration

	// ToolTimeout bounds one-shot tool invocations. Session-aware tools
	// are exempt.
	ToolTimeout time.Duration

	Logger zerolog.Logger
}

// TurnExecutor drives a single turn: ask the model for the next action,
// dispatch any tool calls, and return the messages to append. It never
// mutates the history it is given.
type TurnExecutor struct {
	cfg       ExecutorConfig
	retryBase time.Duration
}

// NewTurnExecutor creates a turn executor.
func NewTurnExecutor(cfg ExecutorConfig) (*TurnExecutor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("handoff coordinator is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("model provider is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &TurnExecutor{cfg: cfg, retryBase: time.Second}, nil
}

// ExecuteTurn runs one think/act cycle for the active agent over a view
// of the history. Tool and session failures are folded into tool results;
// only model backend exhaustion is returned as an error.
func (e *TurnExecutor) ExecuteTurn(ctx context.Context, active Definition, history []Message, obs TurnObserver) (TurnDelta, error) {
	if obs == nil {
		obs = noopObserver{}
	}

	logger := e.cfg.Logger.With().Str("agent", active.Name).Logger()

	request := Request{
		Model:        active.Model,
		SystemPrompt: active.Instructions,
		Messages:     history,
		Temperature:  active.Temperature,
		MaxTokens:    active.MaxTokens,
	}
	for _, def := range e.cfg.Registry.Definitions(active.Tools) {
		request.Tools = append(request.Tools, SchemaForTool(def))
	}
	request.Tools = append(request.Tools, e.cfg.Coordinator.HandoffSchemas(active.Name)...)

	response, err := e.callModelWithRetry(ctx, request, obs, logger)
	if err != nil {
		return TurnDelta{}, err
	}

	observability.RecordTurn(active.Name)

	delta := TurnDelta{ToolCallCount: len(response.ToolCalls)}

	assistant := Message{
		Role:      RoleAssistant,
		Content:   response.Content,
		ToolCalls: response.ToolCalls,
	}
	obs.ModelMessage(assistant)
	delta.Messages = append(delta.Messages, assistant)

	if len(response.ToolCalls) == 0 {
		delta.FinalText = response.Content
		return delta, nil
	}

	results := e.dispatchTools(ctx, active, response.ToolCalls, &delta, obs)

	// Results are appended in call order: the tool_call_id correlation
	// requires it, and some backends reject interleaved orderings.
	for _, result := range results {
		content := result.Output
		if !result.Success {
			content = result.Error
		}
		delta.Messages = append(delta.Messages, Message{
			Role:       RoleTool,
			Content:    content,
			ToolCallID: result.ToolCallID,
		})
	}

	return delta, nil
}

// dispatchTools executes the turn's tool calls. Sequential in model order
// by default; concurrent only when the agent declares its tools mutually
// independent, and even then results keep model order.
func (e *TurnExecutor) dispatchTools(ctx context.Context, active Definition, calls []ToolCall, delta *TurnDelta, obs TurnObserver) []ToolResult {
	results := make([]ToolResult, len(calls))

	if active.ParallelTools && len(calls) > 1 {
		for _, call := range calls {
			obs.ToolCallStarted(call)
		}

		var wg sync.WaitGroup
		for i, call := range calls {
			if _, isHandoff := ParseHandoffTool(call.Name); isHandoff {
				continue
			}
			wg.Add(1)
			go func(i int, call ToolCall) {
				defer wg.Done()
				results[i] = e.invokeTool(ctx, call)
			}(i, call)
		}
		wg.Wait()

		for i, call := range calls {
			if _, isHandoff := ParseHandoffTool(call.Name); isHandoff {
				results[i] = e.resolveHandoff(call, delta)
			}
			obs.ToolCallFinished(call, results[i])
		}
		return results
	}

	for i, call := range calls {
		obs.ToolCallStarted(call)
		if _, isHandoff := ParseHandoffTool(call.Name); isHandoff {
			results[i] = e.resolveHandoff(call, delta)
		} else {
			results[i] = e.invokeTool(ctx, call)
		}
		obs.ToolCallFinished(call, results[i])
	}
	return results
}

func (e *TurnExecutor) invokeTool(ctx context.Context, call ToolCall) ToolResult {
	result := e.cfg.Registry.Invoke(ctx, call.Name, call.Arguments, e.cfg.ToolTimeout)
	return ToolResult{
		ToolCallID: call.ID,
		Success:    result.Success,
		Output:     result.Output,
		Error:      result.Error,
	}
}

// resolveHandoff converts a transfer_to_<agent> call into a handoff
// request for the run controller. It does not switch agents itself, and
// an unknown target degrades to a failed tool result so the run keeps
// going under the current agent.
func (e *TurnExecutor) resolveHandoff(call ToolCall, delta *TurnDelta) ToolResult {
	target, _ := ParseHandoffTool(call.Name)

	if _, known := e.cfg.Coordinator.Get(target); !known {
		return ToolResult{
			ToolCallID: call.ID,
			Success:    false,
			Error:      fmt.Sprintf("%v: %s", ErrUnknownAgent, target),
		}
	}

	if delta.Handoff != "" && delta.Handoff != target {
		return ToolResult{
			ToolCallID: call.ID,
			Success:    false,
			Error:      fmt.Sprintf("a handoff to %s was already requested this turn", delta.Handoff),
		}
	}

	delta.Handoff = target
	return ToolResult{
		ToolCallID: call.ID,
		Success:    true,
		Output:     fmt.Sprintf("transferring to %s", target),
	}
}

// callModelWithRetry calls the backend with bounded exponential backoff.
// Exhausting the budget is fatal to the run, never silently swallowed.
func (e *TurnExecutor) callModelWithRetry(ctx context.Context, request Request, obs TurnObserver, logger zerolog.Logger) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		response, err := e.callModel(ctx, request, obs)
		observability.RecordModelCall(e.cfg.Provider.Name(), err == nil)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelBackend, ctx.Err())
		}
		if !isRetryableModelError(err) {
			return nil, fmt.Errorf("%w: %v", ErrModelBackend, err)
		}
		if attempt == e.cfg.MaxRetries-1 {
			break
		}

		delay := time.Duration(1<<attempt) * e.retryBase
		logger.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("Model call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrModelBackend, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: max retries (%d) exceeded: %v", ErrModelBackend, e.cfg.MaxRetries, lastErr)
}

// callModel makes a single attempt, streaming deltas when the backend
// supports it and degrading to a blocking call otherwise.
func (e *TurnExecutor) callModel(ctx context.Context, request Request, obs TurnObserver) (*Response, error) {
	callCtx := ctx
	if e.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.ModelTimeout)
		defer cancel()
	}

	var response *Response
	var err error
	if streaming, ok := e.cfg.Provider.(StreamingProvider); ok {
		response, err = streaming.CallStream(callCtx, request, obs.ModelDelta)
	} else {
		response, err = e.cfg.Provider.Call(callCtx, request)
	}

	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	return response, err
}

// isRetryableModelError treats timeouts as transient alongside the usual
// network and rate-limit failures.
func isRetryableModelError(err error) bool {
	return IsRetryableError(err) || errors.Is(err, ErrModelTimeout)
}
