package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixops/strix/pkg/tool"
)

// scriptedProvider replays canned responses in order. An entry with a
// non-nil error simulates a failed backend call.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	requests  []Request
}

func (p *scriptedProvider) Call(ctx context.Context, request Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, request)
	i := len(p.requests) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return &Response{Content: "done"}, nil
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// streamingScripted wraps scriptedProvider with a streaming path that
// chunks the response content.
type streamingScripted struct {
	scriptedProvider
}

func (p *streamingScripted) CallStream(ctx context.Context, request Request, onDelta StreamHandler) (*Response, error) {
	response, err := p.Call(ctx, request)
	if err != nil {
		return nil, err
	}
	for _, r := range response.Content {
		onDelta(string(r))
	}
	return response, nil
}

// recordingObserver captures the event sequence of a turn.
type recordingObserver struct {
	mu       sync.Mutex
	deltas   []string
	started  []string
	finished []ToolResult
	messages []Message
}

func (o *recordingObserver) ModelDelta(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deltas = append(o.deltas, text)
}

func (o *recordingObserver) ModelMessage(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func (o *recordingObserver) ToolCallStarted(call ToolCall) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, call.Name)
}

func (o *recordingObserver) ToolCallFinished(call ToolCall, result ToolResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, result)
}

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	r := tool.NewRegistry()
	require.NoError(t, r.Register(tool.Definition{
		Name:        "echo",
		Description: "Echo the given text back.",
		Parameters: []tool.Parameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params["text"], nil
		},
	}))
	require.NoError(t, r.Register(tool.Definition{
		Name:        "boom",
		Description: "Always fails.",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("boom")
		},
	}))
	return r
}

func testExecutor(t *testing.T, provider Provider) (*TurnExecutor, *Coordinator) {
	t.Helper()

	coord, err := NewCoordinator(testDefs()...)
	require.NoError(t, err)

	exec, err := NewTurnExecutor(ExecutorConfig{
		Registry:    testRegistry(t),
		Coordinator: coord,
		Provider:    provider,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	exec.retryBase = time.Millisecond
	return exec, coord
}

func activeAgent(tools ...string) Definition {
	return Definition{Name: "red_teamer", Model: "claude-sonnet-4-5", Tools: tools}
}

func TestExecuteTurnPlainText(t *testing.T) {
	t.Run("should return a final answer when the model calls no tools", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Content: "all clear"}}}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent("echo"), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "all clear", delta.FinalText)
		assert.Equal(t, 0, delta.ToolCallCount)
		require.Len(t, delta.Messages, 1)
		assert.Equal(t, RoleAssistant, delta.Messages[0].Role)
	})

	t.Run("should offer registered tools and handoff tools to the model", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Content: "ok"}}}
		exec, _ := testExecutor(t, provider)

		_, err := exec.ExecuteTurn(context.Background(), activeAgent("echo"), nil, nil)
		require.NoError(t, err)

		require.Len(t, provider.requests, 1)
		var names []string
		for _, schema := range provider.requests[0].Tools {
			names = append(names, schema.Name)
		}
		assert.Equal(t, []string{"echo", "transfer_to_bug_bounter"}, names)
	})
}

func TestExecuteTurnToolCalls(t *testing.T) {
	t.Run("should append one correlated result per call", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{
			Content: "running",
			ToolCalls: []ToolCall{
				{ID: "c1", Name: "echo", Arguments: map[string]interface{}{"text": "one"}},
				{ID: "c2", Name: "echo", Arguments: map[string]interface{}{"text": "two"}},
			},
		}}}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent("echo"), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, delta.ToolCallCount)
		require.Len(t, delta.Messages, 3)
		assert.Equal(t, RoleAssistant, delta.Messages[0].Role)
		assert.Equal(t, "c1", delta.Messages[1].ToolCallID)
		assert.Equal(t, "one", delta.Messages[1].Content)
		assert.Equal(t, "c2", delta.Messages[2].ToolCallID)
		assert.Equal(t, "two", delta.Messages[2].Content)
	})

	t.Run("should fold a tool failure into its result message", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{
			ToolCalls: []ToolCall{{ID: "c1", Name: "boom", Arguments: map[string]interface{}{}}},
		}}}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent("boom"), nil, nil)
		require.NoError(t, err)

		require.Len(t, delta.Messages, 2)
		assert.Equal(t, RoleTool, delta.Messages[1].Role)
		assert.Contains(t, delta.Messages[1].Content, "boom")
	})

	t.Run("should keep model order under parallel dispatch", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{
			ToolCalls: []ToolCall{
				{ID: "c1", Name: "echo", Arguments: map[string]interface{}{"text": "first"}},
				{ID: "c2", Name: "boom", Arguments: map[string]interface{}{}},
				{ID: "c3", Name: "echo", Arguments: map[string]interface{}{"text": "third"}},
			},
		}}}
		exec, _ := testExecutor(t, provider)

		obs := &recordingObserver{}
		agent := activeAgent("echo", "boom")
		agent.ParallelTools = true

		delta, err := exec.ExecuteTurn(context.Background(), agent, nil, obs)
		require.NoError(t, err)

		require.Len(t, delta.Messages, 4)
		assert.Equal(t, "c1", delta.Messages[1].ToolCallID)
		assert.Equal(t, "c2", delta.Messages[2].ToolCallID)
		assert.Equal(t, "c3", delta.Messages[3].ToolCallID)

		assert.Equal(t, []string{"echo", "boom", "echo"}, obs.started)
		require.Len(t, obs.finished, 3)
		assert.Equal(t, "c1", obs.finished[0].ToolCallID)
		assert.Equal(t, "c3", obs.finished[2].ToolCallID)
	})
}

func TestExecuteTurnHandoff(t *testing.T) {
	t.Run("should convert a transfer call into a handoff request", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{
			ToolCalls: []ToolCall{{ID: "h1", Name: "transfer_to_bug_bounter"}},
		}}}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "bug_bounter", delta.Handoff)
		require.Len(t, delta.Messages, 2)
		assert.Equal(t, "h1", delta.Messages[1].ToolCallID)
		assert.Contains(t, delta.Messages[1].Content, "transferring to bug_bounter")
	})

	t.Run("should fail an unknown target without aborting the turn", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{
			ToolCalls: []ToolCall{{ID: "h1", Name: "transfer_to_ghost"}},
		}}}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		require.NoError(t, err)

		assert.Empty(t, delta.Handoff)
		require.Len(t, delta.Messages, 2)
		assert.Contains(t, delta.Messages[1].Content, "ghost")
	})

	t.Run("should honor only the first of two differing handoffs", func(t *testing.T) {
		coord, err := NewCoordinator(append(testDefs(), Definition{Name: "dfir", Model: "gpt-4o"})...)
		require.NoError(t, err)

		provider := &scriptedProvider{responses: []*Response{{
			ToolCalls: []ToolCall{
				{ID: "h1", Name: "transfer_to_bug_bounter"},
				{ID: "h2", Name: "transfer_to_dfir"},
			},
		}}}
		exec, err := NewTurnExecutor(ExecutorConfig{
			Registry:    testRegistry(t),
			Coordinator: coord,
			Provider:    provider,
			Logger:      zerolog.Nop(),
		})
		require.NoError(t, err)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "bug_bounter", delta.Handoff)
		assert.Contains(t, delta.Messages[2].Content, "already requested")
	})
}

func TestExecuteTurnRetry(t *testing.T) {
	t.Run("should retry a transient backend failure", func(t *testing.T) {
		provider := &scriptedProvider{
			errs:      []error{fmt.Errorf("429 rate limit exceeded"), nil},
			responses: []*Response{nil, {Content: "recovered"}},
		}
		exec, _ := testExecutor(t, provider)

		delta, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "recovered", delta.FinalText)
		assert.Equal(t, 2, provider.callCount())
	})

	t.Run("should fail fast on a non-retryable error", func(t *testing.T) {
		provider := &scriptedProvider{errs: []error{fmt.Errorf("invalid api key")}}
		exec, _ := testExecutor(t, provider)

		_, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		assert.ErrorIs(t, err, ErrModelBackend)
		assert.Equal(t, 1, provider.callCount())
	})

	t.Run("should give up after exhausting the retry budget", func(t *testing.T) {
		provider := &scriptedProvider{errs: []error{
			fmt.Errorf("503 overloaded"),
			fmt.Errorf("503 overloaded"),
			fmt.Errorf("503 overloaded"),
		}}
		exec, _ := testExecutor(t, provider)

		_, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, nil)
		assert.ErrorIs(t, err, ErrModelBackend)
		assert.Contains(t, err.Error(), "max retries")
		assert.Equal(t, 3, provider.callCount())
	})
}

func TestExecuteTurnStreaming(t *testing.T) {
	t.Run("should forward deltas from a streaming backend", func(t *testing.T) {
		provider := &streamingScripted{scriptedProvider{responses: []*Response{{Content: "hi"}}}}
		exec, _ := testExecutor(t, provider)

		obs := &recordingObserver{}
		delta, err := exec.ExecuteTurn(context.Background(), activeAgent(), nil, obs)
		require.NoError(t, err)

		assert.Equal(t, "hi", delta.FinalText)
		assert.Equal(t, []string{"h", "i"}, obs.deltas)
	})
}
