package agent

import (
	"regexp"
	"strings"
)

// Message roles. Ordering in a conversation history is significant and
// append-only: history is never mutated in place, only extended.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one entry in the conversation history.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation. Its ID is the correlation
// key: exactly one later tool-role message references it.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the outcome of one ToolCall, produced exactly once.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Definition describes one agent: its name, system prompt, tool surface
// and model. Immutable once constructed; multiple definitions coexist and
// are selected by name through the handoff coordinator.
type Definition struct {
	Name         string   `json:"name"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Tools        []string `json:"tools,omitempty"`

	// ParallelTools allows concurrent dispatch when the agent declares
	// its tools mutually independent. Default is sequential, in model
	// order, because later calls may depend on earlier ones.
	ParallelTools bool `json:"parallel_tools,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// RunStatus is the terminal disposition of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunState is owned exclusively by the run controller. Turn executors
// receive a view of the history and return a delta; they never mutate it.
type RunState struct {
	RunID       string    `json:"run_id"`
	History     []Message `json:"history"`
	ActiveAgent string    `json:"active_agent"`
	TurnCount   int       `json:"turn_count"`
	Status      RunStatus `json:"status"`

	// Truncated marks a run that hit the turn limit. It is a completed
	// run, not a failed one.
	Truncated bool `json:"truncated,omitempty"`

	// Cancelled marks a run stopped at a turn boundary by its consumer.
	Cancelled bool `json:"cancelled,omitempty"`

	// Err carries the fatal control-plane error for failed runs.
	Err error `json:"-"`
}

// TokenUsage tracks token consumption reported by the backend.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TurnDelta is what one executed turn appends to the run.
type TurnDelta struct {
	Messages []Message `json:"messages"`

	// Handoff names the next active agent, validated against the
	// coordinator's registered set before being set.
	Handoff string `json:"handoff,omitempty"`

	// FinalText is the assistant's plain text answer when the turn
	// produced no tool calls.
	FinalText string `json:"final_text,omitempty"`

	ToolCallCount int `json:"tool_call_count"`
}

// IsRetryableError reports whether a model backend error is worth another
// attempt (transient network failures, rate limits, server errors).
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range []string{
		"ECONNRESET", "ETIMEDOUT", "connection reset", "connection refused",
		"rate limit", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return retryableStatusRe.MatchString(msg)
}

// Status codes must appear as standalone tokens so an id or port that
// happens to contain the digits does not trigger a retry.
var retryableStatusRe = regexp.MustCompile(`\b(429|500|502|503|504)\b`)

func cloneHistory(history []Message) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	return out
}
