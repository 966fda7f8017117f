package agent

import (
	"context"
	"sync/atomic"
	"time"
)

// EventType identifies a streamed run event.
type EventType string

const (
	// EventModelDelta carries an incremental text token, when the
	// backend supports streaming.
	EventModelDelta EventType = "model_delta"

	// EventModelMessage carries the fully resolved assistant message
	// for a turn.
	EventModelMessage EventType = "model_message"

	EventToolCallStarted  EventType = "tool_call_started"
	EventToolCallFinished EventType = "tool_call_finished"

	// EventAgentChanged signals a successful handoff.
	EventAgentChanged EventType = "agent_changed"

	// EventRunFinished is the terminal event; it carries the final
	// RunState and closes the stream.
	EventRunFinished EventType = "run_finished"
)

// Event is one element of a run's streamed event sequence. Within a turn
// the order is: model events, then tool-call events in dispatch order,
// then an agent change if any.
type Event struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Agent     string      `json:"agent"`
	Seq       int64       `json:"seq"`
	Timestamp int64       `json:"timestamp"`
	Delta     string      `json:"delta,omitempty"`
	Message   *Message    `json:"message,omitempty"`
	ToolCall  *ToolCall   `json:"tool_call,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
	State     *RunState   `json:"state,omitempty"`
}

// eventEmitter adapts the turn observer contract onto a buffered event
// channel. Emission never blocks run progress: when the consumer lags
// past the buffer, events are dropped rather than stalling a turn.
type eventEmitter struct {
	ch    chan Event
	runID string
	agent string
	seq   atomic.Int64
}

func newEventEmitter(runID, agent string, buffer int) *eventEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &eventEmitter{
		ch:    make(chan Event, buffer),
		runID: runID,
		agent: agent,
	}
}

func (em *eventEmitter) emit(evt Event) {
	evt.RunID = em.runID
	evt.Agent = em.agent
	evt.Seq = em.seq.Add(1)
	evt.Timestamp = time.Now().UnixMilli()

	select {
	case em.ch <- evt:
	default:
	}
}

// emitTerminal blocks until the terminal event is accepted or ctx is
// cancelled, so a consumer that stopped ranging does not strand the run
// goroutine behind a full buffer.
func (em *eventEmitter) emitTerminal(ctx context.Context, state RunState) {
	evt := Event{Type: EventRunFinished, State: &state}
	evt.RunID = em.runID
	evt.Agent = em.agent
	evt.Seq = em.seq.Add(1)
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case em.ch <- evt:
	case <-ctx.Done():
	}
}

func (em *eventEmitter) ModelDelta(text string) {
	em.emit(Event{Type: EventModelDelta, Delta: text})
}

func (em *eventEmitter) ModelMessage(msg Message) {
	em.emit(Event{Type: EventModelMessage, Message: &msg})
}

func (em *eventEmitter) ToolCallStarted(call ToolCall) {
	em.emit(Event{Type: EventToolCallStarted, ToolCall: &call})
}

func (em *eventEmitter) ToolCallFinished(call ToolCall, result ToolResult) {
	em.emit(Event{Type: EventToolCallFinished, ToolCall: &call, Result: &result})
}

func (em *eventEmitter) AgentChanged(from, to string) {
	em.agent = to
	em.emit(Event{Type: EventAgentChanged})
}
