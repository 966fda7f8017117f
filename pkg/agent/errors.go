package agent

import "errors"

var (
	// ErrUnknownAgent indicates a handoff named an unregistered agent.
	// Handoff is advisory: the run continues under the current agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrModelBackend indicates the model backend failed after the
	// configured retry budget. Fatal to the run.
	ErrModelBackend = errors.New("model backend failed")

	// ErrModelTimeout indicates a model call exceeded its deadline.
	ErrModelTimeout = errors.New("model call timeout")
)
