package tool

import "errors"

var (
	// ErrUnknownTool indicates the requested tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments indicates the arguments do not satisfy the
	// tool's declared contract.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrExecution wraps a failure raised by the underlying tool.
	ErrExecution = errors.New("tool execution failed")

	// ErrTimeout indicates a one-shot invocation exceeded its deadline.
	// Session-aware tools are exempt: the process they start is expected
	// to outlive the call.
	ErrTimeout = errors.New("tool execution timeout")
)
