package process

import "errors"

var (
	// ErrSpawn indicates the underlying executable could not be launched.
	ErrSpawn = errors.New("failed to spawn process")

	// ErrClosed indicates the process has exited or its input stream was closed.
	ErrClosed = errors.New("process input is closed")
)
