package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	t.Run("should retry transient network and server failures", func(t *testing.T) {
		for _, msg := range []string{
			"read tcp: ECONNRESET",
			"dial tcp 10.0.0.1:443: connection refused",
			"anthropic: 429 Too Many Requests",
			"openai: 500 Internal Server Error",
			"upstream returned 503",
			"model overloaded, try again later",
		} {
			assert.True(t, IsRetryableError(errors.New(msg)), msg)
		}
	})

	t.Run("should not retry errors that merely contain the digits", func(t *testing.T) {
		for _, msg := range []string{
			"dial tcp 127.0.0.1:8500: no route to host",
			"tool run-5020 failed",
			"object 14290 not found",
			"invalid api key",
		} {
			assert.False(t, IsRetryableError(errors.New(msg)), msg)
		}
	})

	t.Run("should not retry a nil error", func(t *testing.T) {
		assert.False(t, IsRetryableError(nil))
	})
}
