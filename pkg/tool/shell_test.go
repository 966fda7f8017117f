package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/strixops/strix/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupShellRegistry(t *testing.T) (*Registry, *session.Manager) {
	t.Helper()

	sessions := session.NewManager(session.Config{SweepInterval: time.Hour})
	t.Cleanup(sessions.Close)

	r := NewRegistry()
	require.NoError(t, RegisterShellTools(r, ShellOptions{Sessions: sessions}))
	require.NoError(t, RegisterSessionTools(r, sessions))
	return r, sessions
}

func TestIsInteractive(t *testing.T) {
	assert.True(t, isInteractive("nc -lvnp 4444"))
	assert.True(t, isInteractive("ssh user@host"))
	assert.True(t, isInteractive("  socat TCP-LISTEN:8080 -"))
	assert.False(t, isInteractive("ls -la"))
	assert.False(t, isInteractive("echo ssh"))
}

func TestGenericLinuxCommand(t *testing.T) {
	t.Run("should run a one-shot command to completion", func(t *testing.T) {
		r, _ := setupShellRegistry(t)

		result := r.Invoke(context.Background(), "generic_linux_command",
			map[string]interface{}{"command": "echo hello"}, time.Second)
		require.True(t, result.Success, result.Error)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(result.Output), &out))
		assert.Contains(t, out["stdout"], "hello")
		assert.EqualValues(t, 0, out["exit_code"])
	})

	t.Run("should report a nonzero exit code without failing the call", func(t *testing.T) {
		r, _ := setupShellRegistry(t)

		result := r.Invoke(context.Background(), "generic_linux_command",
			map[string]interface{}{"command": "exit 3"}, time.Second)
		require.True(t, result.Success, result.Error)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(result.Output), &out))
		assert.EqualValues(t, 3, out["exit_code"])
	})

	t.Run("should promote forced interactive commands to sessions", func(t *testing.T) {
		r, sessions := setupShellRegistry(t)

		result := r.Invoke(context.Background(), "generic_linux_command",
			map[string]interface{}{"command": "sleep 30", "interactive": true}, time.Second)
		require.True(t, result.Success, result.Error)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(result.Output), &out))
		id, _ := out["session_id"].(string)
		require.NotEmpty(t, id)

		infos := sessions.List()
		require.Len(t, infos, 1)
		assert.Equal(t, id, infos[0].ID)
	})
}

func TestSessionTools(t *testing.T) {
	t.Run("should drive a session end to end", func(t *testing.T) {
		r, _ := setupShellRegistry(t)
		ctx := context.Background()

		started := r.Invoke(ctx, "session_start",
			map[string]interface{}{"command": "cat"}, time.Second)
		require.True(t, started.Success, started.Error)

		var startOut map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(started.Output), &startOut))
		id := startOut["session_id"].(string)

		sent := r.Invoke(ctx, "session_input",
			map[string]interface{}{"session_id": id, "input": "marker"}, time.Second)
		require.True(t, sent.Success, sent.Error)

		require.Eventually(t, func() bool {
			polled := r.Invoke(ctx, "session_output",
				map[string]interface{}{"session_id": id, "offset": 0}, time.Second)
			return polled.Success && containsMarker(polled.Output)
		}, 2*time.Second, 20*time.Millisecond)

		killed := r.Invoke(ctx, "session_kill",
			map[string]interface{}{"session_id": id}, time.Second)
		require.True(t, killed.Success, killed.Error)

		// Second kill is a no-op, not an error.
		killed = r.Invoke(ctx, "session_kill",
			map[string]interface{}{"session_id": id}, time.Second)
		assert.True(t, killed.Success)
	})

	t.Run("should surface unknown session errors as failed results", func(t *testing.T) {
		r, _ := setupShellRegistry(t)

		result := r.Invoke(context.Background(), "session_output",
			map[string]interface{}{"session_id": "nope"}, time.Second)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "unknown session")
	})
}

func containsMarker(output string) bool {
	var chunk session.OutputChunk
	if err := json.Unmarshal([]byte(output), &chunk); err != nil {
		return false
	}
	return len(chunk.Data) > 0
}

func TestReconTools(t *testing.T) {
	t.Run("should validate required recon arguments", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, RegisterReconTools(r, ""))

		result := r.Invoke(context.Background(), "nmap_scan", map[string]interface{}{}, time.Second)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "invalid tool arguments")
	})

	t.Run("should reject unsupported dnsrecon scan types", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, RegisterReconTools(r, ""))

		result := r.Invoke(context.Background(), "dnsrecon_scan",
			map[string]interface{}{"domain": "example.com", "scan_type": "zone"}, time.Second)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "unsupported scan type")
	})
}
