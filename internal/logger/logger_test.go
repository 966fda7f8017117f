package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLogLine(t *testing.T, path string) map[string]interface{} {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Run("should write json entries carrying run identity", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.log")

		lg, err := New(Config{Level: "debug", File: path})
		require.NoError(t, err)

		lg.Info().
			Str("run_id", "run_2f8a").
			Str("agent", "red_teamer").
			Str("tool", "terminal_execute").
			Msg("Tool executed")
		require.NoError(t, lg.Close())

		entry := readLogLine(t, path)
		assert.Equal(t, "run_2f8a", entry["run_id"])
		assert.Equal(t, "red_teamer", entry["agent"])
		assert.Equal(t, "terminal_execute", entry["tool"])
		assert.Equal(t, "Tool executed", entry["message"])
	})

	t.Run("should scrub credentials that leak through tool output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.log")

		lg, err := New(Config{Level: "info", File: path, Redaction: true})
		require.NoError(t, err)

		lg.Info().
			Str("command", "sshpass -p hunter2 ssh root@10.0.0.5").
			Msg("Executing command")
		require.NoError(t, lg.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "[REDACTED:sshpass]")
		assert.NotContains(t, string(raw), "hunter2")
	})

	t.Run("should fall back to info for an unknown level", func(t *testing.T) {
		lg, err := New(Config{Level: "chatty", Console: true})
		require.NoError(t, err)
		defer lg.Close()

		assert.Equal(t, zerolog.InfoLevel, lg.GetZerolog().GetLevel())
	})

	t.Run("should work with console output alone", func(t *testing.T) {
		lg, err := New(Config{Level: "info", Console: true, Pretty: true})
		require.NoError(t, err)
		assert.NoError(t, lg.Close())
	})
}

func TestLoggerWith(t *testing.T) {
	t.Run("should stamp child fields on every entry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.log")

		lg, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)

		child := lg.With().Str("component", "gateway").Logger()
		child.Warn().Msg("Client disconnected")
		require.NoError(t, lg.Close())

		entry := readLogLine(t, path)
		assert.Equal(t, "gateway", entry["component"])
		assert.Equal(t, "Client disconnected", entry["message"])
	})
}

func TestLoggerClose(t *testing.T) {
	t.Run("should be a no-op without a log file", func(t *testing.T) {
		lg, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)

		assert.NoError(t, lg.Close())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}
