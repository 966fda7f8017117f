package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should return defaults when no file exists", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.Runtime.MaxTurns)
		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.Store.DBPath)
	})

	t.Run("should overlay file values onto defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.json")
		content := `{
			"runtime": {"max_turns": 5},
			"gateway": {"enabled": true, "port": 9090},
			"agents": [{"name": "custom", "model": "gpt-4o"}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Runtime.MaxTurns)
		assert.True(t, cfg.Gateway.Enabled)
		assert.Equal(t, 9090, cfg.Gateway.Port)
		// Untouched sections keep their defaults.
		assert.Equal(t, 3, cfg.Runtime.MaxRetries)
		require.Len(t, cfg.Agents, 1)
		assert.Equal(t, "custom", cfg.Agents[0].Name)
	})

	t.Run("should reject a malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})
}

func TestSave(t *testing.T) {
	t.Run("should round-trip through load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strix.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.WorkDir = "/tmp/engagement"
		cfg.Gateway.SharedSecret = "hunter2"
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/engagement", loaded.WorkDir)
		assert.Equal(t, "hunter2", loaded.Gateway.SharedSecret)
	})
}
