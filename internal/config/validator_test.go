package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("should accept well-formed keys", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-ant-abc123", "anthropic"))
		assert.NoError(t, v.ValidateAPIKey("sk-abc123", "openai"))
	})

	t.Run("should reject empty and malformed keys", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("", "anthropic"))
		assert.Error(t, v.ValidateAPIKey("abc123", "anthropic"))
		assert.Error(t, v.ValidateAPIKey("ant-123", "openai"))
	})
}

func TestValidateAgent(t *testing.T) {
	v := NewValidator()

	t.Run("should accept a complete agent", func(t *testing.T) {
		assert.NoError(t, v.ValidateAgent(AgentConfig{Name: "red_teamer", Model: "claude-sonnet-4-5"}))
	})

	t.Run("should reject missing name or model", func(t *testing.T) {
		assert.Error(t, v.ValidateAgent(AgentConfig{Model: "m"}))
		assert.Error(t, v.ValidateAgent(AgentConfig{Name: "a"}))
	})

	t.Run("should reject an out-of-range temperature", func(t *testing.T) {
		assert.Error(t, v.ValidateAgent(AgentConfig{Name: "a", Model: "m", Temperature: 3}))
	})
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	t.Run("should accept the defaults", func(t *testing.T) {
		assert.NoError(t, v.Validate(DefaultConfig()))
	})

	t.Run("should reject an unsupported provider profile", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AI.Profiles = []AIProfile{{ID: "p", Provider: "gemini"}}
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("should reject a bad gateway port when enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gateway.Enabled = true
		cfg.Gateway.Port = 0
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("should reject an unknown log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		assert.Error(t, v.Validate(cfg))
	})
}
