package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider checks the provider is one the runtime can drive
func (v *Validator) ValidateProvider(provider string) error {
	switch provider {
	case "anthropic", "openai":
		return nil
	}
	return fmt.Errorf("unsupported provider: %s", provider)
}

// ValidateAgent validates an agent configuration entry
func (v *Validator) ValidateAgent(agent AgentConfig) error {
	if agent.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if agent.Model == "" {
		return fmt.Errorf("agent %s has no model", agent.Name)
	}
	if agent.Temperature < 0 || agent.Temperature > 2 {
		return fmt.Errorf("agent %s temperature out of range: %f", agent.Name, agent.Temperature)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// Validate checks the whole configuration
func (v *Validator) Validate(cfg *Config) error {
	if cfg.Models.Default == "" {
		return fmt.Errorf("default model cannot be empty")
	}
	if cfg.Logging.Level != "" {
		if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
			return err
		}
	}
	for _, agent := range cfg.Agents {
		if err := v.ValidateAgent(agent); err != nil {
			return err
		}
	}
	for _, profile := range cfg.AI.Profiles {
		if err := v.ValidateProvider(profile.Provider); err != nil {
			return err
		}
	}
	if cfg.Gateway.Enabled && (cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535) {
		return fmt.Errorf("invalid gateway port: %d", cfg.Gateway.Port)
	}
	if cfg.Runtime.MaxTurns < 0 {
		return fmt.Errorf("max_turns cannot be negative")
	}
	return nil
}

// ResolveModel expands a model alias to its canonical id
func (cfg *Config) ResolveModel(name string) string {
	if name == "" {
		name = cfg.Models.Default
	}
	if canonical, ok := cfg.Models.Aliases[name]; ok {
		return canonical
	}
	return name
}
