package config

// Config represents the main Strix configuration
type Config struct {
	// Agents
	Agents []AgentConfig `json:"agents" mapstructure:"agents"`

	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// AI provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Runtime bounds for the agent loop
	Runtime RuntimeConfig `json:"runtime" mapstructure:"runtime"`

	// Sessions
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Transcript store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Working directory for tools and sessions
	WorkDir string `json:"work_dir" mapstructure:"work_dir"`
}

// AgentConfig represents an agent configuration. Entries here extend or
// override the built-in catalog.
type AgentConfig struct {
	Name          string   `json:"name" mapstructure:"name"`
	Model         string   `json:"model" mapstructure:"model"`
	SystemPrompt  string   `json:"system_prompt" mapstructure:"system_prompt"`
	Tools         []string `json:"tools" mapstructure:"tools"`
	ParallelTools bool     `json:"parallel_tools" mapstructure:"parallel_tools"`
	Temperature   float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int      `json:"max_tokens" mapstructure:"max_tokens"`
}

// ModelsConfig holds model configuration
type ModelsConfig struct {
	Default string            `json:"default" mapstructure:"default"`
	Aliases map[string]string `json:"aliases" mapstructure:"aliases"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// RuntimeConfig bounds the run loop
type RuntimeConfig struct {
	MaxTurns      int `json:"max_turns" mapstructure:"max_turns"`
	MaxRetries    int `json:"max_retries" mapstructure:"max_retries"`
	ModelTimeoutS int `json:"model_timeout_s" mapstructure:"model_timeout_s"`
	ToolTimeoutS  int `json:"tool_timeout_s" mapstructure:"tool_timeout_s"`
}

// SessionsConfig holds interactive session settings
type SessionsConfig struct {
	BufferLimitBytes int `json:"buffer_limit_bytes" mapstructure:"buffer_limit_bytes"`
	RetentionS       int `json:"retention_s" mapstructure:"retention_s"`
	SweepIntervalS   int `json:"sweep_interval_s" mapstructure:"sweep_interval_s"`
}

// StoreConfig holds transcript store settings
type StoreConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"db_path" mapstructure:"db_path"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Default: "claude-sonnet-4-5",
			Aliases: map[string]string{
				"sonnet": "claude-sonnet-4-5",
				"gpt4o":  "gpt-4o",
			},
		},
		Runtime: RuntimeConfig{
			MaxTurns:      20,
			MaxRetries:    3,
			ModelTimeoutS: 120,
			ToolTimeoutS:  30,
		},
		Sessions: SessionsConfig{
			BufferLimitBytes: 2 * 1024 * 1024,
			RetentionS:       300,
			SweepIntervalS:   30,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}
