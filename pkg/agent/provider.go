package agent

import (
	"context"
	"fmt"

	"github.com/strixops/strix/pkg/tool"
)

// Request contains the parameters for one model backend call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSchema
	Temperature  float64
	MaxTokens    int
}

// ToolSchema is the provider-neutral description of one callable tool.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Response is the backend's answer: either plain text or an ordered
// sequence of tool calls.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// Provider is the model backend contract. Backends that cannot stream or
// cannot emit more than one tool call per turn still satisfy it; the
// runtime degrades accordingly.
type Provider interface {
	Call(ctx context.Context, request Request) (*Response, error)
	Name() string
}

// StreamHandler receives incremental text deltas during a streaming call.
type StreamHandler func(delta string)

// StreamingProvider is implemented by backends that support incremental
// tokens. The runtime falls back to Call for everything else.
type StreamingProvider interface {
	Provider
	CallStream(ctx context.Context, request Request, onDelta StreamHandler) (*Response, error)
}

// AuthProfile holds credentials for one backend.
type AuthProfile struct {
	Provider string `json:"provider"` // "anthropic" or "openai"
	APIKey   string `json:"api_key"`
}

// NewProvider creates a model backend from an auth profile.
func NewProvider(profile AuthProfile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// SchemaForTool converts a registry definition into the provider-neutral
// tool schema shape.
func SchemaForTool(def tool.Definition) ToolSchema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return ToolSchema{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
}
