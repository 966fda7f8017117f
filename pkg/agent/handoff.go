package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandoffToolPrefix prefixes the synthetic tool exposed per registered
// agent. Calling transfer_to_<name> hands the conversation to that agent.
const HandoffToolPrefix = "transfer_to_"

// Coordinator is a small state machine over a closed set of agent
// definitions. It tracks which agent is active and validates transitions;
// an invalid handoff is a defined error, never undefined behavior.
type Coordinator struct {
	mu      sync.RWMutex
	agents  map[string]Definition
	current string
}

// NewCoordinator creates a coordinator over the given definitions.
func NewCoordinator(defs ...Definition) (*Coordinator, error) {
	c := &Coordinator{agents: make(map[string]Definition)}
	for _, def := range defs {
		if err := c.Register(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds an agent definition to the closed set.
func (c *Coordinator) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if def.Model == "" {
		return fmt.Errorf("agent %s has no model", def.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.agents[def.Name]; exists {
		return fmt.Errorf("agent already registered: %s", def.Name)
	}
	c.agents[def.Name] = def
	if c.current == "" {
		c.current = def.Name
	}
	return nil
}

// Get returns a registered definition by name.
func (c *Coordinator) Get(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.agents[name]
	return def, ok
}

// Names returns all registered agent names, sorted.
func (c *Coordinator) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.agents))
	for name := range c.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the active agent definition.
func (c *Coordinator) Current() Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agents[c.current]
}

// Activate transitions the active agent. A request for an unregistered
// name returns ErrUnknownAgent and leaves the active agent unchanged, so
// a malformed handoff cannot abort an otherwise productive run. History
// is untouched by design: the next agent sees the full conversation.
func (c *Coordinator) Activate(name string) (Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.agents[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	if c.current != name {
		log.Info().Str("from", c.current).Str("to", name).Msg("Agent handoff")
	}
	c.current = name
	return def, nil
}

// HandoffToolName returns the synthetic tool name for handing off to an
// agent.
func HandoffToolName(agent string) string {
	return HandoffToolPrefix + agent
}

// ParseHandoffTool extracts the target agent from a handoff tool name.
func ParseHandoffTool(toolName string) (string, bool) {
	if !strings.HasPrefix(toolName, HandoffToolPrefix) {
		return "", false
	}
	target := strings.TrimPrefix(toolName, HandoffToolPrefix)
	return target, target != ""
}

// HandoffSchemas returns one synthetic tool schema per registered agent
// other than exclude, so the model can request a transfer.
func (c *Coordinator) HandoffSchemas(exclude string) []ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.agents))
	for name := range c.agents {
		if name != exclude {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, ToolSchema{
			Name:        HandoffToolName(name),
			Description: fmt.Sprintf("Hand the conversation off to the %s agent. The full history is preserved.", name),
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		})
	}
	return schemas
}
