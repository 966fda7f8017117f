package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/strixops/strix/internal/observability"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultTimeout bounds one-shot tool invocations without an explicit
// deadline.
const DefaultTimeout = 30 * time.Second

const maxOutputSize = 10 * 1024

// Parameter defines a parameter for a tool.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition defines a tool's contract and handler. SessionAware tools
// create or target a session manager entry instead of running to
// completion, so they are dispatched without a deadline.
type Definition struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Parameters   []Parameter `json:"parameters"`
	SessionAware bool        `json:"session_aware,omitempty"`
	Handler      Handler     `json:"-"`
}

// Result is the uniform outcome of a tool invocation. Invoke never raises
// to its caller; every failure is folded into Success=false so the agent
// loop keeps running and the model sees the failure as information.
type Result struct {
	Success   bool   `json:"success"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Registry maps tool names to their contracts and validates arguments
// against compiled JSON Schemas before dispatch.
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	observability.EnsureRegistered()
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Bool("session_aware", def.SessionAware).Msg("Tool registered")
	return nil
}

// Get returns a tool definition by name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions resolves a set of tool names to their definitions, skipping
// names that are not registered.
func (r *Registry) Definitions(names []string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if def, ok := r.tools[name]; ok {
			defs = append(defs, *def)
		}
	}
	return defs
}

// Invoke executes a tool by name. Unknown names, argument violations,
// handler failures and timeouts all come back as failed Results carrying
// the taxonomy error text, never as a Go error or panic.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}, timeout time.Duration) Result {
	start := time.Now()

	r.mu.RLock()
	def := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if def == nil {
		log.Warn().Str("tool", name).Msg("Tool not found")
		return failed(name, start, fmt.Errorf("%w: %s", ErrUnknownTool, name))
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParams(schema, params); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Argument validation failed")
		return failed(name, start, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}

	// Session-aware tools run without a deadline: the process they start
	// outlives the call and is polled on later turns.
	execCtx := ctx
	if !def.SessionAware {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Debug().Str("tool", name).Msg("Executing tool")

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)

	go func() {
		out, err := def.Handler(execCtx, params)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- out
	}()

	select {
	case out := <-resultCh:
		text, truncated := renderOutput(out)
		observability.RecordToolExecution(name, time.Since(start), true)
		log.Debug().Str("tool", name).Dur("duration", time.Since(start)).Msg("Tool execution completed")
		return Result{Success: true, Output: text, Truncated: truncated}

	case err := <-errCh:
		return failed(name, start, fmt.Errorf("%w: %v", ErrExecution, err))

	case <-execCtx.Done():
		if !def.SessionAware && execCtx.Err() == context.DeadlineExceeded {
			return failed(name, start, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, name))
		}
		return failed(name, start, fmt.Errorf("%w: %v", ErrExecution, execCtx.Err()))
	}
}

func failed(name string, start time.Time, err error) Result {
	observability.RecordToolExecution(name, time.Since(start), false)
	log.Warn().Str("tool", name).Err(err).Msg("Tool invocation failed")
	return Result{Success: false, Error: err.Error()}
}

// renderOutput flattens a handler's return value to text and truncates
// oversized payloads so one noisy tool cannot flood the conversation.
func renderOutput(out interface{}) (string, bool) {
	var text string
	switch v := out.(type) {
	case nil:
		text = ""
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprintf("%v", v)
		} else {
			text = string(data)
		}
	}

	if len(text) > maxOutputSize {
		return text[:maxOutputSize] + "\n... [output truncated]", true
	}
	return text, false
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}
	return nil
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateParams(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		issues := []string{}
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return fmt.Errorf("validation errors: %v", issues)
	}
	return nil
}
