package tool

import (
	"context"
	"fmt"

	"github.com/strixops/strix/pkg/session"
)

// RegisterSessionTools registers the session control surface: start, list,
// poll output, send input and kill. These are the tools that let the model
// keep a reverse-shell listener alive across turns while it reasons about
// other work.
func RegisterSessionTools(r *Registry, sessions *session.Manager) error {
	if sessions == nil {
		return fmt.Errorf("session manager is required")
	}

	tools := []Definition{
		{
			Name:         "session_start",
			Description:  "Start a long-running command in a background session and return its id.",
			SessionAware: true,
			Parameters: []Parameter{
				{Name: "command", Type: "string", Description: "Shell command to run", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				command, _ := params["command"].(string)
				id, err := sessions.Create(command)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"session_id": id}, nil
			},
		},
		{
			Name:         "session_list",
			Description:  "List registered sessions with their commands and states.",
			SessionAware: true,
			Parameters:   []Parameter{},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return sessions.List(), nil
			},
		},
		{
			Name:         "session_output",
			Description:  "Read new output from a session since the given offset. Returns the offset to resume from.",
			SessionAware: true,
			Parameters: []Parameter{
				{Name: "session_id", Type: "string", Description: "Session id", Required: true},
				{Name: "offset", Type: "integer", Description: "Resume offset from the previous read", Default: 0},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				id, _ := params["session_id"].(string)
				offset := int64(intParam(params["offset"], 0))
				chunk, err := sessions.Output(id, offset)
				if err != nil {
					return nil, err
				}
				return chunk, nil
			},
		},
		{
			Name:         "session_input",
			Description:  "Send input to a session's stdin. A trailing newline is added when missing.",
			SessionAware: true,
			Parameters: []Parameter{
				{Name: "session_id", Type: "string", Description: "Session id", Required: true},
				{Name: "input", Type: "string", Description: "Text to send", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				id, _ := params["session_id"].(string)
				input, _ := params["input"].(string)
				if len(input) == 0 || input[len(input)-1] != '\n' {
					input += "\n"
				}
				if err := sessions.Input(id, input); err != nil {
					return nil, err
				}
				return "input sent", nil
			},
		},
		{
			Name:         "session_kill",
			Description:  "Terminate a session's process. Idempotent.",
			SessionAware: true,
			Parameters: []Parameter{
				{Name: "session_id", Type: "string", Description: "Session id", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				id, _ := params["session_id"].(string)
				if err := sessions.Kill(id); err != nil {
					return nil, err
				}
				return "session killed", nil
			},
		},
	}

	for _, def := range tools {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}
