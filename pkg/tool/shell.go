package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/strixops/strix/pkg/session"
)

// interactivePrefixes lists commands that hold a terminal or socket open
// and therefore must run as sessions rather than one-shot invocations.
var interactivePrefixes = []string{
	"nc ", "nc -", "netcat ", "ncat ",
	"ssh ", "telnet ", "ftp ",
	"msfconsole", "socat ",
}

func isInteractive(command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, prefix := range interactivePrefixes {
		if strings.HasPrefix(trimmed, prefix) || trimmed == strings.TrimSpace(prefix) {
			return true
		}
	}
	return false
}

// ShellOptions configures the shell tool set.
type ShellOptions struct {
	// WorkDir is the working directory for one-shot commands.
	WorkDir string

	// Sessions receives interactive commands. Required.
	Sessions *session.Manager
}

// RegisterShellTools registers the generic command runner and its
// companions. generic_linux_command is the workhorse: non-interactive
// commands run to completion under the registry timeout, interactive ones
// (listeners, remote shells) are promoted to sessions and return the
// session id for later polling.
func RegisterShellTools(r *Registry, opts ShellOptions) error {
	if opts.Sessions == nil {
		return fmt.Errorf("session manager is required")
	}

	tools := []Definition{
		{
			Name: "generic_linux_command",
			Description: "Run a Linux shell command. Interactive commands (listeners, " +
				"remote shells) start a background session and return its id; use the " +
				"session tools to poll output and send input on later turns.",
			SessionAware: true,
			Parameters: []Parameter{
				{Name: "command", Type: "string", Description: "Shell command to run", Required: true},
				{Name: "interactive", Type: "boolean", Description: "Force the command into a background session"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				command, _ := params["command"].(string)
				command = strings.TrimSpace(command)
				if command == "" {
					return nil, fmt.Errorf("command is required")
				}

				interactive, _ := params["interactive"].(bool)
				if interactive || isInteractive(command) {
					id, err := opts.Sessions.Create(command)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"session_id": id,
						"message":    fmt.Sprintf("started background session %s; poll it with session_output", id),
					}, nil
				}

				return runShell(ctx, command, opts.WorkDir)
			},
		},
		{
			Name:        "ssh_command",
			Description: "Run a single command on a remote host over SSH using password authentication.",
			Parameters: []Parameter{
				{Name: "host", Type: "string", Description: "Remote host or IP", Required: true},
				{Name: "username", Type: "string", Description: "SSH username", Required: true},
				{Name: "password", Type: "string", Description: "SSH password", Required: true},
				{Name: "command", Type: "string", Description: "Command to run remotely", Required: true},
				{Name: "port", Type: "integer", Description: "SSH port", Default: 22},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				host, _ := params["host"].(string)
				user, _ := params["username"].(string)
				password, _ := params["password"].(string)
				command, _ := params["command"].(string)
				port := intParam(params["port"], 22)

				args := []string{
					"-p", password, "ssh",
					"-o", "StrictHostKeyChecking=no",
					"-o", "UserKnownHostsFile=/dev/null",
					"-p", fmt.Sprintf("%d", port),
					fmt.Sprintf("%s@%s", user, host),
					command,
				}
				return runArgv(ctx, "sshpass", args, opts.WorkDir)
			},
		},
		{
			Name:        "execute_code",
			Description: "Write a code snippet to a temporary file and execute it.",
			Parameters: []Parameter{
				{Name: "code", Type: "string", Description: "Source code to run", Required: true},
				{Name: "language", Type: "string", Description: "python, sh or bash", Default: "python"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				code, _ := params["code"].(string)
				if code == "" {
					return nil, fmt.Errorf("code is required")
				}
				language, _ := params["language"].(string)
				if language == "" {
					language = "python"
				}

				var ext, runner string
				switch language {
				case "python":
					ext, runner = ".py", "python3"
				case "sh", "bash":
					ext, runner = ".sh", "sh"
				default:
					return nil, fmt.Errorf("unsupported language: %s", language)
				}

				f, err := os.CreateTemp("", "strix-exec-*"+ext)
				if err != nil {
					return nil, fmt.Errorf("failed to create temp file: %w", err)
				}
				path := f.Name()
				defer os.Remove(path)

				if _, err := f.WriteString(code); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to write code: %w", err)
				}
				f.Close()

				return runArgv(ctx, runner, []string{filepath.Clean(path)}, opts.WorkDir)
			},
		},
		{
			Name:        "think",
			Description: "Record a reasoning step. Produces no output and has no side effects.",
			Parameters: []Parameter{
				{Name: "thought", Type: "string", Description: "The reasoning step", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return "", nil
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

// runShell executes command under /bin/sh -c and waits for completion.
func runShell(ctx context.Context, command, workDir string) (interface{}, error) {
	return runArgv(ctx, "/bin/sh", []string{"-c", command}, workDir)
}

// runArgv executes one command to completion, honoring ctx cancellation.
func runArgv(ctx context.Context, name string, args []string, workDir string) (interface{}, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}, nil
}

func intParam(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
