package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strixops/strix/internal/config"
	"github.com/strixops/strix/internal/gateway"
	"github.com/strixops/strix/internal/logger"
	"github.com/strixops/strix/internal/store"
	"github.com/strixops/strix/internal/tracing"
	"github.com/strixops/strix/pkg/agent"
	"github.com/strixops/strix/pkg/agents"
	"github.com/strixops/strix/pkg/session"
	"github.com/strixops/strix/pkg/tool"
)

var (
	runAgent    string
	runModel    string
	runMaxTurns int
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a security task through the agent loop",
	Long: `Run a task to completion: the active agent calls the model, executes
tool calls, and loops until it produces a final answer or hits the turn
limit. Interrupting with Ctrl-C stops the run at the next turn boundary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "red_teamer", "starting agent")
	runCmd.Flags().StringVar(&runModel, "model", "", "model id or alias (default from config)")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "turn limit override")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	if err := tracing.Setup("strix", version); err != nil {
		zl.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer tracing.Shutdown(context.Background())
	}

	sessions := session.NewManager(session.Config{
		Retention:     time.Duration(cfg.Sessions.RetentionS) * time.Second,
		SweepInterval: time.Duration(cfg.Sessions.SweepIntervalS) * time.Second,
		BufferLimit:   cfg.Sessions.BufferLimitBytes,
		WorkDir:       cfg.WorkDir,
	})
	defer sessions.Close()

	registry := tool.NewRegistry()
	if err := tool.RegisterShellTools(registry, tool.ShellOptions{WorkDir: cfg.WorkDir, Sessions: sessions}); err != nil {
		return err
	}
	if err := tool.RegisterSessionTools(registry, sessions); err != nil {
		return err
	}
	if err := tool.RegisterReconTools(registry, cfg.WorkDir); err != nil {
		return err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	coord, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}

	executor, err := agent.NewTurnExecutor(agent.ExecutorConfig{
		Registry:     registry,
		Coordinator:  coord,
		Provider:     provider,
		MaxRetries:   cfg.Runtime.MaxRetries,
		ModelTimeout: time.Duration(cfg.Runtime.ModelTimeoutS) * time.Second,
		ToolTimeout:  time.Duration(cfg.Runtime.ToolTimeoutS) * time.Second,
		Logger:       zl,
	})
	if err != nil {
		return err
	}

	runnerCfg := agent.RunnerConfig{
		Executor:    executor,
		Coordinator: coord,
		MaxTurns:    cfg.Runtime.MaxTurns,
		Logger:      zl,
	}
	if runMaxTurns > 0 {
		runnerCfg.MaxTurns = runMaxTurns
	}

	if cfg.Store.Enabled {
		st, err := store.New(store.Config{DBPath: cfg.Store.DBPath, Logger: zl})
		if err != nil {
			return err
		}
		defer st.Close()
		runnerCfg.Store = st
	}

	runner, err := agent.NewRunner(runnerCfg)
	if err != nil {
		return err
	}

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw, err = gateway.NewServer(gateway.Config{
			Addr:         fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
			SharedSecret: cfg.Gateway.SharedSecret,
			Logger:       zl,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := gw.Start(); err != nil {
				zl.Error().Err(err).Msg("Gateway stopped")
			}
		}()
		defer gw.Shutdown(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := strings.Join(args, " ")
	initial := []agent.Message{{Role: agent.RoleUser, Content: prompt}}

	var state agent.RunState
	for evt := range runner.Stream(ctx, initial, runAgent) {
		if gw != nil {
			gw.Broadcast(evt)
		}
		printEvent(cmd, evt)
		if evt.Type == agent.EventRunFinished && evt.State != nil {
			state = *evt.State
		}
	}

	switch {
	case state.Status == agent.StatusFailed:
		return fmt.Errorf("run %s failed after %d turns: %v", state.RunID, state.TurnCount, state.Err)
	case state.Cancelled:
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s cancelled after %d turns\n", state.RunID, state.TurnCount)
	case state.Truncated:
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s hit the turn limit (%d turns)\n", state.RunID, state.TurnCount)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s completed in %d turns\n", state.RunID, state.TurnCount)
	}
	return nil
}

func printEvent(cmd *cobra.Command, evt agent.Event) {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case agent.EventModelMessage:
		if evt.Message != nil && evt.Message.Content != "" {
			fmt.Fprintf(out, "[%s] %s\n", evt.Agent, evt.Message.Content)
		}
	case agent.EventToolCallStarted:
		if evt.ToolCall != nil {
			fmt.Fprintf(out, "  -> %s\n", evt.ToolCall.Name)
		}
	case agent.EventToolCallFinished:
		if evt.Result != nil && !evt.Result.Success {
			fmt.Fprintf(out, "  !! %s\n", evt.Result.Error)
		}
	case agent.EventAgentChanged:
		fmt.Fprintf(out, "== handoff to %s ==\n", evt.Agent)
	}
}

// buildProvider selects the highest-priority configured profile, falling
// back to API keys from the environment.
func buildProvider(cfg *config.Config) (agent.Provider, error) {
	profiles := append([]config.AIProfile(nil), cfg.AI.Profiles...)
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Priority < profiles[j].Priority })

	for _, p := range profiles {
		if p.APIKey != "" {
			return agent.NewProvider(agent.AuthProfile{Provider: p.Provider, APIKey: p.APIKey})
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return agent.NewProvider(agent.AuthProfile{Provider: "anthropic", APIKey: key})
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return agent.NewProvider(agent.AuthProfile{Provider: "openai", APIKey: key})
	}
	return nil, fmt.Errorf("no AI provider configured: add a profile or set ANTHROPIC_API_KEY/OPENAI_API_KEY")
}

// buildCoordinator registers the built-in catalog plus any configured
// agents. A configured agent with a catalog name replaces the built-in.
func buildCoordinator(cfg *config.Config) (*agent.Coordinator, error) {
	model := cfg.ResolveModel(runModel)

	configured := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		configured[a.Name] = true
	}

	var defs []agent.Definition
	for _, def := range agents.Catalog(model) {
		if !configured[def.Name] {
			defs = append(defs, def)
		}
	}
	for _, a := range cfg.Agents {
		defs = append(defs, agent.Definition{
			Name:          a.Name,
			Instructions:  a.SystemPrompt,
			Model:         cfg.ResolveModel(a.Model),
			Tools:         a.Tools,
			ParallelTools: a.ParallelTools,
			Temperature:   a.Temperature,
			MaxTokens:     a.MaxTokens,
		})
	}

	return agent.NewCoordinator(defs...)
}
