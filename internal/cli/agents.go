package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strixops/strix/internal/config"
	"github.com/strixops/strix/pkg/agents"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agents",
	Long:  `List the built-in agent catalog plus any agents from the configuration.`,
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	model := cfg.ResolveModel("")

	for _, def := range agents.Catalog(model) {
		fmt.Fprintf(out, "%s (builtin)\n", def.Name)
		fmt.Fprintf(out, "  model: %s\n", def.Model)
		fmt.Fprintf(out, "  tools: %s\n", strings.Join(def.Tools, ", "))
	}
	for _, a := range cfg.Agents {
		fmt.Fprintf(out, "%s (configured)\n", a.Name)
		fmt.Fprintf(out, "  model: %s\n", cfg.ResolveModel(a.Model))
		fmt.Fprintf(out, "  tools: %s\n", strings.Join(a.Tools, ", "))
	}
	return nil
}
