package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strixops/strix/internal/config"
	"github.com/strixops/strix/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored run transcripts",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if !cfg.Store.Enabled {
		return fmt.Errorf("transcript store is disabled in the configuration")
	}

	st, err := store.New(store.Config{DBPath: cfg.Store.DBPath, Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored runs")
		return nil
	}

	for _, r := range runs {
		flags := ""
		if r.Truncated {
			flags += " truncated"
		}
		if r.Cancelled {
			flags += " cancelled"
		}
		fmt.Fprintf(out, "%s  %s  %s  %d turns  %s%s\n",
			r.RunID,
			time.Unix(r.CreatedAt, 0).Format(time.RFC3339),
			r.ActiveAgent,
			r.TurnCount,
			r.Status,
			flags,
		)
	}
	return nil
}
