package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/report"
	"github.com/drover-dev/drover/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `Show run history recorded by previous invocations of drover run.

With no arguments, lists recent runs. With a run ID, shows the per-task
outcomes of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history is disabled (history.path is empty)")
	}

	db, err := state.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating history: %w", err)
	}

	if len(args) == 1 {
		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run with ID %q", args[0])
		}
		tasks, err := db.GetRunTasks(run.ID)
		if err != nil {
			return err
		}
		report.WriteRunDetail(os.Stdout, run, tasks)
		return nil
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	report.WriteRunList(os.Stdout, runs)
	return nil
}
