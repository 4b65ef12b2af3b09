package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Parallel task orchestrator",
	Long: `Drover runs batches of shell tasks in parallel with bounded concurrency.

Tasks are defined in a YAML file. Independent tasks run side by side up to
the configured concurrency limit; tasks that declare dependencies run in
topological layers, each layer waiting for the previous one to finish.

Core capabilities:
- Validates dependency graphs up front (cycles, unknown references)
- Bounds parallelism with a fair FIFO worker pool
- Applies per-task timeout and retry policy
- Records run history for later inspection`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
