package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/events"
	"github.com/drover-dev/drover/internal/orchestrator"
	"github.com/drover-dev/drover/internal/report"
	"github.com/drover-dev/drover/internal/runner"
	"github.com/drover-dev/drover/internal/state"
	"github.com/drover-dev/drover/internal/taskfile"
	"github.com/drover-dev/drover/pkg/models"
)

var (
	runFile             string
	runWorkDir          string
	runMaxConcurrency   int
	runTimeout          time.Duration
	runRetry            bool
	runMaxRetries       int
	runRetryDelay       time.Duration
	runStopOnFirstError bool
	runNoHistory        bool
	runQuiet            bool
	runDebugLog         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a task file",
	Long: `Run the tasks defined in a YAML task file.

Tasks without dependencies run as one parallel batch. When any task
declares depends_on, the whole batch runs layer by layer in dependency
order. Either way, at most max-concurrency tasks run at once.

Examples:
  drover run                        # Run ./drover.yaml
  drover run -f build.yaml          # Run a specific task file
  drover run --max-concurrency 10   # Override the concurrency limit
  drover run --retry --max-retries 5`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "drover.yaml", "Task file to run")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "Working directory for task commands")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Maximum tasks running at once")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-attempt task timeout")
	runCmd.Flags().BoolVar(&runRetry, "retry", false, "Retry failed tasks")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "Retries after the first attempt")
	runCmd.Flags().DurationVar(&runRetryDelay, "retry-delay", 0, "Delay between attempts")
	runCmd.Flags().BoolVar(&runStopOnFirstError, "stop-on-first-error", false, "Cancel remaining tasks after the first permanent failure")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording this run in history")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress live task output")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write internal trace to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	tasks, err := taskfile.Load(runFile)
	if err != nil {
		return err
	}

	hasDeps := false
	for _, t := range tasks {
		if len(t.DependsOn) > 0 {
			hasDeps = true
			break
		}
	}

	var execOpts []orchestrator.Option

	bus := events.NewBus(false)
	defer bus.Close()
	execOpts = append(execOpts, orchestrator.WithEventBus(bus))

	if runDebugLog == "" {
		runDebugLog = cfg.Debug.LogFile
	}
	if runDebugLog != "" {
		dl, err := orchestrator.NewDebugLogger(runDebugLog)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		defer dl.Close()
		execOpts = append(execOpts, orchestrator.WithDebugLogger(dl))
	}

	work := runner.New(runWorkDir)
	exec := orchestrator.New(work.Run, cfg.Options(), execOpts...)

	// Ctrl-C cancels cooperatively: running tasks finish, the rest are
	// marked cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !runQuiet {
		go printEvents(ctx, bus)
	}

	// Edits to the project config while a run is in flight resize the pool.
	if projectCfg := config.GetProjectConfigPath(); projectCfg != "" {
		w, err := config.Watch(projectCfg, func(next *config.Config) {
			exec.Pool().Resize(next.Orchestrator.MaxConcurrency)
		})
		if err == nil {
			defer w.Close()
		}
	}

	fmt.Printf("Running %d task(s) from %s (max %d at once)\n",
		len(tasks), runFile, cfg.Orchestrator.MaxConcurrency)

	var result *models.ExecutionResult
	if hasDeps {
		result, err = exec.ExecuteWithDependencies(ctx, tasks)
	} else {
		result, err = exec.Execute(ctx, tasks)
	}
	if err != nil {
		return err
	}

	report.WriteResult(os.Stdout, result)

	if !runNoHistory && cfg.History.Path != "" {
		if err := saveHistory(cfg.History.Path, result, tasks); err != nil {
			fmt.Fprintf(os.Stderr, "%s recording history: %v\n", color.YellowString("warning:"), err)
		}
	}

	if !result.OK() {
		os.Exit(1)
	}
	return nil
}

// applyRunFlags overlays explicitly set flags on top of the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-concurrency") {
		cfg.Orchestrator.MaxConcurrency = runMaxConcurrency
	}
	if flags.Changed("timeout") {
		cfg.Orchestrator.TaskTimeout = runTimeout
	}
	if flags.Changed("retry") {
		cfg.Orchestrator.RetryOnFailure = runRetry
	}
	if flags.Changed("max-retries") {
		cfg.Orchestrator.MaxRetries = runMaxRetries
	}
	if flags.Changed("retry-delay") {
		cfg.Orchestrator.RetryDelay = runRetryDelay
	}
	if flags.Changed("stop-on-first-error") {
		cfg.Orchestrator.StopOnFirstError = runStopOnFirstError
	}
}

// printEvents streams lifecycle events to the terminal until ctx ends.
func printEvents(ctx context.Context, bus *events.Bus) {
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		return
	}
	for ev := range ch {
		switch ev.Type {
		case events.TaskStarted:
			if ev.Attempt > 1 {
				fmt.Printf("  %s %s (attempt %d)\n", color.CyanString("▸"), ev.TaskID, ev.Attempt)
			} else {
				fmt.Printf("  %s %s\n", color.CyanString("▸"), ev.TaskID)
			}
		case events.TaskCompleted:
			fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.TaskID)
		case events.TaskFailed:
			fmt.Printf("  %s %s: %s\n", color.RedString("✗"), ev.TaskID, ev.Error)
		case events.TaskCancelled:
			fmt.Printf("  %s %s cancelled: %s\n", color.YellowString("–"), ev.TaskID, ev.Message)
		}
	}
}

// saveHistory persists the finished run to the history database.
func saveHistory(path string, result *models.ExecutionResult, tasks []*models.Task) error {
	db, err := state.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	return db.SaveRun(result, tasks)
}
