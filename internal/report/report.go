// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/drover-dev/drover/internal/state"
	"github.com/drover-dev/drover/pkg/models"
)

// WriteResult renders the outcome of a run, grouped by final status.
func WriteResult(w io.Writer, result *models.ExecutionResult) {
	fmt.Fprintf(w, "\nRun %s finished in %s\n\n", result.RunID, formatDuration(result.TotalDuration))

	for _, res := range result.Completed {
		fmt.Fprintf(w, "%s %s (%s", color.GreenString("✓"), res.TaskID, formatDuration(res.Duration))
		if res.Attempts > 1 {
			fmt.Fprintf(w, ", %d attempts", res.Attempts)
		}
		fmt.Fprintln(w, ")")
	}
	for _, f := range result.Failed {
		fmt.Fprintf(w, "%s %s: %s", color.RedString("✗"), f.TaskID, f.Error)
		if f.Attempts > 1 {
			fmt.Fprintf(w, " (%d attempts)", f.Attempts)
		}
		fmt.Fprintln(w)
	}
	cancelled := append([]string(nil), result.Cancelled...)
	sort.Strings(cancelled)
	for _, id := range cancelled {
		fmt.Fprintf(w, "%s %s cancelled\n", color.YellowString("–"), id)
	}

	fmt.Fprintf(w, "\n%d/%d tasks completed (%.0f%%)\n",
		len(result.Completed), result.Total(), result.SuccessRate*100)
}

// WriteProgress renders a one-line progress update.
func WriteProgress(w io.Writer, snap *models.ProgressSnapshot) {
	fmt.Fprintf(w, "[%3.0f%%] running=%d completed=%d failed=%d cancelled=%d pending=%d\n",
		snap.PercentComplete, snap.Running, snap.Completed, snap.Failed,
		snap.Cancelled, snap.Pending+snap.Waiting)
}

// WriteRunList renders run history, newest first.
func WriteRunList(w io.Writer, runs []*state.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-10s %-20s %-10s %-8s %s\n", "RUN", "STARTED", "DURATION", "TASKS", "RESULT")
	for _, r := range runs {
		fmt.Fprintf(w, "%-10s %-20s %-10s %-8d %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(r.Duration),
			r.Total,
			summarize(r))
	}
}

// WriteRunDetail renders one run with its per-task outcomes.
func WriteRunDetail(w io.Writer, run *state.RunRecord, tasks []*state.TaskRecord) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(run.Duration))
	fmt.Fprintf(w, "  Result:   %s\n\n", summarize(run))

	for _, t := range tasks {
		switch models.TaskStatus(t.Status) {
		case models.TaskStatusCompleted:
			fmt.Fprintf(w, "  %s %s (%s)\n", color.GreenString("✓"), t.TaskID, formatDuration(t.Duration))
		case models.TaskStatusFailed:
			fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), t.TaskID, t.Error)
		default:
			fmt.Fprintf(w, "  %s %s %s\n", color.YellowString("–"), t.TaskID, t.Status)
		}
	}
}

func summarize(r *state.RunRecord) string {
	if r.Failed == 0 && r.Cancelled == 0 {
		return color.GreenString("%d ok", r.Completed)
	}
	s := fmt.Sprintf("%d ok", r.Completed)
	if r.Failed > 0 {
		s += ", " + color.RedString("%d failed", r.Failed)
	}
	if r.Cancelled > 0 {
		s += ", " + color.YellowString("%d cancelled", r.Cancelled)
	}
	return s
}

// formatDuration trims a duration to a readable precision.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
