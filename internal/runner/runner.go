// Package runner executes task commands through the shell.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/drover-dev/drover/pkg/models"
)

// ShellRunner runs task commands via "sh -c". Its Run method satisfies
// the orchestrator's work callback signature.
type ShellRunner struct {
	// WorkDir is the working directory for every command. Empty means
	// the process's current directory.
	WorkDir string
}

// New creates a ShellRunner rooted at workDir.
func New(workDir string) *ShellRunner {
	return &ShellRunner{WorkDir: workDir}
}

// Run executes the task's command and returns its combined stdout/stderr.
// The context carries the per-attempt timeout; on expiry the process is
// killed and the error reflects the context state.
func (r *ShellRunner) Run(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", task.Command)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}

	out, err := cmd.CombinedOutput()
	result := &models.TaskResult{
		TaskID: task.ID,
		Output: strings.TrimRight(string(out), "\n"),
	}
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("command failed: %w", err)
	}
	return result, nil
}
