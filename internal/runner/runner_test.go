package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/drover-dev/drover/pkg/models"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New("")
	task := &models.Task{ID: "echo", Command: "echo hello world"}

	result, err := r.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TaskID != "echo" {
		t.Errorf("expected task ID echo, got %s", result.TaskID)
	}
	if result.Output != "hello world" {
		t.Errorf("expected trimmed output, got %q", result.Output)
	}
}

func TestRunCombinesStderr(t *testing.T) {
	r := New("")
	task := &models.Task{ID: "stderr", Command: "echo oops >&2"}

	result, err := r.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "oops" {
		t.Errorf("expected stderr in output, got %q", result.Output)
	}
}

func TestRunFailingCommand(t *testing.T) {
	r := New("")
	task := &models.Task{ID: "fail", Command: "exit 3"}

	result, err := r.Run(context.Background(), task)
	if err == nil {
		t.Fatal("expected an error for a failing command")
	}
	if result == nil {
		t.Fatal("expected a result even on failure")
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("expected an exit error, got: %v", err)
	} else if exitErr.ExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", exitErr.ExitCode())
	}
}

func TestRunHonoursWorkDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := New(dir)
	task := &models.Task{ID: "ls", Command: "ls marker"}

	result, err := r.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "marker" {
		t.Errorf("expected to list the marker file, got %q", result.Output)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := New("")
	task := &models.Task{ID: "sleep", Command: "sleep 5"}

	_, err := r.Run(ctx, task)
	if err == nil {
		t.Fatal("expected an error when the context expires")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got: %v", err)
	}
}
