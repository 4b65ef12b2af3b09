package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`orchestrator:
  max_concurrency: 8
  task_timeout: 90s
  retry_on_failure: true
  max_retries: 5
  retry_delay: 250ms
  stop_on_first_error: true
history:
  path: /tmp/drover-test/history.db
debug:
  log_file: /tmp/drover-test/debug.log
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxConcurrency != 8 {
		t.Errorf("expected max_concurrency 8, got %d", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.TaskTimeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %s", cfg.Orchestrator.TaskTimeout)
	}
	if !cfg.Orchestrator.RetryOnFailure {
		t.Error("expected retry_on_failure true")
	}
	if cfg.Orchestrator.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.RetryDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %s", cfg.Orchestrator.RetryDelay)
	}
	if !cfg.Orchestrator.StopOnFirstError {
		t.Error("expected stop_on_first_error true")
	}
	if cfg.History.Path != "/tmp/drover-test/history.db" {
		t.Errorf("unexpected history path: %s", cfg.History.Path)
	}
	if cfg.Debug.LogFile != "/tmp/drover-test/debug.log" {
		t.Errorf("unexpected debug log file: %s", cfg.Debug.LogFile)
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`orchestrator:
  max_concurrency: 2
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxConcurrency != 2 {
		t.Errorf("expected max_concurrency 2, got %d", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.TaskTimeout != 5*time.Minute {
		t.Errorf("expected default 5m timeout, got %s", cfg.Orchestrator.TaskTimeout)
	}
	if cfg.Orchestrator.RetryOnFailure {
		t.Error("expected retries off by default")
	}
	if cfg.Orchestrator.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.RetryDelay != time.Second {
		t.Errorf("expected default 1s delay, got %s", cfg.Orchestrator.RetryDelay)
	}
	if cfg.History.Path == "" {
		t.Error("expected a default history path")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("DROVER_TEST_DATA", "/var/data")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`history:
  path: ${DROVER_TEST_DATA}/history.db
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.History.Path != "/var/data/history.db" {
		t.Errorf("expected env expansion, got %s", cfg.History.Path)
	}
}

func TestOptionsConversion(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxConcurrency = 4
	cfg.Orchestrator.RetryOnFailure = true

	opts := cfg.Options()
	if opts.MaxConcurrency != 4 {
		t.Errorf("expected max concurrency 4, got %d", opts.MaxConcurrency)
	}
	if !opts.RetryOnFailure {
		t.Error("expected retries enabled")
	}
	if opts.TaskTimeout != 5*time.Minute {
		t.Errorf("expected 5m timeout, got %s", opts.TaskTimeout)
	}
	if opts.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", opts.MaxRetries)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Orchestrator.MaxConcurrency != 5 {
		t.Errorf("expected max_concurrency 5, got %d", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.StopOnFirstError {
		t.Error("expected stop_on_first_error off by default")
	}
	if cfg.History.Path == "" {
		t.Error("expected a default history path")
	}
}
