// Package taskfile loads task definitions from YAML files.
package taskfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drover-dev/drover/pkg/models"
)

// File is the on-disk task file format.
type File struct {
	// Tasks lists the batch in submission order.
	Tasks []TaskDef `yaml:"tasks"`
}

// TaskDef is a single task entry in a task file.
type TaskDef struct {
	ID        string   `yaml:"id"`
	Command   string   `yaml:"command"`
	DependsOn []string `yaml:"depends_on"`
	Priority  int      `yaml:"priority"`
	// Timeout overrides the configured per-attempt timeout ("90s", "5m").
	Timeout string `yaml:"timeout"`
	// MaxRetries overrides the configured retry count when set.
	MaxRetries *int `yaml:"max_retries"`
	// RetryDelay overrides the configured retry delay ("500ms", "2s").
	RetryDelay string `yaml:"retry_delay"`
}

// Load reads a task file and converts it into task records. Structural
// validation (cycles, unknown dependencies) happens later when the graph
// is built; Load checks only what the graph cannot see, such as missing
// commands and malformed durations.
func Load(path string) ([]*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return Parse(data)
}

// Parse converts raw YAML into task records.
func Parse(data []byte) ([]*models.Task, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("task file defines no tasks")
	}

	tasks := make([]*models.Task, 0, len(f.Tasks))
	for i, def := range f.Tasks {
		t, err := def.toTask()
		if err != nil {
			return nil, fmt.Errorf("task %d (%q): %w", i, def.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (d TaskDef) toTask() (*models.Task, error) {
	if d.Command == "" {
		return nil, fmt.Errorf("missing command")
	}

	t := &models.Task{
		ID:        d.ID,
		Command:   d.Command,
		DependsOn: d.DependsOn,
		Priority:  d.Priority,
		Status:    models.TaskStatusPending,
	}

	if d.Timeout != "" {
		timeout, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", d.Timeout, err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %q", d.Timeout)
		}
		t.Timeout = timeout
	}

	if d.MaxRetries != nil {
		if *d.MaxRetries < 0 {
			return nil, fmt.Errorf("max_retries must not be negative, got %d", *d.MaxRetries)
		}
		n := *d.MaxRetries
		t.MaxRetries = &n
	}

	if d.RetryDelay != "" {
		delay, err := time.ParseDuration(d.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid retry_delay %q: %w", d.RetryDelay, err)
		}
		if delay < 0 {
			return nil, fmt.Errorf("retry_delay must not be negative, got %q", d.RetryDelay)
		}
		t.RetryDelay = &delay
	}

	return t, nil
}
