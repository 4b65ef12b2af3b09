package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is schedulable but not yet started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusWaiting indicates the task has unsatisfied dependencies.
	TaskStatusWaiting TaskStatus = "waiting"
	// TaskStatusRunning indicates the task is currently executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed after exhausting retries.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before or instead of running.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusWaiting, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final and the task will never
// transition again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Task is the unit of schedulable work submitted to the executor.
// The executor owns the mutable fields (Status, Attempts, Result, Error,
// timestamps) for the duration of a run; callers must not touch them while
// the run is in flight.
type Task struct {
	// ID is the unique, caller-assigned identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Command is the opaque work payload carried for the run's work callback.
	// The executor never interprets it.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// DependsOn lists task IDs that must complete before this task may start.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Priority orders otherwise-ready tasks; higher runs first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Timeout is the per-task wall-clock budget for a single attempt.
	// Zero means the run default applies.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"-"`
	// MaxRetries overrides the run's retry count when non-nil.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"-"`
	// RetryDelay overrides the run's backoff between attempts when non-nil.
	RetryDelay *time.Duration `json:"retry_delay,omitempty" yaml:"-"`

	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Attempts counts execution attempts made so far.
	Attempts int `json:"attempts"`
	// Result holds the work callback's output once the task completes.
	Result *TaskResult `json:"result,omitempty"`
	// Error contains the final error message if the task failed or was cancelled.
	Error string `json:"error,omitempty"`
	// StartedAt is when the first attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the wall-clock time the task spent between its first
// attempt and its terminal transition, or zero if it never ran.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// TaskResult is the outcome of a successfully completed task.
type TaskResult struct {
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`
	// Output is the work callback's output, if any.
	Output string `json:"output,omitempty"`
	// Attempts is the number of attempts it took to succeed.
	Attempts int `json:"attempts"`
	// Duration is the wall-clock time from first attempt to success.
	Duration time.Duration `json:"duration"`
}
