// Package events defines the run lifecycle events emitted by the executor
// and a pub/sub bus for delivering them to external consumers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/drover-dev/drover/pkg/models"
)

// Type is the kind of lifecycle event.
type Type string

const (
	// TaskStarted indicates a task attempt has begun executing.
	TaskStarted Type = "task:started"
	// TaskCompleted indicates a task finished successfully.
	TaskCompleted Type = "task:completed"
	// TaskFailed indicates a task failed after exhausting retries.
	TaskFailed Type = "task:failed"
	// TaskCancelled indicates a task was cancelled without running to completion.
	TaskCancelled Type = "task:cancelled"
	// RunProgress carries a progress snapshot after a state transition.
	RunProgress Type = "run:progress"
)

// Event is one lifecycle notification. Events are observability only; no
// consumer is required for the run to be correct.
type Event struct {
	// ID is a unique event identifier.
	ID string `json:"id"`
	// Type is the kind of event.
	Type Type `json:"type"`
	// RunID identifies the run that emitted the event.
	RunID string `json:"run_id"`
	// TaskID is the related task, if applicable.
	TaskID string `json:"task_id,omitempty"`
	// Attempt is the attempt number for task events.
	Attempt int `json:"attempt,omitempty"`
	// Message provides additional context about the event.
	Message string `json:"message,omitempty"`
	// Error carries the failure reason for task:failed events.
	Error string `json:"error,omitempty"`
	// Progress holds the run snapshot for run:progress events.
	Progress *models.ProgressSnapshot `json:"progress,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event of the given type for a run.
func New(t Type, runID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		RunID:     runID,
		Timestamp: time.Now(),
	}
}
