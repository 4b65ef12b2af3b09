package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTasks indicates an empty batch was submitted.
var ErrNoTasks = errors.New("no tasks submitted")

// ErrHasDependencies indicates Execute was called with tasks that declare
// dependencies; those batches must go through ExecuteWithDependencies.
var ErrHasDependencies = errors.New("task declares dependencies; use ExecuteWithDependencies")

// ErrRunInProgress indicates the executor is already driving a run.
var ErrRunInProgress = errors.New("executor already has a run in progress")

// TimeoutError reports that a single attempt exceeded its wall-clock budget.
// It is treated identically to a work callback failure for retry purposes.
type TimeoutError struct {
	// TaskID is the task whose attempt timed out.
	TaskID string
	// Timeout is the budget that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.Timeout)
}

// TaskExecutionError wraps a failure returned by the work callback.
type TaskExecutionError struct {
	// TaskID is the task whose work failed.
	TaskID string
	// Err is the underlying error from the work callback.
	Err error
}

// Error implements the error interface.
func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying work callback error.
func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
