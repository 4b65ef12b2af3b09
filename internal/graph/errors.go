package graph

import "errors"

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task references a dependency that is not
// part of the submitted batch.
var ErrUnknownDependency = errors.New("unknown dependency")

// ErrDuplicateTask indicates two tasks in the batch share an ID.
var ErrDuplicateTask = errors.New("duplicate task id")

// ErrEmptyTaskID indicates a task was submitted without an ID.
var ErrEmptyTaskID = errors.New("empty task id")

// ValidationError describes why a submitted batch was rejected before any
// task ran. It wraps one of the sentinel errors above so callers can branch
// with errors.Is, and carries the full cycle path for diagnostics when the
// cause is ErrCycleDetected.
type ValidationError struct {
	// Reason is a human-readable description of the rejection.
	Reason string
	// TaskID is the offending task, when a single task is at fault.
	TaskID string
	// Cycle is the dependency cycle path, first node repeated at the end.
	Cycle []string
	// Err is the sentinel cause.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid task graph: " + e.Reason
}

// Unwrap returns the sentinel cause for errors.Is matching.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
