package models

import "time"

// TaskFailure records a task that ended in a failed state.
type TaskFailure struct {
	// TaskID is the task that failed.
	TaskID string `json:"task_id"`
	// Error is the final error message after retries were exhausted.
	Error string `json:"error"`
	// Attempts is the total number of attempts made.
	Attempts int `json:"attempts"`
}

// ExecutionResult is the aggregated outcome of one executor run.
// The Completed, Failed, and Cancelled sets partition the submitted tasks.
type ExecutionResult struct {
	// RunID identifies the run this result belongs to.
	RunID string `json:"run_id"`
	// Completed holds results for tasks that finished successfully.
	Completed []*TaskResult `json:"completed"`
	// Failed holds failure records for tasks that exhausted their retries.
	Failed []*TaskFailure `json:"failed"`
	// Cancelled lists IDs of tasks that were cancelled before running.
	Cancelled []string `json:"cancelled"`
	// SuccessRate is len(Completed) divided by the total submitted.
	SuccessRate float64 `json:"success_rate"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// TotalDuration is the wall-clock time from run start to the last
	// terminal transition.
	TotalDuration time.Duration `json:"total_duration"`
}

// Total returns the number of tasks submitted to the run.
func (r *ExecutionResult) Total() int {
	return len(r.Completed) + len(r.Failed) + len(r.Cancelled)
}

// OK reports whether every submitted task completed successfully.
func (r *ExecutionResult) OK() bool {
	return len(r.Failed) == 0 && len(r.Cancelled) == 0
}

// ProgressSnapshot is a point-in-time view of a run's task states.
type ProgressSnapshot struct {
	// Pending is the count of tasks ready to run but not started.
	Pending int `json:"pending"`
	// Waiting is the count of tasks blocked on dependencies.
	Waiting int `json:"waiting"`
	// Running is the count of tasks currently executing.
	Running int `json:"running"`
	// Completed is the count of tasks that succeeded.
	Completed int `json:"completed"`
	// Failed is the count of tasks that failed terminally.
	Failed int `json:"failed"`
	// Cancelled is the count of tasks cancelled without running.
	Cancelled int `json:"cancelled"`
	// Total is the number of tasks in the run.
	Total int `json:"total"`
	// PercentComplete is the fraction of tasks in a terminal state, 0-100.
	PercentComplete float64 `json:"percent_complete"`
}

// Done reports whether every task has reached a terminal state.
func (p ProgressSnapshot) Done() bool {
	return p.Completed+p.Failed+p.Cancelled == p.Total
}
