package orchestrator

import "time"

// Default policy values applied when an option is left unset.
const (
	// DefaultMaxConcurrency is the default worker pool capacity.
	DefaultMaxConcurrency = 5
	// DefaultTaskTimeout is the default per-attempt wall-clock budget.
	DefaultTaskTimeout = 300 * time.Second
	// DefaultMaxRetries is the default retry count when retries are enabled.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the default backoff between attempts.
	DefaultRetryDelay = time.Second
)

// Options holds the run-level execution policy. Zero values fall back to the
// defaults above.
type Options struct {
	// MaxConcurrency bounds the number of simultaneously running tasks.
	MaxConcurrency int
	// TaskTimeout is the per-attempt budget for tasks without their own.
	TaskTimeout time.Duration
	// RetryOnFailure enables the retry policy for failed attempts.
	RetryOnFailure bool
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int
	// RetryDelay is the fixed backoff between a failure and its retry.
	RetryDelay time.Duration
	// StopOnFirstError cancels all not-yet-started tasks once any task
	// fails terminally. Running tasks are allowed to finish.
	StopOnFirstError bool
}

// DefaultOptions returns the default execution policy.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: DefaultMaxConcurrency,
		TaskTimeout:    DefaultTaskTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
	}
}

// withDefaults fills unset fields with their default values.
func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}
