// Package orchestrator coordinates the parallel execution of task batches.
// It drives a bounded worker pool, applies per-task timeout and retry policy,
// and emits lifecycle events for observability. The actual work of a task is
// delegated to an opaque WorkFunc; the executor only dispatches, waits, and
// aggregates.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/drover-dev/drover/internal/events"
	"github.com/drover-dev/drover/internal/graph"
	"github.com/drover-dev/drover/internal/pool"
	"github.com/drover-dev/drover/pkg/models"
)

// WorkFunc performs the work of one task attempt. It must be safe to call
// once per attempt and should honor ctx on a best-effort basis; the executor
// never assumes it can be forcibly stopped.
type WorkFunc func(ctx context.Context, task *models.Task) (*models.TaskResult, error)

// Executor is the top-level run coordinator. It owns the worker pool and all
// task records for the duration of one Execute or ExecuteWithDependencies
// call. An executor drives at most one run at a time.
type Executor struct {
	work WorkFunc
	opts Options
	pool *pool.WorkerPool

	// bus relays lifecycle events to external subscribers. Optional.
	bus *events.Bus

	// cur points to the in-flight run, for progress snapshots.
	cur atomic.Pointer[run]

	// runMu serializes runs on this executor.
	runMu sync.Mutex
}

// Option configures optional executor collaborators.
type Option func(*Executor)

// WithEventBus attaches a bus that receives all lifecycle events.
func WithEventBus(b *events.Bus) Option {
	return func(e *Executor) { e.bus = b }
}

// WithDebugLogger routes the executor's internal debug logging to l.
func WithDebugLogger(l *DebugLogger) Option {
	return func(e *Executor) { setPackageLogger(l) }
}

// New creates an Executor running work under the given policy.
func New(work WorkFunc, opts Options, optFns ...Option) *Executor {
	e := &Executor{
		work: work,
		opts: opts.withDefaults(),
		pool: pool.New(opts.withDefaults().MaxConcurrency),
	}
	for _, fn := range optFns {
		fn(e)
	}
	return e
}

// Pool returns the executor's worker pool, exposed so callers can apply live
// capacity changes.
func (e *Executor) Pool() *pool.WorkerPool {
	return e.pool
}

// run holds the mutable state of one execution. Task records are owned by
// the run until the ExecutionResult has been returned; every mutation goes
// through r.mu.
type run struct {
	id string
	e  *Executor

	mu    sync.Mutex
	tasks map[string]*models.Task
	// order preserves submission order for deterministic aggregation.
	order []string
	// cancelled is the global cooperative cancel flag, checked before a
	// task is handed to the pool and between layers.
	cancelled    bool
	cancelReason string

	started time.Time
	// lastTerminal is the time of the most recent terminal transition.
	lastTerminal time.Time
}

// Execute runs an independent batch: every task starts schedulable and
// parallelism is bounded only by the pool. Tasks declaring dependencies are
// rejected; use ExecuteWithDependencies for those. The call returns only
// once every task is terminal. Individual task failures do not produce an
// error; they are reported in the ExecutionResult.
func (e *Executor) Execute(ctx context.Context, tasks []*models.Task) (*models.ExecutionResult, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	for _, t := range tasks {
		if len(t.DependsOn) > 0 {
			return nil, &graph.ValidationError{
				Reason: "task " + t.ID + " declares dependencies in independent mode",
				TaskID: t.ID,
				Err:    ErrHasDependencies,
			}
		}
	}
	// Validation only: catches duplicate and empty IDs before anything runs.
	if err := graph.New().Build(tasks); err != nil {
		return nil, err
	}

	if !e.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.runMu.Unlock()

	r := e.newRun(tasks)
	for _, t := range tasks {
		t.Status = models.TaskStatusPending
	}
	defer e.cur.Store(nil)

	// Dispatch in priority order; with synchronous slot acquisition this
	// means higher priority tasks start first when the batch exceeds
	// capacity.
	ordered := make([]*models.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var wg sync.WaitGroup
	for _, t := range ordered {
		if !e.dispatch(ctx, r, t) {
			continue
		}
		wg.Add(1)
		go func(t *models.Task) {
			defer wg.Done()
			e.runTask(ctx, r, t, nil)
		}(t)
	}
	wg.Wait()

	return r.aggregate(), nil
}

// ExecuteWithDependencies runs a dependency-linked batch layer by layer.
// The graph is validated up front; an invalid graph aborts the whole run
// before any task executes. Layer k+1 never starts until every task in
// layer k is terminal. Tasks whose dependencies failed or were cancelled
// transition straight to cancelled without running.
func (e *Executor) ExecuteWithDependencies(ctx context.Context, tasks []*models.Task) (*models.ExecutionResult, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return nil, err
	}

	if !e.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.runMu.Unlock()

	r := e.newRun(tasks)
	for _, t := range tasks {
		if len(t.DependsOn) > 0 {
			t.Status = models.TaskStatusWaiting
		} else {
			t.Status = models.TaskStatusPending
		}
	}
	defer e.cur.Store(nil)

	for _, layer := range g.Layers() {
		if r.isCancelled() || ctx.Err() != nil {
			r.cancelRemaining(ctx)
			break
		}

		var wg sync.WaitGroup
		for _, id := range layer {
			t := r.task(id)

			// A dependency that did not complete successfully can never
			// satisfy the readiness invariant; cancel without running.
			if blockedBy := r.failedDependency(t, g); blockedBy != "" {
				r.markCancelled(t, "dependency "+blockedBy+" did not complete")
				continue
			}

			r.markSchedulable(t)
			if !e.dispatch(ctx, r, t) {
				continue
			}
			wg.Add(1)
			go func(t *models.Task) {
				defer wg.Done()
				e.runTask(ctx, r, t, g)
			}(t)
		}
		wg.Wait()
	}

	// A cancellation inside the final layer leaves nothing for the layer
	// loop to sweep, so sweep once more for stragglers.
	r.cancelRemaining(ctx)

	return r.aggregate(), nil
}

// Progress returns a snapshot of the current run, or a zero snapshot when no
// run is in flight.
func (e *Executor) Progress() models.ProgressSnapshot {
	r := e.cur.Load()
	if r == nil {
		return models.ProgressSnapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Shutdown drains the worker pool: new acquires fail fast and in-flight
// attempts are allowed to finish.
func (e *Executor) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}

// newRun initializes per-run state and registers it for progress queries.
func (e *Executor) newRun(tasks []*models.Task) *run {
	r := &run{
		id:      uuid.New().String()[:8],
		e:       e,
		tasks:   make(map[string]*models.Task, len(tasks)),
		order:   make([]string, 0, len(tasks)),
		started: time.Now(),
	}
	for _, t := range tasks {
		t.Attempts = 0
		t.Result = nil
		t.Error = ""
		t.StartedAt = nil
		t.CompletedAt = nil
		r.tasks[t.ID] = t
		r.order = append(r.order, t.ID)
	}
	e.cur.Store(r)
	debugLog("[executor] run %s: %d tasks submitted", r.id, len(tasks))
	return r
}

// dispatch blocks until a worker slot is held for t, or marks t cancelled
// and returns false. Dispatching synchronously, in scheduling order, is what
// makes that order bind: slots are assigned to tasks in exactly the order
// the dispatcher asks for them.
func (e *Executor) dispatch(ctx context.Context, r *run, t *models.Task) bool {
	// Cooperative cancellation: checked before the task is handed to the
	// pool, never while an attempt is in flight.
	if r.isCancelled() {
		r.markCancelled(t, r.reason())
		return false
	}
	if err := ctx.Err(); err != nil {
		r.markCancelled(t, "run aborted: "+err.Error())
		return false
	}

	if err := e.pool.Acquire(ctx); err != nil {
		r.markCancelled(t, "worker unavailable: "+err.Error())
		return false
	}

	// The flag may have been set while the dispatcher waited for a slot;
	// the task has not started yet, so it is still cancellable.
	if r.isCancelled() {
		e.pool.Release()
		r.markCancelled(t, r.reason())
		return false
	}
	return true
}

// runTask drives one dispatched task to a terminal state: run an attempt
// under the timeout budget and apply the retry policy on failure. The caller
// must already hold a worker slot via dispatch; retries re-acquire their own.
// When g is non-nil, success is recorded in the dependency graph.
func (e *Executor) runTask(ctx context.Context, r *run, t *models.Task, g *graph.DependencyGraph) {
	for slotHeld := true; ; slotHeld = false {
		if !slotHeld && !e.dispatch(ctx, r, t) {
			return
		}

		attemptErr := e.attempt(ctx, r, t)
		if attemptErr == nil {
			r.markCompleted(t)
			if g != nil {
				g.MarkComplete(t.ID)
			}
			return
		}

		// A caller abort is not a task failure.
		if ctx.Err() != nil && errors.Is(attemptErr, ctx.Err()) {
			r.markCancelled(t, "run aborted: "+ctx.Err().Error())
			return
		}

		if t.Attempts > e.maxRetries(t) {
			r.markFailed(t, attemptErr)
			if e.opts.StopOnFirstError {
				r.cancel("task " + t.ID + " failed with stop-on-first-error set")
			}
			return
		}

		debugLog("[executor] run %s: task %s attempt %d failed, retrying in %s: %v",
			r.id, t.ID, t.Attempts, e.retryDelay(t), attemptErr)
		r.markRetrying(t)

		select {
		case <-time.After(e.retryDelay(t)):
		case <-ctx.Done():
			// Retries abandoned mid-backoff; the last attempt's error stands.
			r.markFailed(t, attemptErr)
			return
		}
		if r.isCancelled() {
			r.markFailed(t, attemptErr)
			return
		}
	}
}

// attempt executes exactly one attempt of t while holding a pool slot.
// The slot release is structural: it happens on every exit path, including
// timeout and caller abort.
func (e *Executor) attempt(ctx context.Context, r *run, t *models.Task) error {
	defer e.pool.Release()

	r.markRunning(t)

	timeout := e.taskTimeout(t)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *models.TaskResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.work(attemptCtx, t)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return &TaskExecutionError{TaskID: t.ID, Err: out.err}
		}
		r.setResult(t, out.res)
		return nil
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		// The work goroutine may still be running; it is opaque and cannot
		// be preempted, so the attempt is abandoned rather than killed.
		return &TimeoutError{TaskID: t.ID, Timeout: timeout}
	}
}

// taskTimeout returns t's attempt budget, falling back to the run default.
func (e *Executor) taskTimeout(t *models.Task) time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return e.opts.TaskTimeout
}

// maxRetries returns the retry allowance for t. A per-task override applies
// unconditionally; otherwise retries require RetryOnFailure.
func (e *Executor) maxRetries(t *models.Task) int {
	if t.MaxRetries != nil {
		return *t.MaxRetries
	}
	if !e.opts.RetryOnFailure {
		return 0
	}
	return e.opts.MaxRetries
}

// retryDelay returns the backoff before t's next attempt.
func (e *Executor) retryDelay(t *models.Task) time.Duration {
	if t.RetryDelay != nil {
		return *t.RetryDelay
	}
	return e.opts.RetryDelay
}
