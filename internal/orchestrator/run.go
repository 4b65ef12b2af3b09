package orchestrator

import (
	"context"
	"time"

	"github.com/drover-dev/drover/internal/events"
	"github.com/drover-dev/drover/internal/graph"
	"github.com/drover-dev/drover/pkg/models"
)

func (r *run) task(id string) *models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id]
}

func (r *run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *run) reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelReason
}

// cancel sets the global cooperative cancel flag. Running tasks are never
// interrupted; the flag only stops tasks that have not started.
func (r *run) cancel(reason string) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.cancelled = true
	r.cancelReason = reason
	r.mu.Unlock()
	debugLog("[executor] run %s: cancelling remaining tasks: %s", r.id, reason)
}

// failedDependency returns the ID of a dependency of t that did not complete
// successfully, or "" when all dependencies completed.
func (r *run) failedDependency(t *models.Task, g *graph.DependencyGraph) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, depID := range g.Dependencies(t.ID) {
		dep := r.tasks[depID]
		if dep == nil || dep.Status != models.TaskStatusCompleted {
			return depID
		}
	}
	return ""
}

// markSchedulable moves a waiting task to pending once its layer is reached.
func (r *run) markSchedulable(t *models.Task) {
	r.mu.Lock()
	if t.Status == models.TaskStatusWaiting {
		t.Status = models.TaskStatusPending
	}
	r.mu.Unlock()
}

// markRunning records the start of an attempt.
func (r *run) markRunning(t *models.Task) {
	r.mu.Lock()
	t.Status = models.TaskStatusRunning
	t.Attempts++
	if t.StartedAt == nil {
		now := time.Now()
		t.StartedAt = &now
	}
	attempt := t.Attempts
	snap := r.snapshotLocked()
	r.mu.Unlock()

	ev := events.New(events.TaskStarted, r.id)
	ev.TaskID = t.ID
	ev.Attempt = attempt
	r.emit(ev, snap)
}

// markRetrying parks a failed task while it waits out its backoff. The task
// holds no worker slot during this window, so it does not count against the
// concurrency bound.
func (r *run) markRetrying(t *models.Task) {
	r.mu.Lock()
	t.Status = models.TaskStatusPending
	r.mu.Unlock()
}

// setResult stores the work callback's output on the task record.
func (r *run) setResult(t *models.Task, res *models.TaskResult) {
	r.mu.Lock()
	if res == nil {
		res = &models.TaskResult{}
	}
	res.TaskID = t.ID
	t.Result = res
	r.mu.Unlock()
}

// markCompleted finalizes a successful task.
func (r *run) markCompleted(t *models.Task) {
	r.mu.Lock()
	now := time.Now()
	t.Status = models.TaskStatusCompleted
	t.CompletedAt = &now
	r.lastTerminal = now
	if t.Result == nil {
		t.Result = &models.TaskResult{TaskID: t.ID}
	}
	t.Result.Attempts = t.Attempts
	t.Result.Duration = t.Duration()
	attempt := t.Attempts
	snap := r.snapshotLocked()
	r.mu.Unlock()

	debugLog("[executor] run %s: task %s completed after %d attempt(s)", r.id, t.ID, attempt)
	ev := events.New(events.TaskCompleted, r.id)
	ev.TaskID = t.ID
	ev.Attempt = attempt
	r.emit(ev, snap)
}

// markFailed finalizes a task whose retries are exhausted.
func (r *run) markFailed(t *models.Task, err error) {
	r.mu.Lock()
	now := time.Now()
	t.Status = models.TaskStatusFailed
	t.CompletedAt = &now
	t.Error = err.Error()
	r.lastTerminal = now
	attempt := t.Attempts
	snap := r.snapshotLocked()
	r.mu.Unlock()

	debugLog("[executor] run %s: task %s failed after %d attempt(s): %v", r.id, t.ID, attempt, err)
	ev := events.New(events.TaskFailed, r.id)
	ev.TaskID = t.ID
	ev.Attempt = attempt
	ev.Error = err.Error()
	r.emit(ev, snap)
}

// markCancelled finalizes a task that never ran to completion. Terminal
// tasks are left untouched, so a late sweep cannot overwrite an outcome.
func (r *run) markCancelled(t *models.Task, reason string) {
	r.mu.Lock()
	if t.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	t.Status = models.TaskStatusCancelled
	t.CompletedAt = &now
	t.Error = reason
	r.lastTerminal = now
	snap := r.snapshotLocked()
	r.mu.Unlock()

	debugLog("[executor] run %s: task %s cancelled: %s", r.id, t.ID, reason)
	ev := events.New(events.TaskCancelled, r.id)
	ev.TaskID = t.ID
	ev.Message = reason
	r.emit(ev, snap)
}

// cancelRemaining sweeps every non-terminal task into the cancelled state.
// Used when the run stops advancing (global cancel or caller abort).
func (r *run) cancelRemaining(ctx context.Context) {
	reason := r.reason()
	if reason == "" {
		if err := ctx.Err(); err != nil {
			reason = "run aborted: " + err.Error()
		} else {
			reason = "run cancelled"
		}
	}

	r.mu.Lock()
	var remaining []*models.Task
	for _, id := range r.order {
		if t := r.tasks[id]; !t.Status.Terminal() {
			remaining = append(remaining, t)
		}
	}
	r.mu.Unlock()

	for _, t := range remaining {
		r.markCancelled(t, reason)
	}
}

// snapshotLocked computes the progress snapshot. Caller must hold r.mu.
func (r *run) snapshotLocked() models.ProgressSnapshot {
	snap := models.ProgressSnapshot{Total: len(r.tasks)}
	for _, t := range r.tasks {
		switch t.Status {
		case models.TaskStatusPending:
			snap.Pending++
		case models.TaskStatusWaiting:
			snap.Waiting++
		case models.TaskStatusRunning:
			snap.Running++
		case models.TaskStatusCompleted:
			snap.Completed++
		case models.TaskStatusFailed:
			snap.Failed++
		case models.TaskStatusCancelled:
			snap.Cancelled++
		}
	}
	if snap.Total > 0 {
		terminal := snap.Completed + snap.Failed + snap.Cancelled
		snap.PercentComplete = float64(terminal) / float64(snap.Total) * 100
	}
	return snap
}

// emit publishes a task event followed by a progress event. Emission is
// observability only; publish failures are logged and ignored.
func (r *run) emit(ev events.Event, snap models.ProgressSnapshot) {
	if r.e.bus == nil {
		return
	}
	if err := r.e.bus.Publish(ev); err != nil {
		debugLog("[executor] run %s: publish %s: %v", r.id, ev.Type, err)
	}

	prog := events.New(events.RunProgress, r.id)
	prog.Progress = &snap
	if err := r.e.bus.Publish(prog); err != nil {
		debugLog("[executor] run %s: publish progress: %v", r.id, err)
	}
}

// aggregate partitions the task set by final status and computes the run
// summary. Called once every task is terminal.
func (r *run) aggregate() *models.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &models.ExecutionResult{
		RunID:     r.id,
		StartedAt: r.started,
	}
	for _, id := range r.order {
		t := r.tasks[id]
		switch t.Status {
		case models.TaskStatusCompleted:
			result.Completed = append(result.Completed, t.Result)
		case models.TaskStatusFailed:
			result.Failed = append(result.Failed, &models.TaskFailure{
				TaskID:   t.ID,
				Error:    t.Error,
				Attempts: t.Attempts,
			})
		default:
			result.Cancelled = append(result.Cancelled, t.ID)
		}
	}

	total := len(r.order)
	if total > 0 {
		result.SuccessRate = float64(len(result.Completed)) / float64(total)
	}

	end := r.lastTerminal
	if end.IsZero() {
		end = time.Now()
	}
	result.TotalDuration = end.Sub(r.started)

	debugLog("[executor] run %s: done in %s (completed=%d failed=%d cancelled=%d)",
		r.id, result.TotalDuration, len(result.Completed), len(result.Failed), len(result.Cancelled))
	return result
}
