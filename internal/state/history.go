package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/drover-dev/drover/pkg/models"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	Cancelled   int           `json:"cancelled"`
	SuccessRate float64       `json:"success_rate"`
}

// TaskRecord is the persisted outcome of one task within a run.
type TaskRecord struct {
	RunID    string        `json:"run_id"`
	TaskID   string        `json:"task_id"`
	Status   string        `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
}

// SaveRun persists a finished run and its per-task outcomes in one
// transaction.
func (db *DB) SaveRun(result *models.ExecutionResult, tasks []*models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, started_at, duration_ms, total, completed, failed, cancelled, success_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, result.RunID, formatTime(result.StartedAt), result.TotalDuration.Milliseconds(),
			result.Total(), len(result.Completed), len(result.Failed), len(result.Cancelled),
			result.SuccessRate)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, t := range tasks {
			var output string
			if t.Result != nil {
				output = t.Result.Output
			}
			_, err := tx.Exec(`
				INSERT INTO run_tasks (run_id, task_id, status, attempts, duration_ms, output, error)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, result.RunID, t.ID, string(t.Status), t.Attempts, t.Duration().Milliseconds(),
				output, t.Error)
			if err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, started_at, duration_ms, total, completed, failed, cancelled, success_rate
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run summary by ID. Returns nil when no such run exists.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, started_at, duration_ms, total, completed, failed, cancelled, success_rate
		FROM runs WHERE id = ?
	`, id)

	var r RunRecord
	var startedAt string
	var durationMs int64
	err := row.Scan(&r.ID, &startedAt, &durationMs, &r.Total, &r.Completed, &r.Failed,
		&r.Cancelled, &r.SuccessRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// GetRunTasks retrieves the per-task outcomes of a run.
func (db *DB) GetRunTasks(runID string) ([]*TaskRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, status, attempts, duration_ms, output, error
		FROM run_tasks WHERE run_id = ? ORDER BY task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TaskRecord
	for rows.Next() {
		var t TaskRecord
		var durationMs int64
		var output, errMsg sql.NullString
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Status, &t.Attempts, &durationMs,
			&output, &errMsg); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Duration = time.Duration(durationMs) * time.Millisecond
		t.Output = output.String
		t.Error = errMsg.String
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var r RunRecord
	var startedAt string
	var durationMs int64
	if err := rows.Scan(&r.ID, &startedAt, &durationMs, &r.Total, &r.Completed, &r.Failed,
		&r.Cancelled, &r.SuccessRate); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}
