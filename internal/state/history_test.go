package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/drover-dev/drover/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return db
}

func sampleRun(id string, startedAt time.Time) (*models.ExecutionResult, []*models.Task) {
	started := startedAt
	finished := startedAt.Add(2 * time.Second)

	result := &models.ExecutionResult{
		RunID: id,
		Completed: []*models.TaskResult{
			{TaskID: "build", Output: "ok", Attempts: 1, Duration: time.Second},
		},
		Failed: []*models.TaskFailure{
			{TaskID: "test", Error: "exit status 1", Attempts: 3},
		},
		Cancelled:     []string{"deploy"},
		SuccessRate:   1.0 / 3.0,
		StartedAt:     startedAt,
		TotalDuration: 2 * time.Second,
	}

	tasks := []*models.Task{
		{
			ID:          "build",
			Status:      models.TaskStatusCompleted,
			Attempts:    1,
			Result:      &models.TaskResult{TaskID: "build", Output: "ok", Attempts: 1, Duration: time.Second},
			StartedAt:   &started,
			CompletedAt: &finished,
		},
		{
			ID:       "test",
			Status:   models.TaskStatusFailed,
			Attempts: 3,
			Error:    "exit status 1",
		},
		{
			ID:     "deploy",
			Status: models.TaskStatusCancelled,
			Error:  "dependency test failed",
		},
	}
	return result, tasks
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)

	startedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	result, tasks := sampleRun("run-1", startedAt)
	if err := db.SaveRun(result, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a run record")
	}
	if got.Total != 3 || got.Completed != 1 || got.Failed != 1 || got.Cancelled != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if !got.StartedAt.Equal(startedAt) {
		t.Errorf("expected started_at %s, got %s", startedAt, got.StartedAt)
	}
	if got.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %s", got.Duration)
	}
	if got.SuccessRate < 0.33 || got.SuccessRate > 0.34 {
		t.Errorf("unexpected success rate: %f", got.SuccessRate)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetRun("no-such-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing run, got %+v", got)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		result, tasks := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		if err := db.SaveRun(result, tasks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-new" || runs[2].ID != "run-old" {
		t.Errorf("expected newest first, got %s..%s", runs[0].ID, runs[2].ID)
	}

	limited, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit of 2, got %d", len(limited))
	}
}

func TestGetRunTasks(t *testing.T) {
	db := openTestDB(t)

	result, tasks := sampleRun("run-1", time.Now())
	if err := db.SaveRun(result, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetRunTasks("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 task records, got %d", len(got))
	}

	byID := make(map[string]*TaskRecord, len(got))
	for _, tr := range got {
		byID[tr.TaskID] = tr
	}

	build := byID["build"]
	if build == nil || build.Status != "completed" || build.Output != "ok" {
		t.Errorf("unexpected build record: %+v", build)
	}
	if build != nil && build.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %s", build.Duration)
	}

	test := byID["test"]
	if test == nil || test.Status != "failed" || test.Attempts != 3 {
		t.Errorf("unexpected test record: %+v", test)
	}
	if test != nil && test.Error != "exit status 1" {
		t.Errorf("unexpected error message: %q", test.Error)
	}

	deploy := byID["deploy"]
	if deploy == nil || deploy.Status != "cancelled" {
		t.Errorf("unexpected deploy record: %+v", deploy)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := openTestDB(t)

	old, oldTasks := sampleRun("run-old", time.Now().Add(-48*time.Hour))
	if err := db.SaveRun(old, oldTasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh, freshTasks := sampleRun("run-fresh", time.Now())
	if err := db.SaveRun(fresh, freshTasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	purged, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged run, got %d", purged)
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-fresh" {
		t.Errorf("expected only the fresh run to remain, got %+v", runs)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	result, tasks := sampleRun("run-1", time.Now())
	if err := db.SaveRun(result, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
