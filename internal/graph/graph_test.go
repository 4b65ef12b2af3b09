package graph

import (
	"errors"
	"sort"
	"testing"

	"github.com/drover-dev/drover/pkg/models"
)

func TestNewGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestBuildSimple(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Command: "true"},
		{ID: "task-2", Command: "true"},
		{ID: "task-3", Command: "true"},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestBuildWithDependencies(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Command: "true"},
		{ID: "task-2", Command: "true", DependsOn: []string{"task-1"}},
		{ID: "task-3", Command: "true", DependsOn: []string{"task-1", "task-2"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.Dependencies("task-3")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task-3, got %d", len(deps))
	}

	dependents := g.Dependents("task-1")
	if len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task-1, got %d", len(dependents))
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Command: "true", DependsOn: []string{"unknown-task"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a ValidationError")
	}
	if verr.TaskID != "task-1" {
		t.Errorf("expected error to name task-1, got %q", verr.TaskID)
	}
}

func TestBuildDuplicateID(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Command: "true"},
		{ID: "task-1", Command: "false"},
	}

	if err := g.Build(tasks); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestBuildEmptyID(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "", Command: "true"},
	}

	if err := g.Build(tasks); !errors.Is(err, ErrEmptyTaskID) {
		t.Errorf("expected ErrEmptyTaskID, got %v", err)
	}
}

func TestCycleDetectionDirect(t *testing.T) {
	// A -> B -> A (direct cycle)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true", DependsOn: []string{"B"}},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestCycleDetectionThreeNodes(t *testing.T) {
	// A -> B -> C -> A (three node cycle)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true", DependsOn: []string{"B"}},
		{ID: "B", Command: "true", DependsOn: []string{"C"}},
		{ID: "C", Command: "true", DependsOn: []string{"A"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected for A->B->C->A cycle, got %v", err)
	}

	// The error must name the cycle path, first node repeated at the end.
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a ValidationError")
	}
	if len(verr.Cycle) != 4 {
		t.Errorf("expected cycle path of 4 entries, got %v", verr.Cycle)
	}
	if verr.Cycle[0] != verr.Cycle[len(verr.Cycle)-1] {
		t.Errorf("expected cycle path to close on its first node, got %v", verr.Cycle)
	}
}

func TestCycleDetectionSelfLoop(t *testing.T) {
	// A -> A (self loop)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true", DependsOn: []string{"A"}},
	}

	if err := g.Build(tasks); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected for self-loop, got %v", err)
	}
}

func TestNoCycleLinear(t *testing.T) {
	// A -> B -> C (linear, no cycle)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"B"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error for acyclic graph: %v", err)
	}
}

func TestLayersLinear(t *testing.T) {
	// A -> B -> C gives three single-task layers
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"B"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := g.Layers()
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(layers), layers)
	}
	for i, want := range []string{"A", "B", "C"} {
		if len(layers[i]) != 1 || layers[i][0] != want {
			t.Errorf("layer %d: expected [%s], got %v", i, want, layers[i])
		}
	}
}

func TestLayersDiamond(t *testing.T) {
	// Diamond shape: A -> B, A -> C, B -> D, C -> D
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"A"}},
		{ID: "D", Command: "true", DependsOn: []string{"B", "C"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := g.Layers()
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(layers), layers)
	}
	if len(layers[0]) != 1 || layers[0][0] != "A" {
		t.Errorf("expected layer 0 to be [A], got %v", layers[0])
	}
	mid := append([]string(nil), layers[1]...)
	sort.Strings(mid)
	if len(mid) != 2 || mid[0] != "B" || mid[1] != "C" {
		t.Errorf("expected layer 1 to be B and C, got %v", layers[1])
	}
	if len(layers[2]) != 1 || layers[2][0] != "D" {
		t.Errorf("expected layer 2 to be [D], got %v", layers[2])
	}
}

func TestLayersIndependentTasks(t *testing.T) {
	// No dependencies: everything lands in one layer
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true"},
		{ID: "C", Command: "true"},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := g.Layers()
	if len(layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(layers))
	}
	if len(layers[0]) != 3 {
		t.Errorf("expected 3 tasks in layer 0, got %v", layers[0])
	}
}

func TestLayersPriorityOrder(t *testing.T) {
	// Within a layer, higher priority comes first; ties break by
	// submission order.
	g := New()
	tasks := []*models.Task{
		{ID: "low", Command: "true", Priority: 1},
		{ID: "high", Command: "true", Priority: 10},
		{ID: "mid-1", Command: "true", Priority: 5},
		{ID: "mid-2", Command: "true", Priority: 5},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := g.Layers()
	if len(layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(layers))
	}

	want := []string{"high", "mid-1", "mid-2", "low"}
	for i, id := range want {
		if layers[0][i] != id {
			t.Fatalf("expected order %v, got %v", want, layers[0])
		}
	}
}

func TestGetReady(t *testing.T) {
	// A -> B -> C
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"B"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "A" {
		t.Errorf("expected only A to be ready, got %v", ready)
	}
}

func TestGetReadyAfterMarkComplete(t *testing.T) {
	// A -> B -> C
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"B"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.MarkComplete("A")

	if !g.IsComplete("A") {
		t.Error("expected A to be complete")
	}
	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "B" {
		t.Errorf("expected only B to be ready after A complete, got %v", ready)
	}
}

func TestGetReadyMultiple(t *testing.T) {
	// A (no deps), B (no deps), C (depends on A and B)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true"},
		{ID: "C", Command: "true", DependsOn: []string{"A", "B"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready tasks, got %d", len(ready))
	}

	sort.Strings(ready)
	if ready[0] != "A" || ready[1] != "B" {
		t.Errorf("expected A and B to be ready, got %v", ready)
	}
}

func TestGetTask(t *testing.T) {
	g := New()
	task := &models.Task{ID: "task-1", Command: "true"}

	if err := g.Build([]*models.Task{task}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := g.GetTask("task-1")
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.ID != "task-1" {
		t.Errorf("expected task-1, got %s", got.ID)
	}

	if got := g.GetTask("non-existent"); got != nil {
		t.Errorf("expected nil for non-existent task, got %v", got)
	}
}

func TestEmptyGraph(t *testing.T) {
	g := New()

	if err := g.Build([]*models.Task{}); err != nil {
		t.Fatalf("unexpected error building empty graph: %v", err)
	}

	if layers := g.Layers(); len(layers) != 0 {
		t.Errorf("expected no layers, got %v", layers)
	}
	if ready := g.GetReady(); len(ready) != 0 {
		t.Errorf("expected no ready tasks, got %v", ready)
	}
}

func TestComplexDependencies(t *testing.T) {
	// Complex graph with multiple paths
	//       A
	//      / \
	//     B   C
	//    / \ / \
	//   D   E   F
	//    \ | /
	//     \|/
	//      G
	g := New()
	tasks := []*models.Task{
		{ID: "A", Command: "true"},
		{ID: "B", Command: "true", DependsOn: []string{"A"}},
		{ID: "C", Command: "true", DependsOn: []string{"A"}},
		{ID: "D", Command: "true", DependsOn: []string{"B"}},
		{ID: "E", Command: "true", DependsOn: []string{"B", "C"}},
		{ID: "F", Command: "true", DependsOn: []string{"C"}},
		{ID: "G", Command: "true", DependsOn: []string{"D", "E", "F"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := g.Layers()
	positions := make(map[string]int)
	for i, layer := range layers {
		for _, id := range layer {
			positions[id] = i
		}
	}

	constraints := []struct {
		before, after string
	}{
		{"A", "B"}, {"A", "C"},
		{"B", "D"}, {"B", "E"},
		{"C", "E"}, {"C", "F"},
		{"D", "G"}, {"E", "G"}, {"F", "G"},
	}

	for _, c := range constraints {
		if positions[c.before] >= positions[c.after] {
			t.Errorf("%s should be in an earlier layer than %s", c.before, c.after)
		}
	}
}
