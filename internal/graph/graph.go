// Package graph provides the dependency graph used for task scheduling.
// It validates a submitted batch (unknown references, duplicate IDs, cycles)
// and produces execution layers via topological sort.
package graph

import (
	"sort"
	"sync"

	"github.com/drover-dev/drover/pkg/models"
)

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// dependents maps task ID to IDs of tasks that depend on it.
	dependents map[string][]string
	// order maps task ID to its position in the submitted batch, used as
	// the deterministic tie-break after priority.
	order map[string]int
	// completed tracks which tasks have been marked complete.
	completed map[string]bool
	// layers is the topological layering, computed once by Build.
	layers [][]string
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:      make(map[string]*models.Task),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		order:      make(map[string]int),
		completed:  make(map[string]bool),
	}
}

// Build constructs and validates the dependency graph from a slice of tasks,
// then computes the execution layers. It returns a *ValidationError if a task
// ID is duplicated, a dependency references an unknown task, or the graph
// contains a cycle. A graph that fails Build must not be used for execution.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// First pass: register all tasks as nodes.
	for i, task := range tasks {
		if task.ID == "" {
			return &ValidationError{Reason: "task with empty id", Err: ErrEmptyTaskID}
		}
		if _, exists := g.nodes[task.ID]; exists {
			return &ValidationError{
				Reason: "duplicate task id " + task.ID,
				TaskID: task.ID,
				Err:    ErrDuplicateTask,
			}
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order[task.ID] = i
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return &ValidationError{
					Reason: "task " + task.ID + " depends on unknown task " + depID,
					TaskID: task.ID,
					Err:    ErrUnknownDependency,
				}
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &ValidationError{
			Reason: "circular dependency: " + joinCycle(cycle),
			Cycle:  cycle,
			Err:    ErrCycleDetected,
		}
	}

	g.layers = g.layerLocked()
	return nil
}

// findCycleLocked detects a cycle via depth-first search with coloring and
// returns its path (first node repeated at the end), or nil when acyclic.
// Caller must hold g.mu.
func (g *DependencyGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: slice the current stack from the repeated node.
				for i, sid := range stack {
					if sid == depID {
						cycle = append(append([]string(nil), stack[i:]...), depID)
						return true
					}
				}
				cycle = []string{depID, id, depID}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range g.sortedIDsLocked() {
		if colors[id] == 0 {
			stack = stack[:0]
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// layerLocked computes execution layers with Kahn's algorithm: layer k holds
// exactly the tasks whose dependencies all sit in layers 0..k-1. Tasks within
// a layer are ordered by descending priority, then submission order.
// Caller must hold g.mu; the graph must already be known acyclic.
func (g *DependencyGraph) layerLocked() [][]string {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.edges[id])
	}

	remaining := len(g.nodes)
	var layers [][]string
	for remaining > 0 {
		var layer []string
		for id, deg := range indegree {
			if deg == 0 {
				layer = append(layer, id)
			}
		}
		g.sortByPriorityLocked(layer)

		for _, id := range layer {
			delete(indegree, id)
			remaining--
			for _, depID := range g.dependents[id] {
				if _, ok := indegree[depID]; ok {
					indegree[depID]--
				}
			}
		}
		layers = append(layers, layer)
	}
	return layers
}

// Layers returns the topological execution layers computed by Build.
// The returned slices must not be mutated.
func (g *DependencyGraph) Layers() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.layers
}

// GetTask returns the task with the given ID, or nil if not present.
func (g *DependencyGraph) GetTask(id string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Dependencies returns the IDs the given task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// MarkComplete records that a task finished successfully, unblocking its
// dependents for GetReady.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// IsComplete returns true if the task has been marked complete.
func (g *DependencyGraph) IsComplete(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[id]
}

// GetReady returns IDs of tasks whose dependencies are all complete and that
// are not complete themselves, ordered by descending priority then submission
// order. Tasks already in a terminal state are skipped.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, task := range g.nodes {
		if g.completed[id] || task.Status.Terminal() || task.Status == models.TaskStatusRunning {
			continue
		}
		blocked := false
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	g.sortByPriorityLocked(ready)
	return ready
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// sortByPriorityLocked orders IDs by descending priority, then by submission
// order. Caller must hold g.mu.
func (g *DependencyGraph) sortByPriorityLocked(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := g.nodes[ids[i]], g.nodes[ids[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return g.order[ids[i]] < g.order[ids[j]]
	})
}

// sortedIDsLocked returns all node IDs in submission order for deterministic
// traversal. Caller must hold g.mu.
func (g *DependencyGraph) sortedIDsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.order[ids[i]] < g.order[ids[j]] })
	return ids
}

func joinCycle(cycle []string) string {
	out := ""
	for i, id := range cycle {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}
