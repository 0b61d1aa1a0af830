// Package deps reports on the dependency graph of a task snapshot.
// It only reads: the ledger itself never checks dependencies.
package deps

import (
	"sort"

	"github.com/imkarma/taskledger/internal/store"
)

// Dangling is a dependency that names a task absent from the snapshot.
type Dangling struct {
	TaskID  string `json:"task_id"`
	Missing string `json:"missing"`
}

// Report is the result of Check.
type Report struct {
	Dangling []Dangling `json:"dangling"`
	// Cycles lists each cycle once, as the task IDs along it, starting
	// from the task where the walk entered it.
	Cycles [][]string `json:"cycles"`
}

// OK reports whether the graph has no dangling edges and no cycles.
func (r Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Cycles) == 0
}

// Index maps task IDs to tasks.
func Index(tasks []store.Task) map[string]store.Task {
	idx := make(map[string]store.Task, len(tasks))
	for _, t := range tasks {
		idx[t.ID] = t
	}
	return idx
}

const (
	white = iota // unvisited
	grey         // on the current path
	black        // finished
)

// Check finds dangling references and dependency cycles. Tasks are walked
// in ID order so the report is stable for a given snapshot.
func Check(tasks []store.Task) Report {
	idx := Index(tasks)
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r := Report{Dangling: []Dangling{}, Cycles: [][]string{}}
	for _, id := range ids {
		for _, dep := range idx[id].Dependencies {
			if _, ok := idx[dep]; !ok {
				r.Dangling = append(r.Dangling, Dangling{TaskID: id, Missing: dep})
			}
		}
	}

	color := make(map[string]int, len(idx))
	var path []string
	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		path = append(path, id)
		for _, dep := range idx[id].Dependencies {
			if _, ok := idx[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				visit(dep)
			case grey:
				r.Cycles = append(r.Cycles, cycleFrom(path, dep))
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}
	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return r
}

// cycleFrom returns the tail of path starting at start.
func cycleFrom(path []string, start string) []string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == start {
			return append([]string{}, path[i:]...)
		}
	}
	return []string{start}
}

// Waiting returns the dependencies of t that are not completed. A
// dependency missing from idx counts as unmet.
func Waiting(t store.Task, idx map[string]store.Task) []string {
	var out []string
	for _, dep := range t.Dependencies {
		if d, ok := idx[dep]; ok && d.Status == store.StatusCompleted {
			continue
		}
		out = append(out, dep)
	}
	return out
}

// Ready reports whether every dependency of t is completed.
func Ready(t store.Task, idx map[string]store.Task) bool {
	return len(Waiting(t, idx)) == 0
}
