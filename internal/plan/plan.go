// Package plan loads seed plans from YAML and writes them into the ledger.
package plan

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imkarma/taskledger/internal/store"
)

//go:embed default.yaml
var defaultPlan []byte

// Plan is a named set of tasks to seed.
type Plan struct {
	Name  string `yaml:"name"`
	Tasks []Task `yaml:"tasks"`
}

// Task is one row of a plan file.
type Task struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Assignee     string   `yaml:"assignee"`
	Phase        int      `yaml:"phase"`
	Description  string   `yaml:"description,omitempty"`
	Priority     string   `yaml:"priority,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Deliverables []string `yaml:"deliverables,omitempty"`
}

// NewTask converts the row into a ledger write.
func (t Task) NewTask() store.NewTask {
	return store.NewTask{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Assignee:     t.Assignee,
		Phase:        t.Phase,
		Priority:     t.Priority,
		Dependencies: t.Dependencies,
		Deliverables: t.Deliverables,
	}
}

// Default returns the built-in phase-1 plan for the five-agent team.
func Default() *Plan {
	p, err := Parse(defaultPlan)
	if err != nil {
		panic(fmt.Sprintf("embedded plan: %v", err))
	}
	return p
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) validate() error {
	seen := make(map[string]bool, len(p.Tasks))
	for i, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("plan task %d: id is required", i+1)
		}
		if seen[t.ID] {
			return fmt.Errorf("plan task %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if t.Title == "" || t.Assignee == "" {
			return fmt.Errorf("plan task %s: title and assignee are required", t.ID)
		}
		if t.Phase <= 0 {
			return fmt.Errorf("plan task %s: phase must be positive", t.ID)
		}
	}
	return nil
}

// Upserter is the ledger write Apply needs.
type Upserter interface {
	UpsertTask(ctx context.Context, nt store.NewTask) (*store.Task, error)
}

// Apply writes every task of the plan with create-or-replace semantics,
// so re-applying a plan resets its tasks to pending. It stops at the
// first failure and returns how many tasks were written.
func Apply(ctx context.Context, u Upserter, p *Plan) (int, error) {
	for i, t := range p.Tasks {
		if _, err := u.UpsertTask(ctx, t.NewTask()); err != nil {
			return i, fmt.Errorf("apply %s: %w", t.ID, err)
		}
	}
	return len(p.Tasks), nil
}
