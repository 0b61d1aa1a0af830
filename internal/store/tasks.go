package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// taskColumns is the standard column list for task queries.
const taskColumns = `task_id, title, description, assignee, phase, status, priority,
	dependencies, deliverables, notes, created_at, started_at, completed_at,
	assignee_session, git_branch, review_status, input_specs, output_specs`

const insertTask = `INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, NULL, NULL, '', ?, '', ?, ?)`

// upsertTask replaces every column of an existing row, so nothing from the
// previous version of the task survives except its surrogate id.
const upsertTask = insertTask + `
	ON CONFLICT (task_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		assignee = excluded.assignee,
		phase = excluded.phase,
		status = excluded.status,
		priority = excluded.priority,
		dependencies = excluded.dependencies,
		deliverables = excluded.deliverables,
		notes = excluded.notes,
		created_at = excluded.created_at,
		started_at = NULL,
		completed_at = NULL,
		assignee_session = excluded.assignee_session,
		git_branch = excluded.git_branch,
		review_status = excluded.review_status,
		input_specs = excluded.input_specs,
		output_specs = excluded.output_specs`

// UpsertTask writes a full task row. An existing task with the same ID is
// replaced entirely: its status returns to pending and its timestamps,
// notes and session binding are cleared.
func (s *Store) UpsertTask(ctx context.Context, nt NewTask) (*Task, error) {
	if err := validateNewTask(&nt); err != nil {
		return nil, err
	}
	t := s.taskFromNew(nt)
	if _, err := s.exec(ctx, upsertTask, s.insertArgs(t)...); err != nil {
		return nil, s.classify("upsert task", err)
	}
	s.log.Debug("task upserted", "task_id", t.ID, "assignee", t.Assignee, "phase", t.Phase)
	return t, nil
}

// CreateTask inserts a new task. If the ID is already taken it returns
// ErrDuplicateTask and the existing row is left as it was.
func (s *Store) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	if nt.Phase == 0 {
		nt.Phase = 1
	}
	if err := validateNewTask(&nt); err != nil {
		return nil, err
	}
	t := s.taskFromNew(nt)
	if _, err := s.exec(ctx, insertTask, s.insertArgs(t)...); err != nil {
		err = s.classify("create task", err)
		if errors.Is(err, ErrDuplicateTask) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
		}
		return nil, err
	}
	s.log.Debug("task created", "task_id", t.ID, "assignee", t.Assignee, "phase", t.Phase)
	return t, nil
}

func validateNewTask(nt *NewTask) error {
	nt.ID = strings.TrimSpace(nt.ID)
	switch {
	case nt.ID == "":
		return invalidf("task_id is required")
	case strings.TrimSpace(nt.Title) == "":
		return invalidf("task %s: title is required", nt.ID)
	case strings.TrimSpace(nt.Assignee) == "":
		return invalidf("task %s: assignee is required", nt.ID)
	case nt.Phase <= 0:
		return invalidf("task %s: phase must be positive, got %d", nt.ID, nt.Phase)
	}
	if nt.Priority == "" {
		nt.Priority = DefaultPriority
	}
	return nil
}

func (s *Store) taskFromNew(nt NewTask) *Task {
	deps := append([]string{}, nt.Dependencies...)
	dels := append([]string{}, nt.Deliverables...)
	return &Task{
		ID:           nt.ID,
		Title:        nt.Title,
		Description:  nt.Description,
		Assignee:     nt.Assignee,
		Phase:        nt.Phase,
		Status:       StatusPending,
		Priority:     nt.Priority,
		Dependencies: deps,
		Deliverables: dels,
		CreatedAt:    s.now(),
		GitBranch:    nt.GitBranch,
		InputSpecs:   nt.InputSpecs,
		OutputSpecs:  nt.OutputSpecs,
	}
}

func (s *Store) insertArgs(t *Task) []any {
	return []any{
		t.ID, t.Title, t.Description, t.Assignee, t.Phase, string(t.Status), t.Priority,
		encodeList(t.Dependencies), encodeList(t.Deliverables), t.CreatedAt,
		t.GitBranch, t.InputSpecs, t.OutputSpecs,
	}
}

// GetTask returns a single task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, id)
	t, err := scanTask(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, s.classify("get task", err)
	}
	return t, nil
}

// ReassignTask hands a task to another agent and puts it back to pending,
// whatever state it was in.
func (s *Store) ReassignTask(ctx context.Context, id, assignee string) error {
	if strings.TrimSpace(assignee) == "" {
		return invalidf("task %s: assignee is required", id)
	}
	res, err := s.exec(ctx,
		`UPDATE tasks SET assignee = ?, status = ? WHERE task_id = ?`,
		assignee, string(StatusPending), id,
	)
	if err != nil {
		return s.classify("reassign task", err)
	}
	if err := expectRow(res, fmt.Errorf("%w: %s", ErrTaskNotFound, id)); err != nil {
		return err
	}
	s.log.Debug("task reassigned", "task_id", id, "assignee", assignee)
	return nil
}

// UpdateTaskStatus sets a task's status and overwrites its notes.
// Entering in_progress stamps started_at and binds the session; entering
// completed stamps completed_at. Re-entering either state stamps it again.
// Any other status text is stored as given.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, u StatusUpdate) error {
	if strings.TrimSpace(string(status)) == "" {
		return invalidf("task %s: status is required", id)
	}
	now := s.now()

	var res sql.Result
	var err error
	switch status {
	case StatusInProgress:
		res, err = s.exec(ctx,
			`UPDATE tasks SET status = ?, notes = ?, started_at = ?, assignee_session = ? WHERE task_id = ?`,
			string(status), u.Notes, now, u.SessionID, id,
		)
	case StatusCompleted:
		res, err = s.exec(ctx,
			`UPDATE tasks SET status = ?, notes = ?, completed_at = ? WHERE task_id = ?`,
			string(status), u.Notes, now, id,
		)
	default:
		res, err = s.exec(ctx,
			`UPDATE tasks SET status = ?, notes = ? WHERE task_id = ?`,
			string(status), u.Notes, id,
		)
	}
	if err != nil {
		return s.classify("update task status", err)
	}
	if err := expectRow(res, fmt.Errorf("%w: %s", ErrTaskNotFound, id)); err != nil {
		return err
	}
	s.log.Debug("task status changed", "task_id", id, "status", status)
	return nil
}

// ListTasks returns the tasks matching every set filter field, ordered by
// phase, priority and creation time.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.Assignee != "" {
		query += ` AND assignee = ?`
		args = append(args, f.Assignee)
	}
	if f.Phase > 0 {
		query += ` AND phase = ?`
		args = append(args, f.Phase)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY phase, priority, created_at, id`

	return s.queryTasks(ctx, query, args...)
}

// AgentTasks returns the compact view of every task assigned to agent,
// ordered by priority and creation time.
func (s *Store) AgentTasks(ctx context.Context, agent string) ([]AgentTask, error) {
	tasks, err := s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assignee = ? ORDER BY priority, created_at, id`,
		agent,
	)
	if err != nil {
		return nil, err
	}
	out := make([]AgentTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, AgentTask{
			ID:           t.ID,
			Title:        t.Title,
			Status:       t.Status,
			Priority:     t.Priority,
			Dependencies: t.Dependencies,
			CreatedAt:    t.CreatedAt,
		})
	}
	return out, nil
}

// queryTasks is a shared helper for running task-list queries.
func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, s.classify("query tasks", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("query tasks", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one row selected with taskColumns.
func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var status, deps, dels string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Assignee, &t.Phase, &status, &t.Priority,
		&deps, &dels, &t.Notes, &t.CreatedAt, &startedAt, &completedAt,
		&t.Session, &t.GitBranch, &t.ReviewStatus, &t.InputSpecs, &t.OutputSpecs,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Status = TaskStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.StartedAt = nullTime(startedAt)
	t.CompletedAt = nullTime(completedAt)
	if t.Dependencies, err = decodeList(deps); err != nil {
		return nil, fmt.Errorf("task %s dependencies: %w", t.ID, err)
	}
	if t.Deliverables, err = decodeList(dels); err != nil {
		return nil, fmt.Errorf("task %s deliverables: %w", t.ID, err)
	}
	return &t, nil
}
