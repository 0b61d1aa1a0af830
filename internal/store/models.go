package store

import "time"

// TaskStatus is the lifecycle state of a task. The ledger stores any text,
// these are the conventional values.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// Statuses lists the conventional statuses in board order.
var Statuses = []TaskStatus{
	StatusPending,
	StatusInProgress,
	StatusReview,
	StatusBlocked,
	StatusCompleted,
}

// DefaultPriority is applied when a task is created without one.
const DefaultPriority = "P1"

// Task is a unit of work in the project plan.
// Dependencies and deliverables are opaque: nothing checks that the
// referenced tasks or paths exist.
type Task struct {
	ID           string     `json:"task_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Assignee     string     `json:"assignee"`
	Phase        int        `json:"phase"`
	Status       TaskStatus `json:"status"`
	Priority     string     `json:"priority"`
	Dependencies []string   `json:"dependencies"`
	Deliverables []string   `json:"deliverables"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Session-oriented fields. Empty unless a caller sets them.
	Session      string `json:"assignee_session,omitempty"`
	GitBranch    string `json:"git_branch,omitempty"`
	ReviewStatus string `json:"review_status,omitempty"`
	InputSpecs   string `json:"input_specs,omitempty"`
	OutputSpecs  string `json:"output_specs,omitempty"`
}

// NewTask carries the caller-supplied fields for creating or replacing a task.
type NewTask struct {
	ID           string   `json:"task_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Assignee     string   `json:"assignee"`
	Phase        int      `json:"phase"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
	Deliverables []string `json:"deliverables"`
	GitBranch    string   `json:"git_branch"`
	InputSpecs   string   `json:"input_specs"`
	OutputSpecs  string   `json:"output_specs"`
}

// AgentTask is the compact view of a task returned for one assignee.
type AgentTask struct {
	ID           string     `json:"task_id"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	Priority     string     `json:"priority"`
	Dependencies []string   `json:"dependencies"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TaskFilter narrows ListTasks. Zero values are unconstrained.
type TaskFilter struct {
	Assignee string
	Phase    int
	Status   TaskStatus
}

// StatusUpdate carries the optional parts of a status transition.
type StatusUpdate struct {
	Notes     string
	SessionID string // bound to the task when moving to in_progress
}

// AgentState is the coarse state of an agent in its status record.
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentWorking AgentState = "working"
	AgentBlocked AgentState = "blocked"
)

// AgentStatus is the independently maintained status record of one agent.
type AgentStatus struct {
	Agent           string     `json:"agent_name"`
	CurrentTask     string     `json:"current_task,omitempty"`
	Status          AgentState `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	LastUpdate      time.Time  `json:"last_update"`
}

// Message is an entry in the message log. An empty To means broadcast.
type Message struct {
	ID          int64     `json:"id"`
	From        string    `json:"from"`
	To          string    `json:"to,omitempty"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	TaskRef     string    `json:"task_ref,omitempty"`
	ContextRefs []string  `json:"context"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"timestamp"`
}

// IsBroadcast reports whether the message has no single addressee.
func (m Message) IsBroadcast() bool { return m.To == "" }

// NewMessage carries the fields for sending a message.
type NewMessage struct {
	From        string   `json:"from_agent"`
	To          string   `json:"to_agent"`
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	TaskRef     string   `json:"task_ref"`
	ContextRefs []string `json:"context_refs"`
}

// DefaultInboxLimit bounds inbox queries that do not set a limit.
const DefaultInboxLimit = 50

// InboxQuery selects the messages visible to one agent.
type InboxQuery struct {
	Agent      string
	UnreadOnly bool
	Limit      int // <= 0 means DefaultInboxLimit
}

// PhaseStatus summarizes task progress within one phase.
type PhaseStatus struct {
	Phase      int    `json:"phase"`
	TotalTasks int    `json:"total_tasks"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
	Review     int    `json:"review"`
	Blocked    int    `json:"blocked"`
	Progress   string `json:"progress"`
}
