package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/imkarma/taskledger/internal/deps"
	"github.com/imkarma/taskledger/internal/store"
)

// screen represents which top-level view is active.
type screen int

const (
	screenBoard  screen = iota // agent cards (main)
	screenAgent                // one agent's task list
	screenDetail               // task detail in a viewport
	screenInbox                // agent inbox in a viewport
)

// popup represents an active overlay.
type popup int

const (
	popupNone    popup = iota
	popupBlock         // reason for blocking a task
	popupMessage       // compose a message from the current agent
)

const refreshInterval = 3 * time.Second

// agentCard is one agent with its tasks and status record.
type agentCard struct {
	Agent  string
	Status store.AgentStatus
	Tasks  []store.Task
}

// completed returns how many of the card's tasks are completed.
func (c agentCard) completed() int {
	n := 0
	for _, t := range c.Tasks {
		if t.Status == store.StatusCompleted {
			n++
		}
	}
	return n
}

// Model is the top-level bubbletea model.
type Model struct {
	store      *store.Store
	roster     []string
	inboxLimit int
	width      int
	height     int

	screen screen
	popup  popup

	// Board state.
	cards      []agentCard
	phases     []store.PhaseStatus
	index      map[string]store.Task
	cursor     int
	gridCols   int
	taskCursor int
	refreshing bool

	// Viewport for task detail and inbox.
	viewport viewport.Model

	// Popup inputs.
	textInput    textinput.Model
	textInput2   textinput.Model
	inputFocused int
	popupTaskID  string

	statusMsg  string
	statusTime time.Time
	quitting   bool
}

// New creates a dashboard over s. roster orders the agent cards; agents
// that own tasks but are not on the roster are appended.
func New(s *store.Store, roster []string, inboxLimit int) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	ti2 := textinput.New()
	ti2.CharLimit = 500
	ti2.Width = 50

	return Model{
		store:      s,
		roster:     roster,
		inboxLimit: inboxLimit,
		screen:     screenBoard,
		gridCols:   2,
		viewport:   viewport.New(80, 20),
		textInput:  ti,
		textInput2: ti2,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), tickCmd())
}

// --- Messages ---

type boardLoadedMsg struct {
	cards  []agentCard
	phases []store.PhaseStatus
	index  map[string]store.Task
	err    error
}

type viewportLoadedMsg struct {
	screen  screen
	content string
	err     error
}

type actionDoneMsg struct {
	status string
	err    error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// --- Loaders ---

func (m Model) loadBoard() tea.Cmd {
	return func() tea.Msg {
		return buildBoard(context.Background(), m.store, m.roster)
	}
}

func buildBoard(ctx context.Context, s *store.Store, roster []string) boardLoadedMsg {
	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	statuses, err := s.ListAgentStatus(ctx)
	if err != nil {
		return boardLoadedMsg{err: err}
	}

	byAgent := map[string]*agentCard{}
	var order []string
	card := func(name string) *agentCard {
		if c, ok := byAgent[name]; ok {
			return c
		}
		c := &agentCard{Agent: name, Status: store.AgentStatus{Agent: name, Status: store.AgentIdle}}
		byAgent[name] = c
		order = append(order, name)
		return c
	}
	for _, name := range roster {
		card(name)
	}
	for _, t := range tasks {
		c := card(t.Assignee)
		c.Tasks = append(c.Tasks, t)
	}
	for _, st := range statuses {
		card(st.Agent).Status = st
	}

	cards := make([]agentCard, 0, len(order))
	for _, name := range order {
		cards = append(cards, *byAgent[name])
	}
	return boardLoadedMsg{
		cards:  cards,
		phases: store.SummarizePhases(tasks),
		index:  deps.Index(tasks),
	}
}

func (m Model) loadInbox(agent string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := m.store.Inbox(context.Background(), store.InboxQuery{Agent: agent, Limit: m.inboxLimit})
		if err != nil {
			return viewportLoadedMsg{screen: screenInbox, err: err}
		}
		return viewportLoadedMsg{screen: screenInbox, content: renderInbox(agent, msgs)}
	}
}

func (m Model) setTaskStatus(id string, status store.TaskStatus, notes string) tea.Cmd {
	return func() tea.Msg {
		u := store.StatusUpdate{Notes: notes}
		if status == store.StatusInProgress {
			u.SessionID = uuid.NewString()
		}
		err := m.store.UpdateTaskStatus(context.Background(), id, status, u)
		return actionDoneMsg{status: fmt.Sprintf("%s → %s", id, status), err: err}
	}
}

func (m Model) sendMessage(from, to, content, taskRef string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.store.SendMessage(context.Background(), store.NewMessage{
			From:    from,
			To:      to,
			Type:    "note",
			Content: content,
			TaskRef: taskRef,
		})
		if to == "" {
			to = "all"
		}
		return actionDoneMsg{status: "Message sent to " + to, err: err}
	}
}

// --- Selection helpers ---

func (m *Model) clampGridCursor() {
	if m.cursor >= len(m.cards) {
		m.cursor = len(m.cards) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) clampTaskCursor() {
	c := m.selectedCard()
	if c == nil {
		m.taskCursor = 0
		return
	}
	if m.taskCursor >= len(c.Tasks) {
		m.taskCursor = len(c.Tasks) - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
}

func (m Model) selectedCard() *agentCard {
	if m.cursor < len(m.cards) {
		return &m.cards[m.cursor]
	}
	return nil
}

func (m Model) selectedTask() *store.Task {
	c := m.selectedCard()
	if c == nil || m.taskCursor >= len(c.Tasks) {
		return nil
	}
	t := c.Tasks[m.taskCursor]
	return &t
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusTime = time.Now()
}

// --- Plain renderers used inside viewports ---

func renderTaskDetail(t store.Task, idx map[string]store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&b, "Assignee:  %s\n", t.Assignee)
	fmt.Fprintf(&b, "Phase:     %d\n", t.Phase)
	fmt.Fprintf(&b, "Status:    %s\n", t.Status)
	fmt.Fprintf(&b, "Priority:  %s\n", t.Priority)
	fmt.Fprintf(&b, "Created:   %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	if t.StartedAt != nil {
		fmt.Fprintf(&b, "Started:   %s\n", t.StartedAt.Format("2006-01-02 15:04"))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", t.CompletedAt.Format("2006-01-02 15:04"))
	}
	if t.Session != "" {
		fmt.Fprintf(&b, "Session:   %s\n", t.Session)
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Description)
	}
	if len(t.Dependencies) > 0 {
		b.WriteString("\nDependencies:\n")
		for _, d := range t.Dependencies {
			state := "missing"
			if dep, ok := idx[d]; ok {
				state = string(dep.Status)
			}
			fmt.Fprintf(&b, "  %s %s (%s)\n", statusIcon(store.TaskStatus(state)), d, state)
		}
	}
	if len(t.Deliverables) > 0 {
		b.WriteString("\nDeliverables:\n")
		for _, d := range t.Deliverables {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	if t.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", t.Notes)
	}
	return b.String()
}

func renderInbox(agent string, msgs []store.Message) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages for %s.", agent)
	}
	var b strings.Builder
	for _, msg := range msgs {
		mark := "●"
		if msg.Read {
			mark = " "
		}
		to := "all"
		if !msg.IsBroadcast() {
			to = msg.To
		}
		fmt.Fprintf(&b, "%s #%d %s  %s → %s", mark, msg.ID, msg.CreatedAt.Format("01-02 15:04"), msg.From, to)
		if msg.TaskRef != "" {
			fmt.Fprintf(&b, " (%s)", msg.TaskRef)
		}
		fmt.Fprintf(&b, "\n    %s\n", msg.Content)
	}
	return b.String()
}

func statusIcon(s store.TaskStatus) string {
	switch s {
	case store.StatusPending:
		return "○"
	case store.StatusInProgress:
		return "●"
	case store.StatusReview:
		return "◎"
	case store.StatusCompleted:
		return "✓"
	case store.StatusBlocked:
		return "✗"
	default:
		return "·"
	}
}
