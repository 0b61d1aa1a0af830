// Package briefing builds the text an agent reads before it picks up work:
// its status record, its open tasks with their unmet dependencies, and its
// unread messages.
package briefing

import (
	"context"
	"fmt"
	"strings"

	"github.com/imkarma/taskledger/internal/deps"
	"github.com/imkarma/taskledger/internal/store"
)

// Builder assembles briefings from the ledger.
type Builder struct {
	store      *store.Store
	roles      map[string]string
	inboxLimit int
}

// New creates a briefing builder. roles maps agent names to a role
// description and may be nil.
func New(s *store.Store, roles map[string]string, inboxLimit int) *Builder {
	return &Builder{store: s, roles: roles, inboxLimit: inboxLimit}
}

// Build returns the markdown briefing for agent.
func (b *Builder) Build(ctx context.Context, agent string) (string, error) {
	status, err := b.store.GetAgentStatus(ctx, agent)
	if err != nil {
		return "", fmt.Errorf("agent status: %w", err)
	}
	all, err := b.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	inbox, err := b.store.Inbox(ctx, store.InboxQuery{Agent: agent, UnreadOnly: true, Limit: b.inboxLimit})
	if err != nil {
		return "", fmt.Errorf("inbox: %w", err)
	}

	parts := []string{
		b.header(agent),
		statusSection(status),
		tasksSection(agent, all),
	}
	if len(inbox) > 0 {
		parts = append(parts, inboxSection(inbox))
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

func (b *Builder) header(agent string) string {
	if role, ok := b.roles[agent]; ok && role != "" {
		return fmt.Sprintf("# Briefing: %s\nRole: %s", agent, role)
	}
	return fmt.Sprintf("# Briefing: %s", agent)
}

func statusSection(a *store.AgentStatus) string {
	var sb strings.Builder
	sb.WriteString("## Status\n")
	fmt.Fprintf(&sb, "State: %s (%d%%)", a.Status, a.ProgressPercent)
	if a.CurrentTask != "" {
		fmt.Fprintf(&sb, "\nCurrent task: %s", a.CurrentTask)
	}
	return sb.String()
}

func tasksSection(agent string, all []store.Task) string {
	idx := deps.Index(all)

	var sb strings.Builder
	sb.WriteString("## Tasks\n")
	open := 0
	var ready []string
	for _, t := range all {
		if t.Assignee != agent || t.Status == store.StatusCompleted {
			continue
		}
		open++
		if t.Status == store.StatusPending && deps.Ready(t, idx) {
			ready = append(ready, t.ID)
		}
		fmt.Fprintf(&sb, "- **%s** [%s] %s (%s, phase %d)\n", t.ID, t.Priority, t.Title, t.Status, t.Phase)
		if t.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", t.Description)
		}
		if waiting := deps.Waiting(t, idx); len(waiting) > 0 {
			fmt.Fprintf(&sb, "  Waiting on: %s\n", strings.Join(waiting, ", "))
		}
		if len(t.Deliverables) > 0 {
			fmt.Fprintf(&sb, "  Deliverables: %s\n", strings.Join(t.Deliverables, ", "))
		}
	}
	if open == 0 {
		sb.WriteString("No open tasks.")
	}
	if len(ready) > 0 {
		fmt.Fprintf(&sb, "Ready to start: %s\n", strings.Join(ready, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func inboxSection(msgs []store.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Unread messages (%d)\n", len(msgs))
	for _, m := range msgs {
		to := "all"
		if !m.IsBroadcast() {
			to = "you"
		}
		fmt.Fprintf(&sb, "- #%d from %s to %s", m.ID, m.From, to)
		if m.Type != "" {
			fmt.Fprintf(&sb, " [%s]", m.Type)
		}
		if m.TaskRef != "" {
			fmt.Fprintf(&sb, " re %s", m.TaskRef)
		}
		fmt.Fprintf(&sb, ": %s\n", m.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// MarkInboxRead marks the unread messages a briefing for agent shows as
// read and returns how many it marked.
func (b *Builder) MarkInboxRead(ctx context.Context, agent string) (int, error) {
	inbox, err := b.store.Inbox(ctx, store.InboxQuery{Agent: agent, UnreadOnly: true, Limit: b.inboxLimit})
	if err != nil {
		return 0, fmt.Errorf("inbox: %w", err)
	}
	for i, m := range inbox {
		if err := b.store.MarkRead(ctx, m.ID); err != nil {
			return i, err
		}
	}
	return len(inbox), nil
}
