package briefing

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/taskledger/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuild_Tasks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, nt := range []store.NewTask{
		{ID: "A1", Title: "Schema", Assignee: "Architect-Agent", Phase: 1, Priority: "P0"},
		{ID: "B1", Title: "User API", Assignee: "Backend-Agent", Phase: 1, Priority: "P0",
			Description: "CRUD and auth", Dependencies: []string{"A1", "X9"}, Deliverables: []string{"api/user.go"}},
		{ID: "B2", Title: "Old work", Assignee: "Backend-Agent", Phase: 1},
	} {
		_, err := s.UpsertTask(ctx, nt)
		require.NoError(t, err)
	}
	require.NoError(t, s.UpdateTaskStatus(ctx, "B2", store.StatusCompleted, store.StatusUpdate{}))

	b := New(s, map[string]string{"Backend-Agent": "backend"}, 0)
	out, err := b.Build(ctx, "Backend-Agent")
	require.NoError(t, err)

	assert.Contains(t, out, "# Briefing: Backend-Agent\nRole: backend")
	assert.Contains(t, out, "State: idle (0%)")
	assert.Contains(t, out, "**B1** [P0] User API (pending, phase 1)")
	assert.Contains(t, out, "CRUD and auth")
	assert.Contains(t, out, "Waiting on: A1, X9")
	assert.Contains(t, out, "Deliverables: api/user.go")
	assert.NotContains(t, out, "Old work", "completed tasks are left out")
	assert.NotContains(t, out, "Schema")
	assert.NotContains(t, out, "Unread messages")
	assert.NotContains(t, out, "Ready to start", "B1 still waits on A1")

	require.NoError(t, s.UpdateTaskStatus(ctx, "A1", store.StatusCompleted, store.StatusUpdate{}))
	out, err = b.Build(ctx, "Backend-Agent")
	require.NoError(t, err)
	assert.Contains(t, out, "Waiting on: X9")

	_, err = s.UpsertTask(ctx, store.NewTask{ID: "B3", Title: "Docs", Assignee: "Backend-Agent", Phase: 1, Dependencies: []string{"A1"}})
	require.NoError(t, err)
	out, err = b.Build(ctx, "Backend-Agent")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to start: B3")
	assert.NotContains(t, out, "Ready to start: B1")
}

func TestBuild_StatusAndInbox(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.SetAgentStatus(ctx, store.AgentStatus{Agent: "DevOps-Agent", CurrentTask: "D1", Status: store.AgentWorking, ProgressPercent: 30})
	require.NoError(t, err)

	_, err = s.SendMessage(ctx, store.NewMessage{From: "PM-Agent", Content: "freeze on friday", Type: "notice"})
	require.NoError(t, err)
	read, err := s.SendMessage(ctx, store.NewMessage{From: "PM-Agent", To: "DevOps-Agent", Content: "already seen"})
	require.NoError(t, err)
	require.NoError(t, s.MarkRead(ctx, read))
	_, err = s.SendMessage(ctx, store.NewMessage{From: "Backend-Agent", To: "DevOps-Agent", Content: "need a db", TaskRef: "D1"})
	require.NoError(t, err)

	out, err := New(s, nil, 10).Build(ctx, "DevOps-Agent")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Briefing: DevOps-Agent\n\n"))
	assert.Contains(t, out, "State: working (30%)")
	assert.Contains(t, out, "Current task: D1")
	assert.Contains(t, out, "No open tasks.")
	assert.Contains(t, out, "## Unread messages (2)")
	assert.Contains(t, out, "from Backend-Agent to you re D1: need a db")
	assert.Contains(t, out, "from PM-Agent to all [notice]: freeze on friday")
	assert.NotContains(t, out, "already seen")
}

func TestMarkInboxRead(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two"} {
		_, err := s.SendMessage(ctx, store.NewMessage{From: "PM-Agent", To: "QA", Content: content})
		require.NoError(t, err)
	}
	_, err := s.SendMessage(ctx, store.NewMessage{From: "PM-Agent", To: "Other", Content: "not yours"})
	require.NoError(t, err)

	b := New(s, nil, 10)
	n, err := b.MarkInboxRead(ctx, "QA")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := b.Build(ctx, "QA")
	require.NoError(t, err)
	assert.NotContains(t, out, "Unread messages")

	other, err := s.Inbox(ctx, store.InboxQuery{Agent: "Other", UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
