package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, s *Store, from, to, content string) int64 {
	t.Helper()
	id, err := s.SendMessage(context.Background(), NewMessage{From: from, To: to, Type: "task", Content: content})
	require.NoError(t, err)
	return id
}

func TestSendMessage(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	id, err := s.SendMessage(ctx, NewMessage{
		From:        "PM-Agent",
		To:          "Backend-Agent",
		Type:        "question",
		Content:     "Is the user API on track?",
		TaskRef:     "P1-B1",
		ContextRefs: []string{"P1-A1", "P1-A2"},
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	msgs, err := s.Inbox(ctx, InboxQuery{Agent: "Backend-Agent"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "PM-Agent", m.From)
	assert.Equal(t, "Backend-Agent", m.To)
	assert.Equal(t, "question", m.Type)
	assert.Equal(t, "P1-B1", m.TaskRef)
	assert.Equal(t, []string{"P1-A1", "P1-A2"}, m.ContextRefs)
	assert.False(t, m.Read)
	assert.False(t, m.IsBroadcast())
	assert.False(t, m.CreatedAt.IsZero())
}

func TestSendMessage_Validation(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.SendMessage(ctx, NewMessage{Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.SendMessage(ctx, NewMessage{From: "A", Content: "   "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInbox_BroadcastAndDirect(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	broadcast := send(t, s, "A", "", "standup at ten")
	send(t, s, "A", "C", "for C only")
	direct := send(t, s, "A", "B", "for B only")

	msgs, err := s.Inbox(ctx, InboxQuery{Agent: "B"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, direct, msgs[0].ID, "newest first")
	assert.Equal(t, broadcast, msgs[1].ID)
	assert.True(t, msgs[1].IsBroadcast())

	cMsgs, err := s.Inbox(ctx, InboxQuery{Agent: "C"})
	require.NoError(t, err)
	assert.Len(t, cMsgs, 2)

	_, err = s.Inbox(ctx, InboxQuery{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInbox_UnreadOnly(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	b1 := send(t, s, "A", "", "broadcast one")
	d1 := send(t, s, "A", "B", "direct one")
	d2 := send(t, s, "A", "B", "direct two")

	require.NoError(t, s.MarkRead(ctx, d1))
	require.NoError(t, s.MarkRead(ctx, b1))

	unread, err := s.Inbox(ctx, InboxQuery{Agent: "B", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, d2, unread[0].ID)

	all, err := s.Inbox(ctx, InboxQuery{Agent: "B"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	read := map[int64]bool{}
	for _, m := range all {
		read[m.ID] = m.Read
	}
	assert.Equal(t, map[int64]bool{b1: true, d1: true, d2: false}, read)
}

func TestInbox_Limit(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < DefaultInboxLimit+5; i++ {
		last = send(t, s, "A", "", fmt.Sprintf("msg %d", i))
	}

	msgs, err := s.Inbox(ctx, InboxQuery{Agent: "B"})
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultInboxLimit)
	assert.Equal(t, last, msgs[0].ID)

	few, err := s.Inbox(ctx, InboxQuery{Agent: "B", Limit: 3})
	require.NoError(t, err)
	require.Len(t, few, 3)
	assert.Equal(t, last, few[0].ID)
	assert.Equal(t, last-2, few[2].ID)
}

func TestMarkRead_NotFound(t *testing.T) {
	s, _ := testStore(t)

	err := s.MarkRead(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
