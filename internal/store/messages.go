package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const messageColumns = `id, from_agent, to_agent, type, content, task_ref, context_refs, read_status, created_at`

// SendMessage appends a message to the log and returns its ID.
// An empty To makes it a broadcast visible to every agent.
func (s *Store) SendMessage(ctx context.Context, nm NewMessage) (int64, error) {
	if strings.TrimSpace(nm.From) == "" {
		return 0, invalidf("from_agent is required")
	}
	if strings.TrimSpace(nm.Content) == "" {
		return 0, invalidf("content is required")
	}

	var to sql.NullString
	if nm.To != "" {
		to = sql.NullString{String: nm.To, Valid: true}
	}

	var id int64
	err := s.queryRow(ctx,
		`INSERT INTO messages (from_agent, to_agent, type, content, task_ref, context_refs, read_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		nm.From, to, nm.Type, nm.Content, nm.TaskRef, encodeList(nm.ContextRefs), false, s.now(),
	).Scan(&id)
	if err != nil {
		return 0, s.classify("send message", err)
	}

	recipient := nm.To
	if recipient == "" {
		recipient = "all"
	}
	s.log.Debug("message sent", "id", id, "from", nm.From, "to", recipient, "type", nm.Type)
	return id, nil
}

// Inbox returns the direct and broadcast messages visible to an agent,
// newest first, capped at q.Limit (DefaultInboxLimit when unset).
func (s *Store) Inbox(ctx context.Context, q InboxQuery) ([]Message, error) {
	if strings.TrimSpace(q.Agent) == "" {
		return nil, invalidf("agent is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE (to_agent = ? OR to_agent IS NULL)`
	args := []any{q.Agent}
	if q.UnreadOnly {
		query += ` AND read_status = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, s.classify("inbox", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("inbox", err)
	}
	return msgs, nil
}

// MarkRead flags a message as read.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `UPDATE messages SET read_status = ? WHERE id = ?`, true, id)
	if err != nil {
		return s.classify("mark read", err)
	}
	return expectRow(res, fmt.Errorf("%w: %d", ErrMessageNotFound, id))
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var to sql.NullString
	var refs string
	if err := row.Scan(&m.ID, &m.From, &to, &m.Type, &m.Content, &m.TaskRef, &refs, &m.Read, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.To = to.String
	m.CreatedAt = m.CreatedAt.UTC()
	var err error
	if m.ContextRefs, err = decodeList(refs); err != nil {
		return nil, fmt.Errorf("message %d context: %w", m.ID, err)
	}
	return &m, nil
}
