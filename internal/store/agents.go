package store

import (
	"context"
	"fmt"
	"strings"
)

// SetAgentStatus creates or replaces the status record of one agent.
// The record is independent of task transitions; callers keep it current.
func (s *Store) SetAgentStatus(ctx context.Context, a AgentStatus) (*AgentStatus, error) {
	a.Agent = strings.TrimSpace(a.Agent)
	if a.Agent == "" {
		return nil, invalidf("agent_name is required")
	}
	if a.Status == "" {
		a.Status = AgentIdle
	}
	switch a.Status {
	case AgentIdle, AgentWorking, AgentBlocked:
	default:
		return nil, invalidf("agent %s: status must be idle, working or blocked, got %q", a.Agent, a.Status)
	}
	if a.ProgressPercent < 0 || a.ProgressPercent > 100 {
		return nil, invalidf("agent %s: progress must be between 0 and 100, got %d", a.Agent, a.ProgressPercent)
	}
	a.LastUpdate = s.now()

	_, err := s.exec(ctx,
		`INSERT INTO agent_status (agent_name, current_task, status, progress_percent, last_update)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (agent_name) DO UPDATE SET
			current_task = excluded.current_task,
			status = excluded.status,
			progress_percent = excluded.progress_percent,
			last_update = excluded.last_update`,
		a.Agent, a.CurrentTask, string(a.Status), a.ProgressPercent, a.LastUpdate,
	)
	if err != nil {
		return nil, s.classify("set agent status", err)
	}
	return &a, nil
}

// GetAgentStatus returns the status record of one agent. Agents that never
// reported are idle with no task.
func (s *Store) GetAgentStatus(ctx context.Context, agent string) (*AgentStatus, error) {
	row := s.queryRow(ctx,
		`SELECT agent_name, current_task, status, progress_percent, last_update
		 FROM agent_status WHERE agent_name = ?`, agent,
	)
	a, err := scanAgentStatus(row)
	if isNoRows(err) {
		return &AgentStatus{Agent: agent, Status: AgentIdle}, nil
	}
	if err != nil {
		return nil, s.classify("get agent status", err)
	}
	return a, nil
}

// ListAgentStatus returns every recorded agent, ordered by name.
func (s *Store) ListAgentStatus(ctx context.Context) ([]AgentStatus, error) {
	rows, err := s.query(ctx,
		`SELECT agent_name, current_task, status, progress_percent, last_update
		 FROM agent_status ORDER BY agent_name`,
	)
	if err != nil {
		return nil, s.classify("list agent status", err)
	}
	defer rows.Close()

	out := []AgentStatus{}
	for rows.Next() {
		a, err := scanAgentStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list agent status", err)
	}
	return out, nil
}

func scanAgentStatus(row rowScanner) (*AgentStatus, error) {
	var a AgentStatus
	var status string
	if err := row.Scan(&a.Agent, &a.CurrentTask, &status, &a.ProgressPercent, &a.LastUpdate); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan agent status: %w", err)
	}
	a.Status = AgentState(status)
	a.LastUpdate = a.LastUpdate.UTC()
	return &a, nil
}
