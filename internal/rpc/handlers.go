package rpc

import (
	"context"
	"fmt"

	"github.com/imkarma/taskledger/internal/deps"
	"github.com/imkarma/taskledger/internal/store"
)

// ack is the success envelope for write operations.
type ack struct {
	Status     string `json:"status"`
	TaskID     string `json:"task_id,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`
	ID         int64  `json:"id,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"add_task":           s.addTask,
		"assign_task":        s.assignTask,
		"reassign_task":      s.reassignTask,
		"update_task_status": s.updateTaskStatus,
		"list_tasks":         s.listTasks,
		"get_task":           s.getTask,
		"get_agent_tasks":    s.getAgentTasks,
		"get_phase_status":   s.getPhaseStatus,
		"get_progress":       s.getProgress,
		"send_message":       s.sendMessage,
		"get_messages":       s.getMessages,
		"mark_read":          s.markRead,
		"set_agent_status":   s.setAgentStatus,
		"list_agent_status":  s.listAgentStatus,
		"check_dependencies": s.checkDependencies,
	}
}

func (s *Server) addTask(ctx context.Context, params []byte) (any, error) {
	var p store.NewTask
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	t, err := s.store.UpsertTask(ctx, p)
	if err != nil {
		return nil, err
	}
	return ack{Status: "success", TaskID: t.ID, Message: fmt.Sprintf("task %s saved", t.ID)}, nil
}

func (s *Server) assignTask(ctx context.Context, params []byte) (any, error) {
	var p struct {
		TaskID       string   `json:"task_id"`
		AgentName    string   `json:"agent_name"`
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		Phase        int      `json:"phase"`
		Priority     string   `json:"priority"`
		Dependencies []string `json:"dependencies"`
		Deliverables []string `json:"deliverables"`
		GitBranch    string   `json:"git_branch"`
		InputSpecs   string   `json:"input_specs"`
		OutputSpecs  string   `json:"output_specs"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTask(ctx, store.NewTask{
		ID:           p.TaskID,
		Title:        p.Title,
		Description:  p.Description,
		Assignee:     p.AgentName,
		Phase:        p.Phase,
		Priority:     p.Priority,
		Dependencies: p.Dependencies,
		Deliverables: p.Deliverables,
		GitBranch:    p.GitBranch,
		InputSpecs:   p.InputSpecs,
		OutputSpecs:  p.OutputSpecs,
	})
	if isDuplicate(err) {
		return errorf("task %s already exists", p.TaskID), nil
	}
	if err != nil {
		return nil, err
	}
	return ack{
		Status:     "success",
		TaskID:     t.ID,
		AssignedTo: t.Assignee,
		Message:    fmt.Sprintf("task %s assigned to %s", t.ID, t.Assignee),
	}, nil
}

func (s *Server) reassignTask(ctx context.Context, params []byte) (any, error) {
	var p struct {
		TaskID   string `json:"task_id"`
		Assignee string `json:"assignee"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := s.store.ReassignTask(ctx, p.TaskID, p.Assignee); err != nil {
		return nil, err
	}
	return ack{Status: "success", TaskID: p.TaskID, AssignedTo: p.Assignee}, nil
}

func (s *Server) updateTaskStatus(ctx context.Context, params []byte) (any, error) {
	var p struct {
		TaskID    string `json:"task_id"`
		Status    string `json:"status"`
		Notes     string `json:"notes"`
		SessionID string `json:"session_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	err := s.store.UpdateTaskStatus(ctx, p.TaskID, store.TaskStatus(p.Status), store.StatusUpdate{
		Notes:     p.Notes,
		SessionID: p.SessionID,
	})
	if err != nil {
		return nil, err
	}
	return ack{Status: "success", TaskID: p.TaskID, NewStatus: p.Status}, nil
}

func (s *Server) listTasks(ctx context.Context, params []byte) (any, error) {
	var p struct {
		Assignee string `json:"assignee"`
		Phase    int    `json:"phase"`
		Status   string `json:"status"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, store.TaskFilter{
		Assignee: p.Assignee,
		Phase:    p.Phase,
		Status:   store.TaskStatus(p.Status),
	})
}

func (s *Server) getTask(ctx context.Context, params []byte) (any, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, p.TaskID)
}

func (s *Server) getAgentTasks(ctx context.Context, params []byte) (any, error) {
	var p struct {
		AgentName string `json:"agent_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.AgentTasks(ctx, p.AgentName)
}

func (s *Server) getPhaseStatus(ctx context.Context, params []byte) (any, error) {
	var p struct {
		Phase int `json:"phase"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.PhaseStatus(ctx, p.Phase)
}

func (s *Server) getProgress(ctx context.Context, params []byte) (any, error) {
	var p struct{}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.Progress(ctx)
}

func (s *Server) sendMessage(ctx context.Context, params []byte) (any, error) {
	var p struct {
		FromAgent   string   `json:"from_agent"`
		ToAgent     string   `json:"to_agent"`
		MessageType string   `json:"message_type"`
		Content     string   `json:"content"`
		TaskRef     string   `json:"task_ref"`
		ContextRefs []string `json:"context_refs"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	id, err := s.store.SendMessage(ctx, store.NewMessage{
		From:        p.FromAgent,
		To:          p.ToAgent,
		Type:        p.MessageType,
		Content:     p.Content,
		TaskRef:     p.TaskRef,
		ContextRefs: p.ContextRefs,
	})
	if err != nil {
		return nil, err
	}
	to := p.ToAgent
	if to == "" {
		to = "all agents"
	}
	return ack{Status: "success", ID: id, Message: "message sent to " + to}, nil
}

func (s *Server) getMessages(ctx context.Context, params []byte) (any, error) {
	var p struct {
		AgentName  string `json:"agent_name"`
		UnreadOnly bool   `json:"unread_only"`
		Limit      int    `json:"limit"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	limit := s.inboxLimit
	if p.Limit > 0 && p.Limit < limit {
		limit = p.Limit
	}
	return s.store.Inbox(ctx, store.InboxQuery{Agent: p.AgentName, UnreadOnly: p.UnreadOnly, Limit: limit})
}

func (s *Server) markRead(ctx context.Context, params []byte) (any, error) {
	var p struct {
		ID int64 `json:"id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := s.store.MarkRead(ctx, p.ID); err != nil {
		return nil, err
	}
	return ack{Status: "success", ID: p.ID}, nil
}

func (s *Server) setAgentStatus(ctx context.Context, params []byte) (any, error) {
	var p struct {
		AgentName       string `json:"agent_name"`
		CurrentTask     string `json:"current_task"`
		Status          string `json:"status"`
		ProgressPercent int    `json:"progress_percent"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.SetAgentStatus(ctx, store.AgentStatus{
		Agent:           p.AgentName,
		CurrentTask:     p.CurrentTask,
		Status:          store.AgentState(p.Status),
		ProgressPercent: p.ProgressPercent,
	})
}

func (s *Server) listAgentStatus(ctx context.Context, params []byte) (any, error) {
	var p struct{}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.store.ListAgentStatus(ctx)
}

func (s *Server) checkDependencies(ctx context.Context, params []byte) (any, error) {
	var p struct{}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return deps.Check(tasks), nil
}
