package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create or manage tasks",
		Long:  "Create tasks and move them through pending, in_progress, review, completed and blocked.",
	}
	cmd.AddCommand(newTaskAddCmd(a, false))
	cmd.AddCommand(newTaskAddCmd(a, true))
	cmd.AddCommand(newTaskAssignCmd(a))
	cmd.AddCommand(newTaskUpdateCmd(a))
	cmd.AddCommand(newTaskStartCmd(a))
	cmd.AddCommand(newTaskDoneCmd(a))
	cmd.AddCommand(newTaskBlockCmd(a))
	cmd.AddCommand(newTaskListCmd(a))
	cmd.AddCommand(newTaskShowCmd(a))
	cmd.AddCommand(newTaskAgentCmd(a))
	return cmd
}

// newTaskAddCmd builds "task add" (create or replace) or, when strict is
// set, "task create" (fails on an existing id).
func newTaskAddCmd(a *app, strict bool) *cobra.Command {
	var nt store.NewTask

	use, short := "add [id] [title]", "Create a task, replacing any task with the same id"
	if strict {
		use, short = "create [id] [title]", "Create a task, failing if the id is taken"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			nt.ID = args[0]
			nt.Title = strings.Join(args[1:], " ")

			var task *store.Task
			if strict {
				task, err = s.CreateTask(cmd.Context(), nt)
			} else {
				task, err = s.UpsertTask(cmd.Context(), nt)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s assigned to %s [%s, phase %d]\n", task.ID, task.Assignee, task.Priority, task.Phase)
			return nil
		},
	}

	cmd.Flags().StringVarP(&nt.Assignee, "assignee", "a", "", "Agent that owns the task")
	cmd.Flags().IntVar(&nt.Phase, "phase", 1, "Project phase")
	cmd.Flags().StringVarP(&nt.Priority, "priority", "p", store.DefaultPriority, "Priority: P0, P1, P2")
	cmd.Flags().StringVarP(&nt.Description, "desc", "d", "", "Task description")
	cmd.Flags().StringSliceVar(&nt.Dependencies, "dep", nil, "Task ids this task waits on (repeatable)")
	cmd.Flags().StringSliceVar(&nt.Deliverables, "deliverable", nil, "Expected output paths (repeatable)")
	cmd.Flags().StringVar(&nt.GitBranch, "branch", "", "Git branch for the work")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func newTaskAssignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign [id] [agent]",
		Short: "Reassign a task; it returns to pending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ReassignTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned task %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newTaskUpdateCmd(a *app) *cobra.Command {
	var u store.StatusUpdate

	cmd := &cobra.Command{
		Use:   "update [id] [status]",
		Short: "Set a task's status",
		Long:  "Sets the status and overwrites the notes. in_progress stamps started_at; completed stamps completed_at.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setStatus(cmd, args[0], store.TaskStatus(args[1]), u)
		},
	}
	cmd.Flags().StringVarP(&u.Notes, "notes", "n", "", "Notes to store with the change")
	cmd.Flags().StringVar(&u.SessionID, "session", "", "Session to bind when moving to in_progress")
	return cmd
}

func newTaskStartCmd(a *app) *cobra.Command {
	var u store.StatusUpdate

	cmd := &cobra.Command{
		Use:   "start [id]",
		Short: "Move a task to in_progress under a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if u.SessionID == "" {
				u.SessionID = uuid.NewString()
			}
			if err := a.setStatus(cmd, args[0], store.StatusInProgress, u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", u.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&u.Notes, "notes", "n", "", "Notes to store with the change")
	cmd.Flags().StringVar(&u.SessionID, "session", "", "Session id (default: a new UUID)")
	return cmd
}

func newTaskDoneCmd(a *app) *cobra.Command {
	var u store.StatusUpdate

	cmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setStatus(cmd, args[0], store.StatusCompleted, u)
		},
	}
	cmd.Flags().StringVarP(&u.Notes, "notes", "n", "", "Notes to store with the change")
	return cmd
}

func newTaskBlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block [id] [reason]",
		Short: "Mark a task as blocked",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason := strings.Join(args[1:], " ")
			return a.setStatus(cmd, args[0], store.StatusBlocked, store.StatusUpdate{Notes: reason})
		},
	}
}

func (a *app) setStatus(cmd *cobra.Command, id string, status store.TaskStatus, u store.StatusUpdate) error {
	s, err := a.mustStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.UpdateTaskStatus(cmd.Context(), id, status, u); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s → %s\n", id, status)
	return nil
}

func newTaskListCmd(a *app) *cobra.Command {
	var f store.TaskFilter
	var status string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			f.Status = store.TaskStatus(status)
			tasks, err := s.ListTasks(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			for _, t := range tasks {
				printTaskLine(out, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Assignee, "assignee", "a", "", "Only tasks owned by this agent")
	cmd.Flags().IntVar(&f.Phase, "phase", 0, "Only tasks in this phase")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only tasks with this status")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func printTaskLine(w io.Writer, t store.Task) {
	blocked := ""
	if t.Status == store.StatusBlocked && t.Notes != "" {
		blocked = fmt.Sprintf(" BLOCKED: %q", t.Notes)
	}
	fmt.Fprintf(w, "%-8s ph%d %-15s %-3s %s [%s]%s\n", t.ID, t.Phase, statusLabel(t.Status), t.Priority, t.Title, t.Assignee, blocked)
}

func newTaskShowCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			task, err := s.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, task)
			}

			fmt.Fprintf(out, "Task %s\n", task.ID)
			fmt.Fprintf(out, "  Title:     %s\n", task.Title)
			fmt.Fprintf(out, "  Assignee:  %s\n", task.Assignee)
			fmt.Fprintf(out, "  Phase:     %d\n", task.Phase)
			fmt.Fprintf(out, "  Status:    %s\n", task.Status)
			fmt.Fprintf(out, "  Priority:  %s\n", task.Priority)
			if task.Description != "" {
				fmt.Fprintf(out, "  Desc:      %s\n", task.Description)
			}
			if len(task.Dependencies) > 0 {
				fmt.Fprintf(out, "  Depends:   %s\n", strings.Join(task.Dependencies, ", "))
			}
			if len(task.Deliverables) > 0 {
				fmt.Fprintf(out, "  Delivers:  %s\n", strings.Join(task.Deliverables, ", "))
			}
			if task.Notes != "" {
				fmt.Fprintf(out, "  Notes:     %s\n", task.Notes)
			}
			if task.Session != "" {
				fmt.Fprintf(out, "  Session:   %s\n", task.Session)
			}
			if task.GitBranch != "" {
				fmt.Fprintf(out, "  Branch:    %s\n", task.GitBranch)
			}
			fmt.Fprintf(out, "  Created:   %s\n", task.CreatedAt.Format("2006-01-02 15:04"))
			if task.StartedAt != nil {
				fmt.Fprintf(out, "  Started:   %s\n", task.StartedAt.Format("2006-01-02 15:04"))
			}
			if task.CompletedAt != nil {
				fmt.Fprintf(out, "  Completed: %s\n", task.CompletedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newTaskAgentCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "agent [name]",
		Short: "List one agent's tasks by priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			tasks, err := s.AgentTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintf(out, "No tasks for %s.\n", args[0])
				return nil
			}
			for _, t := range tasks {
				deps := ""
				if len(t.Dependencies) > 0 {
					deps = " (after " + strings.Join(t.Dependencies, ", ") + ")"
				}
				fmt.Fprintf(out, "%-3s %-8s %-15s %s%s\n", t.Priority, t.ID, statusLabel(t.Status), t.Title, deps)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}
