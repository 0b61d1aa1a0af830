package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Quick status overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			tasks, err := s.ListTasks(cmd.Context(), store.TaskFilter{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks. Run: taskledger plan load, or taskledger task add")
				return nil
			}

			counts := map[store.TaskStatus]int{}
			var blocked []store.Task
			for _, t := range tasks {
				counts[t.Status]++
				if t.Status == store.StatusBlocked {
					blocked = append(blocked, t)
				}
			}

			fmt.Fprintf(out, "Tasks: %d total\n", len(tasks))
			for _, st := range store.Statuses {
				fmt.Fprintf(out, "  %-14s %d\n", string(st)+":", counts[st])
			}
			for _, ps := range store.SummarizePhases(tasks) {
				fmt.Fprintf(out, "Phase %d: %s\n", ps.Phase, ps.Progress)
			}

			agents, err := s.ListAgentStatus(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) > 0 {
				fmt.Fprintln(out, "\nAgents:")
				for _, ag := range agents {
					cur := ""
					if ag.CurrentTask != "" {
						cur = " on " + ag.CurrentTask
					}
					fmt.Fprintf(out, "  %-18s %s%s %d%%\n", ag.Agent, ag.Status, cur, ag.ProgressPercent)
				}
			}

			if len(blocked) > 0 {
				fmt.Fprintln(out, "\n⚠  Blocked:")
				for _, t := range blocked {
					fmt.Fprintf(out, "  %s [%s]: %s\n", t.ID, t.Assignee, t.Notes)
				}
			}
			return nil
		},
	}
}
