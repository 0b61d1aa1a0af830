package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

func newAgentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent status records",
	}
	cmd.AddCommand(newAgentSetCmd(a))
	cmd.AddCommand(newAgentListCmd(a))
	return cmd
}

func newAgentSetCmd(a *app) *cobra.Command {
	var st store.AgentStatus

	cmd := &cobra.Command{
		Use:   "set [agent] [idle|working|blocked]",
		Short: "Record an agent's status",
		Long:  "Records an agent's status. The record is independent of task status changes.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st.Agent = args[0]
			st.Status = store.AgentState(args[1])
			saved, err := s.SetAgentStatus(cmd.Context(), st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%d%%)\n", saved.Agent, saved.Status, saved.ProgressPercent)
			return nil
		},
	}
	cmd.Flags().StringVar(&st.CurrentTask, "task", "", "Task the agent is on")
	cmd.Flags().IntVar(&st.ProgressPercent, "progress", 0, "Progress percent, 0-100")
	return cmd
}

func newAgentListCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents from the roster and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			recorded, err := s.ListAgentStatus(cmd.Context())
			if err != nil {
				return err
			}
			byName := map[string]store.AgentStatus{}
			for _, r := range recorded {
				byName[r.Agent] = r
			}

			// Roster first, then agents that only have a status record.
			var rows []store.AgentStatus
			roles := a.cfg.Roles()
			for _, name := range a.cfg.AgentNames() {
				r, ok := byName[name]
				if !ok {
					r = store.AgentStatus{Agent: name, Status: store.AgentIdle}
				}
				rows = append(rows, r)
				delete(byName, name)
			}
			for _, r := range recorded {
				if _, ok := byName[r.Agent]; ok {
					rows = append(rows, r)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, rows)
			}
			for _, r := range rows {
				cur := ""
				if r.CurrentTask != "" {
					cur = " on " + r.CurrentTask
				}
				role := roles[r.Agent]
				if role != "" {
					role = " (" + role + ")"
				}
				fmt.Fprintf(out, "%-18s %-8s %3d%%%s%s\n", r.Agent, r.Status, r.ProgressPercent, cur, role)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}
