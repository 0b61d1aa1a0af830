package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/plan"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Load and inspect project plans",
	}
	cmd.AddCommand(newPlanLoadCmd(a))
	cmd.AddCommand(newPlanShowCmd())
	return cmd
}

func loadPlan(args []string) (*plan.Plan, error) {
	if len(args) == 0 {
		return plan.Default(), nil
	}
	return plan.Load(args[0])
}

func newPlanLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load [file]",
		Short: "Write a plan's tasks into the ledger",
		Long: `Writes every task of a YAML plan with create-or-replace semantics.
Tasks that already exist are reset to pending. Without a file the
built-in phase 1 plan is loaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(args)
			if err != nil {
				return err
			}
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := plan.Apply(cmd.Context(), s, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d tasks from plan %q\n", n, p.Name)
			return nil
		},
	}
}

func newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [file]",
		Short: "Print a plan without touching the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan %q: %d tasks\n", p.Name, len(p.Tasks))
			for _, t := range p.Tasks {
				fmt.Fprintf(out, "  %-6s ph%d %-3s %-16s %s\n", t.ID, t.Phase, t.Priority, t.Assignee, t.Title)
			}
			return nil
		},
	}
}
