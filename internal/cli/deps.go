package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/deps"
	"github.com/imkarma/taskledger/internal/store"
)

func newDepsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect task dependencies",
	}
	cmd.AddCommand(newDepsCheckCmd(a))
	return cmd
}

func newDepsCheckCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report dangling dependencies and cycles",
		Long:  "Reports dependencies on unknown tasks and dependency cycles. Exits non-zero when any are found.",
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
			report := deps.Check(tasks)

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, d := range report.Dangling {
					fmt.Fprintf(out, "dangling: %s depends on unknown task %s\n", d.TaskID, d.Missing)
				}
				for _, c := range report.Cycles {
					fmt.Fprintf(out, "cycle: %s\n", strings.Join(c, " → "))
				}
			}
			if !report.OK() {
				return fmt.Errorf("%d dangling dependencies, %d cycles", len(report.Dangling), len(report.Cycles))
			}
			if !jsonOut {
				fmt.Fprintf(out, "%d tasks, dependencies OK\n", len(tasks))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}
