package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

func newPhaseCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "phase [number]",
		Short: "Show progress of one phase, or all phases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var phases []store.PhaseStatus
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid phase: %s", args[0])
				}
				ps, err := s.PhaseStatus(cmd.Context(), n)
				if err != nil {
					return err
				}
				phases = []store.PhaseStatus{ps}
			} else {
				phases, err = s.Progress(cmd.Context())
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if len(args) == 1 {
					return printJSON(out, phases[0])
				}
				return printJSON(out, phases)
			}
			if len(phases) == 0 {
				fmt.Fprintln(out, "No tasks yet.")
				return nil
			}
			for _, ps := range phases {
				printPhase(out, ps)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func printPhase(w io.Writer, ps store.PhaseStatus) {
	fmt.Fprintf(w, "Phase %d: %d/%d completed (%s)\n", ps.Phase, ps.Completed, ps.TotalTasks, ps.Progress)
	fmt.Fprintf(w, "  %-14s %d\n", "pending:", ps.Pending)
	fmt.Fprintf(w, "  %-14s %d\n", "in_progress:", ps.InProgress)
	fmt.Fprintf(w, "  %-14s %d\n", "review:", ps.Review)
	fmt.Fprintf(w, "  %-14s %d\n", "blocked:", ps.Blocked)
}
