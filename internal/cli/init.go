package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/config"
	"github.com/imkarma/taskledger/internal/plan"
)

func newInitCmd(a *app) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a ledger in the current directory",
		Long:  "Creates a .taskledger/ directory with a default config and database.\nWith --seed the built-in phase 1 plan is loaded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Join(projectRoot, config.Dir)
			if _, err := os.Stat(dir); err == nil {
				return fmt.Errorf("ledger already initialized in this directory (%s/ exists)", config.Dir)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create %s: %w", config.Dir, err)
			}

			cfgPath := config.Path(projectRoot)
			if err := config.Save(cfgPath, a.cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			// Opening the store creates the schema.
			sc, err := a.storeConfig()
			if err != nil {
				return err
			}
			s, err := a.openStore(cmd, sc)
			if err != nil {
				return fmt.Errorf("create database: %w", err)
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized ledger in %s/ (%s)\n", config.Dir, sc.Driver)

			if seed {
				n, err := plan.Apply(cmd.Context(), s, plan.Default())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Seeded %d tasks from the default plan\n", n)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  1. Edit %s to list your agents\n", cfgPath)
			fmt.Fprintln(out, "  2. Run: taskledger task add T1 \"title\" --assignee Backend-Agent")
			fmt.Fprintln(out, "  3. Run: taskledger board")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Load the built-in phase 1 plan")
	return cmd
}
