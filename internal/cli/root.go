package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/config"
)

// app carries global flags and the state PersistentPreRunE loads for every
// subcommand.
type app struct {
	configPath string
	dbPath     string
	driver     string
	verbose    bool

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "taskledger",
		Short: "Shared task ledger for a team of agents",
		Long: "taskledger — a shared project ledger for coordinating a team of agents.\n" +
			"Tasks, phases, agent status and messages live in one database that every agent reads and writes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default .taskledger/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Database DSN or SQLite path, overrides store.dsn")
	cmd.PersistentFlags().StringVar(&a.driver, "driver", "", "Store driver: sqlite or postgres, overrides store.driver")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newTaskCmd(a))
	cmd.AddCommand(newPhaseCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newMsgCmd(a))
	cmd.AddCommand(newAgentCmd(a))
	cmd.AddCommand(newPlanCmd(a))
	cmd.AddCommand(newDepsCmd(a))
	cmd.AddCommand(newBoardCmd(a))
	cmd.AddCommand(newBriefCmd(a))
	cmd.AddCommand(newUICmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// load reads the config and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	if a.dbPath != "" {
		cfg.Store.DSN = a.dbPath
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.Log, a.verbose)
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
