package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/briefing"
)

func newBriefCmd(a *app) *cobra.Command {
	var markRead bool

	cmd := &cobra.Command{
		Use:   "brief [agent]",
		Short: "Print an agent's briefing: status, open tasks and unread messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b := briefing.New(s, a.cfg.Roles(), a.cfg.Inbox.Limit)
			text, err := b.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)

			if markRead {
				n, err := b.MarkInboxRead(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.log.Debug("briefing inbox marked read", "agent", args[0], "messages", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark the briefed messages as read")
	return cmd
}
