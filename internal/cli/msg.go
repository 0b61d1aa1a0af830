package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

// broadcastName addresses a message to every agent.
const broadcastName = "all"

func newMsgCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msg",
		Short: "Send and read agent messages",
	}
	cmd.AddCommand(newMsgSendCmd(a))
	cmd.AddCommand(newMsgInboxCmd(a))
	cmd.AddCommand(newMsgReadCmd(a))
	return cmd
}

func newMsgSendCmd(a *app) *cobra.Command {
	var nm store.NewMessage

	cmd := &cobra.Command{
		Use:   "send [from] [to|all] [content]",
		Short: "Send a message; use \"all\" to broadcast",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			nm.From = args[0]
			nm.To = args[1]
			if strings.EqualFold(nm.To, broadcastName) {
				nm.To = ""
			}
			nm.Content = strings.Join(args[2:], " ")

			id, err := s.SendMessage(cmd.Context(), nm)
			if err != nil {
				return err
			}
			to := nm.To
			if to == "" {
				to = "all agents"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message #%d sent to %s\n", id, to)
			return nil
		},
	}
	cmd.Flags().StringVarP(&nm.Type, "type", "t", "note", "Message type")
	cmd.Flags().StringVar(&nm.TaskRef, "task", "", "Task the message is about")
	cmd.Flags().StringSliceVar(&nm.ContextRefs, "ref", nil, "Related task ids (repeatable)")
	return cmd
}

func newMsgInboxCmd(a *app) *cobra.Command {
	var unread, markRead, jsonOut bool
	var limit int

	cmd := &cobra.Command{
		Use:   "inbox [agent]",
		Short: "Show direct and broadcast messages for an agent, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if limit <= 0 {
				limit = a.cfg.Inbox.Limit
			}
			msgs, err := s.Inbox(cmd.Context(), store.InboxQuery{Agent: args[0], UnreadOnly: unread, Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(out, msgs); err != nil {
					return err
				}
			} else if len(msgs) == 0 {
				fmt.Fprintf(out, "No messages for %s.\n", args[0])
			}
			for _, m := range msgs {
				if !jsonOut {
					mark := " "
					if !m.Read {
						mark = "●"
					}
					to := broadcastName
					if !m.IsBroadcast() {
						to = m.To
					}
					ref := ""
					if m.TaskRef != "" {
						ref = " re " + m.TaskRef
					}
					fmt.Fprintf(out, "%s #%-4d %s  %s → %s [%s]%s\n", mark, m.ID, m.CreatedAt.Local().Format("01-02 15:04"), m.From, to, m.Type, ref)
					fmt.Fprintf(out, "    %s\n", m.Content)
				}
				if markRead && !m.Read {
					if err := s.MarkRead(cmd.Context(), m.ID); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&unread, "unread", "u", false, "Only unread messages")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark the listed messages as read")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages (default inbox.limit)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newMsgReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read [id...]",
		Short: "Mark messages as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid message ID: %s", arg)
				}
				if err := s.MarkRead(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Message #%d marked read\n", id)
			}
			return nil
		},
	}
}
