package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/deps"
	"github.com/imkarma/taskledger/internal/store"
)

// boardStyles are bound to the output's renderer so that piped output
// carries no escape codes.
type boardStyles struct {
	header  lipgloss.Style
	column  lipgloss.Style
	id      lipgloss.Style
	dim     lipgloss.Style
	blocked lipgloss.Style
	status  map[store.TaskStatus]lipgloss.Style
}

func newBoardStyles(w io.Writer) boardStyles {
	r := lipgloss.NewRenderer(w)
	color := func(light, dark string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
	return boardStyles{
		header:  r.NewStyle().Bold(true),
		column:  r.NewStyle().Width(26).PaddingRight(2),
		id:      r.NewStyle().Foreground(color("#0E7490", "#22D3EE")),
		dim:     r.NewStyle().Foreground(color("#999999", "#555555")),
		blocked: r.NewStyle().Foreground(color("#B91C1C", "#F87171")),
		status: map[store.TaskStatus]lipgloss.Style{
			store.StatusPending:    r.NewStyle().Bold(true),
			store.StatusInProgress: r.NewStyle().Bold(true).Foreground(color("#1D4ED8", "#60A5FA")),
			store.StatusReview:     r.NewStyle().Bold(true).Foreground(color("#B45309", "#F59E0B")),
			store.StatusBlocked:    r.NewStyle().Bold(true).Foreground(color("#B91C1C", "#F87171")),
			store.StatusCompleted:  r.NewStyle().Bold(true).Foreground(color("#43BF6D", "#73F59F")),
		},
	}
}

func newBoardCmd(a *app) *cobra.Command {
	var byAgent bool
	var phase int

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the task board",
		Long:  "Shows tasks in status columns, or grouped per agent with --by-agent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			tasks, err := s.ListTasks(cmd.Context(), store.TaskFilter{Phase: phase})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "Board is empty. Load a plan: taskledger plan load")
				return nil
			}

			st := newBoardStyles(out)
			if byAgent {
				renderAgentBoard(out, st, tasks, a.cfg.AgentNames())
			} else {
				renderStatusBoard(out, st, tasks)
			}
			renderBoardSummary(out, st, tasks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byAgent, "by-agent", false, "Group tasks per agent")
	cmd.Flags().IntVar(&phase, "phase", 0, "Only tasks in this phase")
	return cmd
}

func renderStatusBoard(w io.Writer, st boardStyles, tasks []store.Task) {
	columns := map[store.TaskStatus][]store.Task{}
	for _, t := range tasks {
		columns[t.Status] = append(columns[t.Status], t)
	}

	var rendered []string
	for _, status := range store.Statuses {
		col := columns[status]
		var b strings.Builder
		label := strings.ToUpper(strings.ReplaceAll(string(status), "_", " "))
		b.WriteString(st.status[status].Render(fmt.Sprintf("%s (%d)", label, len(col))))
		b.WriteString("\n" + st.dim.Render(strings.Repeat("─", 24)) + "\n")
		for _, t := range col {
			b.WriteString(st.id.Render(t.ID) + " " + truncate(t.Title, 22-len(t.ID)) + "\n")
			detail := "  [" + t.Assignee + "]"
			if t.Status == store.StatusBlocked && t.Notes != "" {
				detail = st.blocked.Render("  ⚠ " + truncate(t.Notes, 20))
			}
			b.WriteString(st.dim.Render(detail) + "\n")
		}
		rendered = append(rendered, st.column.Render(b.String()))
	}
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

// renderAgentBoard lists every agent with its tasks, roster order first.
func renderAgentBoard(w io.Writer, st boardStyles, tasks []store.Task, roster []string) {
	byAgent := map[string][]store.Task{}
	order := append([]string{}, roster...)
	seen := map[string]bool{}
	for _, name := range roster {
		seen[name] = true
	}
	for _, t := range tasks {
		if !seen[t.Assignee] {
			seen[t.Assignee] = true
			order = append(order, t.Assignee)
		}
		byAgent[t.Assignee] = append(byAgent[t.Assignee], t)
	}

	idx := deps.Index(tasks)
	for _, name := range order {
		list := byAgent[name]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintln(w, st.header.Render(fmt.Sprintf("%s (%d)", name, len(list))))
		for _, t := range list {
			icon := st.status[t.Status].Render(statusIcon(t.Status))
			line := fmt.Sprintf("  %s %s %s %s", icon, st.id.Render(fmt.Sprintf("%-6s", t.ID)), t.Priority, t.Title)
			if waiting := deps.Waiting(t, idx); len(waiting) > 0 && t.Status != store.StatusCompleted {
				line += st.dim.Render(" (waiting on " + strings.Join(waiting, ", ") + ")")
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
}

func renderBoardSummary(w io.Writer, st boardStyles, tasks []store.Task) {
	counts := map[store.TaskStatus]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	parts := []string{st.header.Render(fmt.Sprintf("%d tasks", len(tasks)))}
	if n := counts[store.StatusCompleted]; n > 0 {
		parts = append(parts, st.status[store.StatusCompleted].Render(fmt.Sprintf("✓ %d completed", n)))
	}
	if n := counts[store.StatusInProgress]; n > 0 {
		parts = append(parts, st.status[store.StatusInProgress].Render(fmt.Sprintf("● %d in progress", n)))
	}
	if n := counts[store.StatusBlocked]; n > 0 {
		parts = append(parts, st.status[store.StatusBlocked].Render(fmt.Sprintf("✗ %d blocked", n)))
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}
