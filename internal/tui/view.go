package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/taskledger/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle   = lipgloss.NewStyle().Foreground(clrDim)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Height(9)

	cardSelectedStyle = cardStyle.
				BorderForeground(clrHighlight).
				Bold(true)

	cardBlockedStyle = cardStyle.BorderForeground(clrRed)
	cardDoneStyle    = cardStyle.BorderForeground(clrGreen)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenBoard:
		content = m.viewBoard()
	case screenAgent:
		content = m.viewAgent()
	case screenDetail:
		content = m.viewScroll("Task", []footerKey{{"↑↓", "scroll"}, {"esc", "back"}})
	case screenInbox:
		agent := ""
		if c := m.selectedCard(); c != nil {
			agent = c.Agent
		}
		content = m.viewScroll("Inbox "+agent, []footerKey{{"↑↓", "scroll"}, {"esc", "back"}})
	}

	if m.popup != popupNone {
		content = m.overlayPopup(content)
	}
	return content
}

// ════════════════════════════════════════════════
// BOARD: one card per agent
// ════════════════════════════════════════════════

func (m Model) viewBoard() string {
	var b strings.Builder

	header := titleStyle.Render("taskledger board")
	header += dimStyle.Render(fmt.Sprintf(" · %d agents", len(m.cards)))
	b.WriteString(header + "\n")
	if line := m.renderPhases(); line != "" {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if len(m.cards) == 0 {
		b.WriteString(dimStyle.Render("  No agents or tasks yet. Run taskledger init --seed.\n"))
		b.WriteString("\n" + renderFooter([]footerKey{{"R", "refresh"}, {"q", "quit"}}))
		return b.String()
	}

	cols := m.gridCols
	if cols < 1 {
		cols = 2
	}
	cardWidth := 40
	if m.width > 0 {
		cardWidth = (m.width - (cols + 1)) / cols
		if cardWidth < 30 {
			cardWidth = 30
		}
		if cardWidth > 50 {
			cardWidth = 50
		}
	}

	for i := 0; i < len(m.cards); i += cols {
		var row []string
		for j := 0; j < cols && i+j < len(m.cards); j++ {
			idx := i + j
			row = append(row, m.renderCard(m.cards[idx], idx == m.cursor, cardWidth))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(renderFooter([]footerKey{
		{"↑↓←→", "navigate"},
		{"enter", "tasks"},
		{"i", "inbox"},
		{"m", "message"},
		{"R", "refresh"},
		{"q", "quit"},
	}))
	return b.String()
}

// renderPhases draws one progress chip per phase.
func (m Model) renderPhases() string {
	var parts []string
	for _, p := range m.phases {
		style := dimStyle
		switch {
		case p.TotalTasks > 0 && p.Completed == p.TotalTasks:
			style = lipgloss.NewStyle().Foreground(clrGreen)
		case p.Blocked > 0:
			style = lipgloss.NewStyle().Foreground(clrRed)
		case p.InProgress > 0 || p.Review > 0:
			style = lipgloss.NewStyle().Foreground(clrBlue)
		}
		parts = append(parts, style.Render(fmt.Sprintf("Phase %d %d/%d %s", p.Phase, p.Completed, p.TotalTasks, p.Progress)))
	}
	return strings.Join(parts, dimStyle.Render("  │  "))
}

func (m Model) renderCard(c agentCard, selected bool, width int) string {
	var content strings.Builder
	inner := width - 6

	name := lipgloss.NewStyle().Foreground(clrCyan).Bold(true).Render(truncate(c.Agent, inner))
	content.WriteString(name + "\n")

	state := string(c.Status.Status)
	if c.Status.CurrentTask != "" {
		state += " · " + c.Status.CurrentTask
	}
	if c.Status.ProgressPercent > 0 {
		state += fmt.Sprintf(" %d%%", c.Status.ProgressPercent)
	}
	content.WriteString(agentStateStyle(c.Status.Status).Render(truncate(state, inner)) + "\n")

	done := c.completed()
	meta := fmt.Sprintf("Tasks: %d/%d done", done, len(c.Tasks))
	if len(c.Tasks) == 0 {
		meta = "Tasks: none assigned"
	}
	content.WriteString(dimStyle.Render(meta) + "\n")
	content.WriteString(progressBar(done, len(c.Tasks), inner) + "\n")

	blocked := false
	shown := 0
	for _, t := range c.Tasks {
		if t.Status == store.StatusBlocked {
			blocked = true
		}
		if t.Status == store.StatusCompleted || shown >= 4 {
			continue
		}
		content.WriteString(statusDot(t.Status) + " " + truncate(t.ID+" "+t.Title, inner-2) + "\n")
		shown++
	}

	style := cardStyle
	switch {
	case selected:
		style = cardSelectedStyle
	case blocked:
		style = cardBlockedStyle
	case len(c.Tasks) > 0 && done == len(c.Tasks):
		style = cardDoneStyle
	}
	return style.Width(width).Render(strings.TrimRight(content.String(), "\n"))
}

// ════════════════════════════════════════════════
// AGENT VIEW: drill-down into one agent's tasks
// ════════════════════════════════════════════════

func (m Model) viewAgent() string {
	c := m.selectedCard()
	if c == nil {
		return "No agent selected"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(c.Agent))
	b.WriteString("  ")
	b.WriteString(agentStateStyle(c.Status.Status).Render(string(c.Status.Status)))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("esc back"))
	b.WriteString("\n\n")

	if len(c.Tasks) == 0 {
		b.WriteString(dimStyle.Render("  No tasks assigned.\n"))
	} else {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render("  Tasks:") + "\n")
		for i, t := range c.Tasks {
			b.WriteString(m.renderTaskLine(t, i == m.taskCursor) + "\n")
		}
	}

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(renderFooter([]footerKey{
		{"↑↓", "select"},
		{"enter", "detail"},
		{"s", "start"},
		{"v", "review"},
		{"d", "done"},
		{"b", "block"},
		{"m", "message"},
		{"i", "inbox"},
		{"esc", "back"},
	}))
	return b.String()
}

func (m Model) renderTaskLine(t store.Task, selected bool) string {
	cursor := "  "
	if selected {
		cursor = lipgloss.NewStyle().Foreground(clrHighlight).Render("▸ ")
	}
	id := lipgloss.NewStyle().Foreground(clrCyan).Render(fmt.Sprintf("%-6s", t.ID))
	title := truncate(t.Title, 40)

	line := fmt.Sprintf("  %s%s %s %s %-42s %s", cursor, statusDot(t.Status), id, dimStyle.Render(t.Priority), title, dimStyle.Render(string(t.Status)))

	if waiting := m.waitingOn(t); len(waiting) > 0 && t.Status != store.StatusCompleted {
		line += "\n        " + lipgloss.NewStyle().Foreground(clrYellow).Render("waiting on "+strings.Join(waiting, ", "))
	}
	if t.Status == store.StatusBlocked && t.Notes != "" {
		line += "\n        " + lipgloss.NewStyle().Foreground(clrRed).Render("⚠ "+truncate(t.Notes, 50))
	}
	return line
}

// waitingOn lists dependencies of t that are missing or not completed.
func (m Model) waitingOn(t store.Task) []string {
	var out []string
	for _, d := range t.Dependencies {
		if dep, ok := m.index[d]; !ok || dep.Status != store.StatusCompleted {
			out = append(out, d)
		}
	}
	return out
}

// ════════════════════════════════════════════════
// SCROLLING VIEWS: task detail and inbox
// ════════════════════════════════════════════════

func (m Model) viewScroll(title string, keys []footerKey) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")
	b.WriteString(renderFooter(keys))
	return b.String()
}

// ════════════════════════════════════════════════
// POPUPS
// ════════════════════════════════════════════════

func (m Model) overlayPopup(bg string) string {
	var popup string
	switch m.popup {
	case popupBlock:
		popup = m.viewBlockPopup()
	case popupMessage:
		popup = m.viewMessagePopup()
	default:
		return bg
	}

	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			popup,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return popup
}

func (m Model) viewBlockPopup() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(clrRed).Render("Block "+m.popupTaskID) + "\n\n")
	b.WriteString("Reason:\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString(footerDescStyle.Render("enter block • esc cancel"))
	return m.popupBoxStyle().Render(b.String())
}

func (m Model) viewMessagePopup() string {
	from := ""
	if c := m.selectedCard(); c != nil {
		from = c.Agent
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(clrHighlight).Render("Message from "+from) + "\n\n")
	if m.popupTaskID != "" {
		b.WriteString(dimStyle.Render("re "+m.popupTaskID) + "\n\n")
	}
	b.WriteString("To:\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString("Message:\n")
	b.WriteString(m.textInput2.View() + "\n\n")
	b.WriteString(footerDescStyle.Render("enter send • tab switch • esc cancel"))
	return m.popupBoxStyle().Render(b.String())
}

func (m Model) popupBoxStyle() lipgloss.Style {
	w := 60
	if m.width > 0 {
		w = m.width - 12
		if w < 42 {
			w = 42
		}
		if w > 84 {
			w = 84
		}
	}
	return popupStyle.Width(w)
}

// ════════════════════════════════════════════════
// SHARED HELPERS
// ════════════════════════════════════════════════

type footerKey struct{ key, desc string }

func renderFooter(keys []footerKey) string {
	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return "  " + strings.Join(parts, "  ")
}

func (m Model) renderStatusLine() string {
	if m.statusMsg == "" {
		return ""
	}
	lower := strings.ToLower(m.statusMsg)
	if strings.HasPrefix(lower, "failed") || strings.HasPrefix(lower, "error") {
		return "\n" + errorStyle.Render("  "+m.statusMsg)
	}
	return "\n" + statusStyle.Render("  "+m.statusMsg)
}

func statusDot(s store.TaskStatus) string {
	icon := statusIcon(s)
	switch s {
	case store.StatusCompleted:
		return lipgloss.NewStyle().Foreground(clrGreen).Render(icon)
	case store.StatusInProgress:
		return lipgloss.NewStyle().Foreground(clrBlue).Render(icon)
	case store.StatusReview:
		return lipgloss.NewStyle().Foreground(clrYellow).Render(icon)
	case store.StatusBlocked:
		return lipgloss.NewStyle().Foreground(clrRed).Render(icon)
	default:
		return dimStyle.Render(icon)
	}
}

func agentStateStyle(s store.AgentState) lipgloss.Style {
	switch s {
	case store.AgentWorking:
		return lipgloss.NewStyle().Foreground(clrBlue)
	case store.AgentBlocked:
		return lipgloss.NewStyle().Foreground(clrRed)
	default:
		return dimStyle
	}
}

func progressBar(done, total, width int) string {
	if width < 4 {
		width = 4
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	return lipgloss.NewStyle().Foreground(clrGreen).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func truncate(s string, maxLen int) string {
	if maxLen < 2 {
		maxLen = 2
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
