package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/taskledger/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.popup != popupNone {
			return m.handlePopupKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gridCols = m.width / 40
		if m.gridCols < 1 {
			m.gridCols = 1
		}
		if m.gridCols > 4 {
			m.gridCols = 4
		}
		vw := m.width - 4
		vh := m.height - 6
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.viewport.Width = vw
		m.viewport.Height = vh
		return m, nil

	case boardLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setStatus("Failed to load board: " + msg.err.Error())
			return m, nil
		}
		m.cards = msg.cards
		m.phases = msg.phases
		m.index = msg.index
		m.clampGridCursor()
		m.clampTaskCursor()
		return m, nil

	case viewportLoadedMsg:
		if msg.err != nil {
			m.setStatus("Error: " + msg.err.Error())
			return m, nil
		}
		m.viewport.SetContent(msg.content)
		m.viewport.GotoTop()
		m.screen = msg.screen
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setStatus("Failed: " + msg.err.Error())
		} else {
			m.setStatus(msg.status)
		}
		return m, m.loadBoard()

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if m.statusMsg != "" && time.Since(m.statusTime) > 5*time.Second {
			m.statusMsg = ""
		}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.loadBoard())
		}
		return m, tea.Batch(cmds...)
	}

	if m.screen == screenDetail || m.screen == screenInbox {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.screen == screenBoard {
			m.quitting = true
			return m, tea.Quit
		}
		return m.goBack()
	case "esc":
		return m.goBack()
	}

	switch m.screen {
	case screenBoard:
		return m.handleBoardKey(msg)
	case screenAgent:
		return m.handleAgentKey(msg)
	case screenDetail, screenInbox:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenAgent:
		m.screen = screenBoard
	case screenDetail:
		m.screen = screenAgent
	case screenInbox:
		m.screen = screenBoard
	}
	return m, nil
}

// --- Board keys ---

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.cursor += m.gridCols
		m.clampGridCursor()
	case "k", "up":
		m.cursor -= m.gridCols
		m.clampGridCursor()
	case "h", "left":
		m.cursor--
		m.clampGridCursor()
	case "l", "right":
		m.cursor++
		m.clampGridCursor()

	case "enter", " ":
		if m.selectedCard() != nil {
			m.taskCursor = 0
			m.screen = screenAgent
		}

	case "i":
		if c := m.selectedCard(); c != nil {
			return m, m.loadInbox(c.Agent)
		}

	case "m":
		if m.selectedCard() != nil {
			return m.openMessagePopup("")
		}

	case "R":
		return m, m.loadBoard()
	}
	return m, nil
}

// --- Agent task list keys ---

func (m Model) handleAgentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.taskCursor++
		m.clampTaskCursor()
	case "k", "up":
		m.taskCursor--
		m.clampTaskCursor()

	case "enter":
		if t := m.selectedTask(); t != nil {
			m.viewport.SetContent(renderTaskDetail(*t, m.index))
			m.viewport.GotoTop()
			m.screen = screenDetail
		}

	case "s":
		if t := m.selectedTask(); t != nil {
			return m, m.setTaskStatus(t.ID, store.StatusInProgress, "")
		}
	case "v":
		if t := m.selectedTask(); t != nil {
			return m, m.setTaskStatus(t.ID, store.StatusReview, "")
		}
	case "d":
		if t := m.selectedTask(); t != nil {
			return m, m.setTaskStatus(t.ID, store.StatusCompleted, "")
		}
	case "b":
		if t := m.selectedTask(); t != nil {
			m.popup = popupBlock
			m.popupTaskID = t.ID
			m.textInput.Reset()
			m.textInput.Placeholder = "What is blocking " + t.ID + "?"
			m.textInput.Focus()
			return m, textinput.Blink
		}

	case "m":
		ref := ""
		if t := m.selectedTask(); t != nil {
			ref = t.ID
		}
		return m.openMessagePopup(ref)

	case "i":
		if c := m.selectedCard(); c != nil {
			return m, m.loadInbox(c.Agent)
		}
	}
	return m, nil
}

func (m Model) openMessagePopup(taskRef string) (tea.Model, tea.Cmd) {
	m.popup = popupMessage
	m.popupTaskID = taskRef
	m.textInput.Reset()
	m.textInput.Placeholder = "To (empty for all agents)"
	m.textInput.Focus()
	m.textInput2.Reset()
	m.textInput2.Placeholder = "Message..."
	m.textInput2.Blur()
	m.inputFocused = 0
	return m, textinput.Blink
}

// --- Popup keys ---

func (m Model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.popup = popupNone
		m.textInput.Blur()
		m.textInput2.Blur()
		return m, nil
	}

	switch m.popup {
	case popupBlock:
		return m.handleBlockPopup(msg)
	case popupMessage:
		return m.handleMessagePopup(msg)
	}
	return m, nil
}

func (m Model) handleBlockPopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		reason := strings.TrimSpace(m.textInput.Value())
		m.popup = popupNone
		m.textInput.Blur()
		return m, m.setTaskStatus(m.popupTaskID, store.StatusBlocked, reason)
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) handleMessagePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		if m.inputFocused == 0 {
			m.inputFocused = 1
			m.textInput.Blur()
			return m, m.textInput2.Focus()
		}
		m.inputFocused = 0
		m.textInput2.Blur()
		return m, m.textInput.Focus()

	case "enter":
		content := strings.TrimSpace(m.textInput2.Value())
		if content == "" {
			m.setStatus("Message is empty")
			return m, nil
		}
		c := m.selectedCard()
		if c == nil {
			m.popup = popupNone
			return m, nil
		}
		to := strings.TrimSpace(m.textInput.Value())
		m.popup = popupNone
		m.textInput.Blur()
		m.textInput2.Blur()
		return m, m.sendMessage(c.Agent, to, content, m.popupTaskID)
	}

	var cmd tea.Cmd
	if m.inputFocused == 0 {
		m.textInput, cmd = m.textInput.Update(msg)
	} else {
		m.textInput2, cmd = m.textInput2.Update(msg)
	}
	return m, cmd
}
