package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sandbox-term/internal/adapter/tui/theme"
)

// CommandSubmitMsg is sent when the user presses Enter on a non-blank command.
type CommandSubmitMsg struct {
	Value string
}

// CommandInputModel wraps a single-line text input with a shell prompt.
type CommandInputModel struct {
	Input   textinput.Model
	Enabled bool
}

// NewCommandInput creates a focused command input.
func NewCommandInput() CommandInputModel {
	ti := textinput.New()
	ti.Prompt = theme.SymbolPrompt + " "
	ti.Placeholder = "Type a command" + theme.SymbolEllipsis
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = 0
	ti.Focus()
	return CommandInputModel{Input: ti, Enabled: true}
}

// SetWidth updates the input width.
func (m *CommandInputModel) SetWidth(w int) {
	m.Input.Width = w - 4
}

// SetEnabled enables or disables input.
func (m *CommandInputModel) SetEnabled(enabled bool) {
	m.Enabled = enabled
	if enabled {
		m.Input.Focus()
	} else {
		m.Input.Blur()
	}
}

// Value returns the current input text.
func (m CommandInputModel) Value() string { return m.Input.Value() }

// SetValue replaces the input text and moves the cursor to the end.
func (m *CommandInputModel) SetValue(v string) {
	m.Input.SetValue(v)
	m.Input.CursorEnd()
}

// Update handles key events. Enter on a non-blank value emits CommandSubmitMsg.
func (m CommandInputModel) Update(msg tea.Msg) (CommandInputModel, tea.Cmd) {
	if !m.Enabled {
		return m, nil
	}
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		value := m.Input.Value()
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		m.Input.Reset()
		return m, func() tea.Msg { return CommandSubmitMsg{Value: value} }
	}
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View renders the input.
func (m CommandInputModel) View() string {
	return m.Input.View()
}
