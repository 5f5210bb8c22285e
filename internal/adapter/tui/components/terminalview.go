package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"sandbox-term/internal/adapter/tui/theme"
	"sandbox-term/internal/domain"
)

// DefaultMaxLines caps the lines mirrored by a TerminalViewModel.
const DefaultMaxLines = 1000

// TerminalViewModel wraps a viewport showing terminal lines with smart
// auto-scroll: it follows new output while the user is at the bottom and
// pauses when they scroll up.
type TerminalViewModel struct {
	Viewport viewport.Model
	lines    []domain.TerminalLine
	maxLines int
	ready    bool
	atBottom bool
}

// NewTerminalView creates a terminal view. The viewport is initialized lazily on the first SetSize.
func NewTerminalView(maxLines int) TerminalViewModel {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return TerminalViewModel{maxLines: maxLines, atBottom: true}
}

// SetSize sets the viewport dimensions and re-renders the content.
func (m *TerminalViewModel) SetSize(w, h int) {
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// Append adds a line, evicting the oldest beyond the cap.
func (m *TerminalViewModel) Append(l domain.TerminalLine) {
	m.lines = append(m.lines, l)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = append(m.lines[:0:0], m.lines[over:]...)
	}
	m.refresh()
}

// SetLines replaces the content, e.g. from the transport buffer.
func (m *TerminalViewModel) SetLines(lines []domain.TerminalLine) {
	m.lines = append([]domain.TerminalLine(nil), lines...)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

// Clear removes all lines.
func (m *TerminalViewModel) Clear() {
	m.lines = nil
	m.atBottom = true
	m.refresh()
}

// Lines returns the mirrored lines.
func (m TerminalViewModel) Lines() []domain.TerminalLine { return m.lines }

// Update handles viewport scrolling and tracks auto-scroll state.
func (m TerminalViewModel) Update(msg tea.Msg) (TerminalViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the terminal viewport.
func (m TerminalViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

// Render returns the styled text of all lines.
func (m TerminalViewModel) Render() string {
	var sb strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(theme.LineStyle(l.Type).Render(l.Content))
	}
	return sb.String()
}

func (m *TerminalViewModel) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.Render())
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}
