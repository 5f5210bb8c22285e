package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sandbox-term/internal/adapter/tui/theme"
	"sandbox-term/internal/domain"
)

// ProvisioningModel renders the readiness snapshot of a session: a progress
// bar when the percentage is known, otherwise a spinner only.
type ProvisioningModel struct {
	Spinner  spinner.Model
	Bar      progress.Model
	session  domain.Session
	hasState bool
	width    int
}

// NewProvisioning creates a provisioning panel.
func NewProvisioning() ProvisioningModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	bar := progress.New(progress.WithGradient(theme.ProgressStart, theme.ProgressEnd))
	return ProvisioningModel{Spinner: s, Bar: bar, width: 60}
}

// SetWidth updates the available width.
func (m *ProvisioningModel) SetWidth(w int) {
	m.width = w
	m.Bar.Width = theme.Clamp(w-4, 10, theme.MaxContentWidth)
}

// SetSession records the latest session snapshot.
func (m *ProvisioningModel) SetSession(s domain.Session) {
	m.session = s
	m.hasState = true
}

// Reset forgets the snapshot, e.g. when a new attempt starts.
func (m *ProvisioningModel) Reset() {
	m.session = domain.Session{}
	m.hasState = false
}

// Session returns the latest snapshot.
func (m ProvisioningModel) Session() domain.Session { return m.session }

// Update advances the spinner.
func (m ProvisioningModel) Update(msg tea.Msg) (ProvisioningModel, tea.Cmd) {
	var cmd tea.Cmd
	m.Spinner, cmd = m.Spinner.Update(msg)
	return m, cmd
}

// View renders the phase line, the progress indication and the message.
func (m ProvisioningModel) View() string {
	if !m.hasState {
		return m.Spinner.View() + " " + theme.TextMuted.Render("Requesting sandbox"+theme.SymbolEllipsis)
	}
	s := m.session
	var lines []string

	phase := theme.PhaseStyle(s.Phase).Render(s.Phase.Label())
	switch s.Phase {
	case domain.PhaseReady:
		lines = append(lines, theme.TextSuccess.Render(theme.SymbolSuccess)+" "+phase)
	case domain.PhaseError:
		lines = append(lines, theme.TextError.Render(theme.SymbolError)+" "+phase)
	default:
		lines = append(lines, m.Spinner.View()+" "+phase)
	}

	if !s.Phase.IsTerminal() && !s.Progress.Indeterminate() {
		bar := m.Bar.ViewAs(float64(*s.Progress.Percent) / 100)
		if eta := FormatETA(s.Progress); eta != "" {
			bar += "  " + theme.TextMuted.Render(eta)
		}
		lines = append(lines, "  "+bar)
	} else if eta := FormatETA(s.Progress); eta != "" && !s.Phase.IsTerminal() {
		lines = append(lines, "  "+theme.TextMuted.Render(eta))
	}

	if s.Error != "" {
		lines = append(lines, "  "+theme.TextError.Render(s.Error))
	} else if s.Message != "" {
		lines = append(lines, "  "+theme.TextMuted.Render(s.Message))
	}
	return strings.Join(lines, "\n")
}

// FormatETA renders the remaining time, or "" when unknown.
func FormatETA(p *domain.Progress) string {
	if p == nil || p.ETA == nil {
		return ""
	}
	d := p.ETA.Round(time.Second)
	if d <= 0 {
		return "almost done"
	}
	return fmt.Sprintf("about %s left", d)
}
