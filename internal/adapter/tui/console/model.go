package console

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sandbox-term/internal/adapter/tui/components"
	"sandbox-term/internal/adapter/tui/theme"
	"sandbox-term/internal/adapter/tui/uxerror"
	"sandbox-term/internal/domain"
)

// Controller drives the session lifecycle.
type Controller interface {
	Create(ctx context.Context, params domain.CreateParams) (string, error)
	Resume(ctx context.Context, sessionID string) error
	Retry(ctx context.Context) (string, error)
	Cancel()
}

// Terminal is the command surface of the terminal transport.
type Terminal interface {
	Submit(ctx context.Context, command string) error
	Interrupt(ctx context.Context) error
	PreviousCommand() (string, bool)
	NextCommand() (string, bool)
	Complete(input string) (string, bool)
	ClearBuffer()
}

// Deps are dependencies injected into the console model. Exactly one of
// Params and ResumeID selects what Init starts; with neither the model
// waits for Ctrl+R.
type Deps struct {
	Context    context.Context
	Controller Controller
	Terminal   Terminal
	Params     *domain.CreateParams
	ResumeID   string
	MaxLines   int
	Logger     *slog.Logger
}

// Model is the root Bubble Tea model of the sandbox console.
type Model struct {
	deps Deps
	ctx  context.Context

	provisioning components.ProvisioningModel
	view         components.TerminalViewModel
	input        components.CommandInputModel
	statusBar    components.StatusBarModel

	lifecycle domain.LifecycleState
	conn      domain.ConnectionState
	notice    *uxerror.FriendlyError
	info      string
	width     int
	height    int
	quitting  bool
}

// New creates the console model.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}
	input := components.NewCommandInput()
	input.SetEnabled(false)

	m := Model{
		deps:         deps,
		ctx:          ctx,
		provisioning: components.NewProvisioning(),
		view:         components.NewTerminalView(deps.MaxLines),
		input:        input,
		statusBar:    components.NewStatusBar(),
	}
	m.refreshStatus()
	return m
}

// Init starts the spinner and the initial create or resume request.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.provisioning.Spinner.Tick, m.startCmd())
}

func (m Model) startCmd() tea.Cmd {
	switch {
	case m.deps.Params != nil:
		return createCmd(m.ctx, m.deps.Controller, *m.deps.Params)
	case m.deps.ResumeID != "":
		return resumeCmd(m.ctx, m.deps.Controller, m.deps.ResumeID)
	default:
		return nil
	}
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.CommandSubmitMsg:
		m.info = ""
		return m, submitCmd(m.ctx, m.deps.Terminal, msg.Value)

	case SessionMsg:
		m.provisioning.SetSession(msg.Session)
		m.refreshStatus()
		return m, nil

	case LifecycleMsg:
		return m.handleLifecycle(msg)

	case LineMsg:
		m.view.Append(msg.Line)
		return m, nil

	case ConnectionMsg:
		m.conn = msg.State
		m.input.SetEnabled(m.conn == domain.StateConnected)
		m.refreshStatus()
		return m, nil

	case ReadyMsg:
		m.input.SetEnabled(true)
		m.refreshStatus()
		return m, nil

	case actionDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.deps.Logger.Debug("console action failed", "op", msg.Op, "error", msg.Err)
			friendly := uxerror.Humanize(msg.Err)
			m.notice = &friendly
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.provisioning, cmd = m.provisioning.Update(msg)
	cmds = append(cmds, cmd)

	if _, isMouse := msg.(tea.MouseMsg); !isMouse {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleLifecycle(msg LifecycleMsg) (tea.Model, tea.Cmd) {
	m.lifecycle = msg.State
	switch msg.State {
	case domain.LifecycleCreating:
		m.notice = nil
		m.info = ""
		m.provisioning.Reset()
	case domain.LifecycleFailed:
		if msg.Err != nil {
			friendly := uxerror.Humanize(msg.Err)
			m.notice = &friendly
		}
	case domain.LifecycleIdle:
		m.input.SetEnabled(false)
	}
	m.refreshStatus()
	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlD:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlC:
		if m.conn == domain.StateConnected {
			return m, interruptCmd(m.ctx, m.deps.Terminal)
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		if m.lifecycle == domain.LifecycleIdle {
			return m, nil
		}
		m.info = "Session cancelled"
		return m, cancelCmd(m.deps.Controller)

	case tea.KeyCtrlR:
		if m.lifecycle != domain.LifecycleFailed && m.lifecycle != domain.LifecycleIdle {
			return m, nil
		}
		m.info = ""
		return m, retryCmd(m.ctx, m.deps.Controller)

	case tea.KeyCtrlL:
		m.deps.Terminal.ClearBuffer()
		m.view.Clear()
		return m, nil

	case tea.KeyUp:
		if v, ok := m.deps.Terminal.PreviousCommand(); ok {
			m.input.SetValue(v)
		}
		return m, nil

	case tea.KeyDown:
		v, _ := m.deps.Terminal.NextCommand()
		m.input.SetValue(v)
		return m, nil

	case tea.KeyTab:
		if v, ok := m.deps.Terminal.Complete(m.input.Value()); ok {
			m.input.SetValue(v)
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	title := theme.Title.Render("sandbox-term")
	if s := m.provisioning.Session(); s.ID != "" {
		title += "  " + theme.TextMuted.Render(s.ID)
	}

	panel := lipgloss.NewStyle().Height(panelHeight).MaxHeight(panelHeight).Render(m.provisioning.View())

	parts := []string{
		title,
		panel,
		m.noticeLine(),
		components.Divider(m.width),
		m.view.View(),
		components.Divider(m.width),
		m.input.View(),
		m.statusBar.View(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) noticeLine() string {
	if m.notice != nil {
		line := theme.TextError.Render(theme.SymbolError+" "+m.notice.Title) + " " + m.notice.Message
		if len(m.notice.Hints) > 0 {
			line += "  " + theme.Dim.Render(m.notice.Hints[0])
		}
		return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
	}
	if m.info != "" {
		return theme.TextInfo.Render(theme.SymbolInfo + " " + m.info)
	}
	return ""
}

const (
	panelHeight = 3
	// title, notice, two dividers, input, status bar
	chromeHeight = panelHeight + 6
)

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	contentH := m.height - chromeHeight
	if contentH < 3 {
		contentH = 3
	}
	m.provisioning.SetWidth(m.width)
	m.view.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
}

func (m *Model) refreshStatus() {
	m.statusBar.SessionID = m.provisioning.Session().ID
	m.statusBar.Connection = m.conn.String()
	m.statusBar.Extra = m.lifecycle.String()
	m.statusBar.Hints = m.hints()
}

func (m Model) hints() []components.KeyHint {
	switch {
	case m.lifecycle == domain.LifecycleFailed || m.lifecycle == domain.LifecycleIdle:
		return []components.KeyHint{
			{Key: "Ctrl+R", Desc: "Retry"},
			{Key: "Ctrl+D", Desc: "Quit"},
		}
	case m.conn == domain.StateConnected:
		return []components.KeyHint{
			{Key: "Enter", Desc: "Run"},
			{Key: "↑/↓", Desc: "History"},
			{Key: "Tab", Desc: "Complete"},
			{Key: "Ctrl+C", Desc: "Interrupt"},
			{Key: "Esc", Desc: "Cancel"},
			{Key: "Ctrl+D", Desc: "Quit"},
		}
	default:
		return []components.KeyHint{
			{Key: "Esc", Desc: "Cancel"},
			{Key: "Ctrl+D", Desc: "Quit"},
		}
	}
}
