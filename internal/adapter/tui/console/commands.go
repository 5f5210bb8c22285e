package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"sandbox-term/internal/domain"
)

// Commands run outside Update; transport and orchestrator callbacks they
// trigger reach the program through the Bridge.

func createCmd(ctx context.Context, c Controller, params domain.CreateParams) tea.Cmd {
	return func() tea.Msg {
		_, err := c.Create(ctx, params)
		return actionDoneMsg{Op: "create", Err: err}
	}
}

func resumeCmd(ctx context.Context, c Controller, id string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Op: "resume", Err: c.Resume(ctx, id)}
	}
}

func retryCmd(ctx context.Context, c Controller) tea.Cmd {
	return func() tea.Msg {
		_, err := c.Retry(ctx)
		return actionDoneMsg{Op: "retry", Err: err}
	}
}

func cancelCmd(c Controller) tea.Cmd {
	return func() tea.Msg {
		c.Cancel()
		return actionDoneMsg{Op: "cancel"}
	}
}

func submitCmd(ctx context.Context, t Terminal, command string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Op: "submit", Err: t.Submit(ctx, command)}
	}
}

func interruptCmd(ctx context.Context, t Terminal) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Op: "interrupt", Err: t.Interrupt(ctx)}
	}
}
