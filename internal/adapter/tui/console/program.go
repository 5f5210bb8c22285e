package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen console and blocks until the user quits or ctx
// is cancelled. The bridge must be the sink and observer of the session's
// orchestrator and transport.
func Run(ctx context.Context, deps Deps, bridge *Bridge) error {
	if deps.Context == nil {
		deps.Context = ctx
	}
	program := tea.NewProgram(
		New(deps),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	bridge.Attach(program)
	defer bridge.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			program.Send(QuitMsg{})
		case <-done:
		}
	}()

	_, err := program.Run()
	return err
}
