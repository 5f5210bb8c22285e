// Package console implements the Bubble Tea front-end for a sandbox session:
// provisioning progress followed by the remote terminal.
package console

import "sandbox-term/internal/domain"

// SessionMsg carries a new session snapshot from the orchestrator.
type SessionMsg struct {
	Session domain.Session
}

// LifecycleMsg carries an orchestrator state change.
type LifecycleMsg struct {
	State domain.LifecycleState
	Err   error
}

// LineMsg carries a line appended to the terminal buffer.
type LineMsg struct {
	Line domain.TerminalLine
}

// ConnectionMsg carries a terminal connection state change.
type ConnectionMsg struct {
	State domain.ConnectionState
}

// ReadyMsg signals that the terminal accepts input.
type ReadyMsg struct{}

// QuitMsg signals the program to exit.
type QuitMsg struct{}

// actionDoneMsg reports the result of a background session or terminal call.
type actionDoneMsg struct {
	Op  string
	Err error
}
