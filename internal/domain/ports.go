package domain

import "context"

// ProvisioningBackend is the remote service that creates sandbox sessions
// and reports their provisioning status.
type ProvisioningBackend interface {
	// CreateSession issues a creation request and returns the new session id.
	CreateSession(ctx context.Context, params CreateParams) (string, error)
	// SessionStatus performs one status query.
	SessionStatus(ctx context.Context, sessionID string) (StatusReport, error)
}

// StreamConn is one live duplex connection to a session terminal.
type StreamConn interface {
	// Read blocks until the next frame arrives. A clean remote close
	// returns an error wrapping ErrStreamClosed.
	Read(ctx context.Context) (FrameKind, []byte, error)
	Write(ctx context.Context, kind FrameKind, data []byte) error
	// Close closes the connection normally. Safe to call more than once.
	Close() error
}

// StreamDialer opens duplex connections to session terminals.
type StreamDialer interface {
	Dial(ctx context.Context, sessionID string) (StreamConn, error)
}

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StatusSink receives orchestrator updates. Implementations must not block.
type StatusSink interface {
	SessionUpdated(session Session)
	LifecycleChanged(state LifecycleState, err error)
}

// TerminalObserver receives terminal transport events in production order.
// Implementations must not block or call back into the transport.
type TerminalObserver interface {
	LineAppended(line TerminalLine)
	ConnectionChanged(state ConnectionState)
	// TerminalReady signals that the terminal can take input focus.
	TerminalReady()
}

// TerminalConnector is the part of the terminal transport the orchestrator drives.
type TerminalConnector interface {
	Connect(ctx context.Context, sessionID string) error
	Close()
}

// NopStatusSink discards all updates.
type NopStatusSink struct{}

func (NopStatusSink) SessionUpdated(Session)                {}
func (NopStatusSink) LifecycleChanged(LifecycleState, error) {}

// NopTerminalObserver discards all events.
type NopTerminalObserver struct{}

func (NopTerminalObserver) LineAppended(TerminalLine)         {}
func (NopTerminalObserver) ConnectionChanged(ConnectionState) {}
func (NopTerminalObserver) TerminalReady()                    {}
