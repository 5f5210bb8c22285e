package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/tracer"
)

// Transport defaults.
const (
	DefaultConnectTimeout       = 10 * time.Second
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 10
)

// Messages appended as system lines.
const (
	MsgConnected    = "Connected to sandbox terminal"
	MsgClosed       = "Connection closed"
	MsgDisconnected = "Disconnected"
)

// Config tunes a Transport.
type Config struct {
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive failed reconnects; 0 means unlimited.
	MaxReconnectAttempts int
	BufferLines          int
	HistorySize          int
	Vocabulary           []string
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	return c
}

// stopper is satisfied by *time.Timer.
type stopper interface{ Stop() bool }

// pendingReconnect is the single scheduled reconnect handle. It is only
// compared and cleared while holding Transport.mu.
type pendingReconnect struct {
	sessionID string
	timer     stopper
}

// event is an observer notification queued under mu and delivered after it is released.
type event struct {
	line  *domain.TerminalLine
	state *domain.ConnectionState
	ready bool
}

// Transport owns the duplex connection to one session terminal at a time.
// It frames inbound and outbound payloads, echoes submitted commands into the
// line buffer and reconnects after unclean drops while the session is active.
type Transport struct {
	dialer   domain.StreamDialer
	cfg      Config
	logger   *slog.Logger
	observer domain.TerminalObserver
	active   func() bool

	buffer    *LineBuffer
	history   *History
	completer *Completer

	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	state      domain.ConnectionState
	sessionID  string
	conn       domain.StreamConn
	gen        uint64
	pending    *pendingReconnect
	attempts   int
	dialCancel context.CancelFunc
	readCancel context.CancelFunc
	queue      []event

	writeMu sync.Mutex // serializes echo and transmit
	emitMu  sync.Mutex // serializes observer delivery
}

// Option configures a Transport.
type Option func(*Transport)

// WithObserver sets the receiver of line and connection events.
func WithObserver(o domain.TerminalObserver) Option {
	return func(t *Transport) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithActiveFunc sets the predicate reporting whether the owning session is
// still active. Reconnects are only scheduled while it returns true.
func WithActiveFunc(fn func() bool) Option {
	return func(t *Transport) {
		if fn != nil {
			t.active = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTransport creates a disconnected transport.
func NewTransport(dialer domain.StreamDialer, cfg Config, opts ...Option) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		dialer:    dialer,
		cfg:       cfg,
		logger:    slog.Default(),
		observer:  domain.NopTerminalObserver{},
		active:    func() bool { return true },
		buffer:    NewLineBuffer(cfg.BufferLines),
		history:   NewHistory(cfg.HistorySize),
		completer: NewCompleter(cfg.Vocabulary),
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		state:     domain.StateDisconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect opens the terminal stream for sessionID. It is a no-op while a
// connection is being established or is open.
func (t *Transport) Connect(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.NewSubSystemError("terminal", "Transport.Connect", domain.ErrInvalidInput, "session id is required")
	}
	return t.connect(ctx, sessionID, false)
}

func (t *Transport) connect(ctx context.Context, sessionID string, reconnect bool) error {
	t.mu.Lock()
	if t.state != domain.StateDisconnected {
		t.mu.Unlock()
		return nil
	}
	t.cancelPendingLocked()
	stale := t.detachConnLocked()
	t.gen++
	gen := t.gen
	t.sessionID = sessionID
	if !reconnect {
		t.attempts = 0
	}
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	t.dialCancel = cancel
	t.setStateLocked(domain.StateConnecting)
	t.mu.Unlock()
	t.flush()
	closeQuietly(stale)

	dialCtx, span := tracer.StartSpan(dialCtx, "terminal.connect")
	span.SetAttributes(tracer.SessionAttr(sessionID), tracer.IntAttr("reconnect.attempt", t.attemptsSnapshot()))
	conn, err := t.dialer.Dial(dialCtx, sessionID)
	timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		tracer.RecordError(span, err)
	} else {
		tracer.SetOK(span)
	}
	span.End()

	t.mu.Lock()
	if gen != t.gen {
		// Closed or superseded while dialing.
		t.mu.Unlock()
		closeQuietly(conn)
		if err != nil {
			return domain.WrapOp("Transport.Connect", err)
		}
		return domain.NewSubSystemError("terminal", "Transport.Connect", domain.ErrStreamClosed, "closed while connecting")
	}
	t.dialCancel = nil

	if err != nil {
		t.setStateLocked(domain.StateDisconnected)
		var wrapped error
		if timedOut {
			wrapped = domain.NewSubSystemError("terminal", "Transport.Connect", domain.ErrTimeout,
				fmt.Sprintf("no handshake within %s: %v", t.cfg.ConnectTimeout, err))
			t.appendLocked(fmt.Sprintf("Connection attempt timed out after %s", t.cfg.ConnectTimeout), domain.LineError)
		} else {
			wrapped = domain.WrapOp("Transport.Connect", err)
			t.appendLocked("Failed to connect to terminal: "+err.Error(), domain.LineError)
		}
		if ctx.Err() == nil {
			t.scheduleReconnectLocked()
		}
		t.mu.Unlock()
		t.flush()
		t.logger.Warn("terminal connect failed", "session_id", sessionID, "error", err, "reconnect", reconnect)
		return wrapped
	}

	readCtx, readCancel := context.WithCancel(context.Background())
	t.conn = conn
	t.readCancel = readCancel
	t.attempts = 0
	t.setStateLocked(domain.StateConnected)
	t.appendLocked(MsgConnected, domain.LineSystem)
	t.queue = append(t.queue, event{ready: true})
	t.mu.Unlock()
	t.flush()

	t.logger.Info("terminal connected", "session_id", sessionID)
	go t.readLoop(readCtx, gen, conn)
	return nil
}

func (t *Transport) readLoop(ctx context.Context, gen uint64, conn domain.StreamConn) {
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			t.handleDisconnect(gen, err)
			return
		}
		t.handleFrame(gen, Decode(kind, data))
	}
}

func (t *Transport) handleFrame(gen uint64, f Frame) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	switch f.Class {
	case FrameControl:
		switch f.Control {
		case ControlError:
			t.appendLocked(f.Payload, domain.LineError)
		case ControlSystem:
			t.appendLocked(f.Payload, domain.LineSystem)
		case ControlReady:
			if f.Payload != "" {
				t.appendLocked(f.Payload, domain.LineSystem)
			}
			t.queue = append(t.queue, event{ready: true})
		}
	default:
		if f.Payload != "" {
			for _, l := range SplitLines(f.Payload) {
				t.appendLocked(l, domain.LineOutput)
			}
		}
	}
	t.mu.Unlock()
	t.flush()
}

// handleDisconnect processes the end of connection gen. It may run more than
// once for the same drop; only one reconnect is ever scheduled.
func (t *Transport) handleDisconnect(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	clean := errors.Is(err, domain.ErrStreamClosed)
	first := t.state != domain.StateDisconnected
	var stale domain.StreamConn
	if first {
		stale = t.detachConnLocked()
		t.setStateLocked(domain.StateDisconnected)
	}
	if clean {
		if first {
			t.appendLocked(MsgClosed, domain.LineSystem)
		}
	} else {
		scheduled := t.scheduleReconnectLocked()
		if first {
			if scheduled {
				t.appendLocked(fmt.Sprintf("Connection lost, reconnecting in %s", t.cfg.ReconnectDelay), domain.LineSystem)
			} else {
				t.appendLocked("Connection lost", domain.LineSystem)
			}
		}
	}
	sessionID := t.sessionID
	t.mu.Unlock()
	t.flush()
	closeQuietly(stale)

	if first {
		if clean {
			t.logger.Info("terminal stream closed", "session_id", sessionID)
		} else {
			t.logger.Warn("terminal stream lost", "session_id", sessionID, "error", err)
		}
	}
}

// scheduleReconnectLocked arms the single reconnect timer. It reports whether
// a new timer was armed.
func (t *Transport) scheduleReconnectLocked() bool {
	if t.pending != nil || t.sessionID == "" || !t.active() {
		return false
	}
	if limit := t.cfg.MaxReconnectAttempts; limit > 0 && t.attempts >= limit {
		t.appendLocked(fmt.Sprintf("Giving up after %d reconnect attempts", t.attempts), domain.LineError)
		return false
	}
	t.attempts++
	p := &pendingReconnect{sessionID: t.sessionID}
	p.timer = t.afterFunc(t.cfg.ReconnectDelay, func() { t.fireReconnect(p) })
	t.pending = p
	return true
}

func (t *Transport) fireReconnect(p *pendingReconnect) {
	t.mu.Lock()
	if t.pending != p {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	if !t.active() {
		return
	}
	_ = t.connect(context.Background(), p.sessionID, true)
}

func (t *Transport) cancelPendingLocked() {
	if t.pending != nil {
		t.pending.timer.Stop()
		t.pending = nil
	}
}

// detachConnLocked forgets the current connection and returns it for closing
// once mu is released.
func (t *Transport) detachConnLocked() domain.StreamConn {
	conn := t.conn
	t.conn = nil
	if t.readCancel != nil {
		t.readCancel()
		t.readCancel = nil
	}
	return conn
}

// Submit echoes cmd into the buffer, records it in history and transmits it.
// Blank commands and submissions while not connected are rejected before any
// network call.
func (t *Transport) Submit(ctx context.Context, command string) error {
	cmd := strings.TrimRight(command, "\r\n")
	if strings.TrimSpace(cmd) == "" {
		return domain.NewSubSystemError("terminal", "Transport.Submit", domain.ErrInvalidInput, "empty command")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	if t.state != domain.StateConnected {
		t.mu.Unlock()
		return domain.NewSubSystemError("terminal", "Transport.Submit", domain.ErrNotConnected, "")
	}
	conn := t.conn
	t.history.Add(cmd)
	t.appendLocked("$ "+cmd, domain.LineInput)
	t.mu.Unlock()
	t.flush()

	if err := conn.Write(ctx, domain.FrameText, EncodeCommand(cmd)); err != nil {
		t.reportWriteError(conn, err)
		return domain.WrapOp("Transport.Submit", err)
	}
	return nil
}

// Send transmits raw data as a text frame without echo.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.transmit(ctx, "Transport.Send", data)
}

// Interrupt sends the ETX control byte as its own frame. It is neither echoed
// nor recorded in history, and it does not wait behind a pending command write.
func (t *Transport) Interrupt(ctx context.Context) error {
	return t.transmit(ctx, "Transport.Interrupt", []byte{InterruptByte})
}

func (t *Transport) transmit(ctx context.Context, op string, data []byte) error {
	t.mu.Lock()
	if t.state != domain.StateConnected {
		t.mu.Unlock()
		return domain.NewSubSystemError("terminal", op, domain.ErrNotConnected, "")
	}
	conn := t.conn
	t.mu.Unlock()

	if err := conn.Write(ctx, domain.FrameText, data); err != nil {
		t.reportWriteError(conn, err)
		return domain.WrapOp(op, err)
	}
	return nil
}

func (t *Transport) reportWriteError(conn domain.StreamConn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.appendLocked("Failed to send: "+err.Error(), domain.LineError)
	t.mu.Unlock()
	t.flush()
}

// Close tears down the connection and any pending reconnect. The transport
// can be connected again afterwards.
func (t *Transport) Close() {
	t.mu.Lock()
	t.cancelPendingLocked()
	if t.dialCancel != nil {
		t.dialCancel()
		t.dialCancel = nil
	}
	idle := t.state == domain.StateDisconnected && t.conn == nil
	t.gen++
	conn := t.conn
	t.conn = nil
	readCancel := t.readCancel
	t.readCancel = nil
	t.attempts = 0
	if !idle {
		t.setStateLocked(domain.StateDisconnected)
		t.appendLocked(MsgDisconnected, domain.LineSystem)
	}
	sessionID := t.sessionID
	t.mu.Unlock()
	t.flush()

	closeQuietly(conn)
	if readCancel != nil {
		readCancel()
	}
	if !idle {
		t.logger.Info("terminal closed", "session_id", sessionID)
	}
}

// State returns the connection state.
func (t *Transport) State() domain.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the session the transport is bound to.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Lines returns the buffered terminal lines, oldest first.
func (t *Transport) Lines() []domain.TerminalLine { return t.buffer.All() }

// ClearBuffer drops every buffered line.
func (t *Transport) ClearBuffer() { t.buffer.Clear() }

// History returns the submitted commands, most recent first.
func (t *Transport) History() []string { return t.history.Entries() }

// PreviousCommand recalls the next older command.
func (t *Transport) PreviousCommand() (string, bool) { return t.history.Previous() }

// NextCommand recalls the next newer command, or fresh input.
func (t *Transport) NextCommand() (string, bool) { return t.history.Next() }

// Complete applies Tab completion to input.
func (t *Transport) Complete(input string) (string, bool) { return t.completer.Complete(input) }

func (t *Transport) attemptsSnapshot() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *Transport) setStateLocked(s domain.ConnectionState) {
	if t.state == s {
		return
	}
	t.state = s
	t.queue = append(t.queue, event{state: &s})
}

func (t *Transport) appendLocked(content string, typ domain.LineType) {
	line := t.buffer.Append(content, typ)
	t.queue = append(t.queue, event{line: &line})
}

// flush delivers queued events in the order they were produced.
func (t *Transport) flush() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	for {
		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		t.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			switch {
			case ev.line != nil:
				t.observer.LineAppended(*ev.line)
			case ev.state != nil:
				t.observer.ConnectionChanged(*ev.state)
			case ev.ready:
				t.observer.TerminalReady()
			}
		}
	}
}

func closeQuietly(conn domain.StreamConn) {
	if conn != nil {
		_ = conn.Close()
	}
}
