package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"sandbox-term/internal/domain"
)

type frame struct {
	kind domain.FrameKind
	data []byte
}

// fakeConn is an in-memory domain.StreamConn.
type fakeConn struct {
	inbound chan frame
	drops   chan error

	mu     sync.Mutex
	writes [][]byte
	onWrite func(data []byte)

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan frame, 64),
		drops:   make(chan error, 4),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (domain.FrameKind, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.kind, f.data, nil
	case err := <-c.drops:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, domain.ErrStreamClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, _ domain.FrameKind, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

func (c *fakeConn) sendText(s string)   { c.inbound <- frame{kind: domain.FrameText, data: []byte(s)} }
func (c *fakeConn) sendBinary(b []byte) { c.inbound <- frame{kind: domain.FrameBinary, data: b} }

// fakeDialer hands out scripted results in order; once exhausted it returns fresh conns.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	dials   int
	conns   []*fakeConn
	block   bool
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (domain.StreamConn, error) {
	d.mu.Lock()
	d.dials++
	block := d.block
	var r dialResult
	if len(d.results) > 0 {
		r = d.results[0]
		d.results = d.results[1:]
	} else {
		r = dialResult{conn: newFakeConn()}
	}
	if r.conn != nil {
		d.conns = append(d.conns, r.conn)
	}
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// recordingObserver captures transport events.
type recordingObserver struct {
	mu     sync.Mutex
	lines  []domain.TerminalLine
	states []domain.ConnectionState
	ready  int
}

func (o *recordingObserver) LineAppended(l domain.TerminalLine) {
	o.mu.Lock()
	o.lines = append(o.lines, l)
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionChanged(s domain.ConnectionState) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *recordingObserver) TerminalReady() {
	o.mu.Lock()
	o.ready++
	o.mu.Unlock()
}

func (o *recordingObserver) contents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.lines))
	for i, l := range o.lines {
		out[i] = l.Content
	}
	return out
}

func (o *recordingObserver) readyCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

func (o *recordingObserver) stateLog() []domain.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.ConnectionState(nil), o.states...)
}

// fakeTimers captures scheduled reconnects without firing them.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *fakeTimers) get(i int) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers[i]
}
