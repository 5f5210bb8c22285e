package console

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"sandbox-term/internal/domain"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge implements domain.StatusSink and domain.TerminalObserver by
// forwarding every callback, in order, into a Bubble Tea program. Callbacks
// only enqueue; a pump goroutine performs the blocking Send, so callers
// running inside the program's own commands cannot deadlock it.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	sender Sender

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	pumpDone  chan struct{}
}

// NewBridge creates a detached bridge. Messages queue until Attach.
func NewBridge() *Bridge {
	return &Bridge{
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
}

// Attach starts forwarding to s. It must be called at most once.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
	go b.pump()
	b.signal()
}

// Close stops forwarding and waits for the pump to exit. Queued messages
// not yet sent are dropped.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.mu.Lock()
	attached := b.sender != nil
	b.mu.Unlock()
	if attached {
		<-b.pumpDone
	}
}

func (b *Bridge) push(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	defer close(b.pumpDone)
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			batch := b.queue
			b.queue = nil
			sender := b.sender
			b.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, msg := range batch {
				select {
				case <-b.done:
					return
				default:
				}
				sender.Send(msg)
			}
		}
	}
}

// SessionUpdated implements domain.StatusSink.
func (b *Bridge) SessionUpdated(s domain.Session) { b.push(SessionMsg{Session: s}) }

// LifecycleChanged implements domain.StatusSink.
func (b *Bridge) LifecycleChanged(state domain.LifecycleState, err error) {
	b.push(LifecycleMsg{State: state, Err: err})
}

// LineAppended implements domain.TerminalObserver.
func (b *Bridge) LineAppended(l domain.TerminalLine) { b.push(LineMsg{Line: l}) }

// ConnectionChanged implements domain.TerminalObserver.
func (b *Bridge) ConnectionChanged(s domain.ConnectionState) { b.push(ConnectionMsg{State: s}) }

// TerminalReady implements domain.TerminalObserver.
func (b *Bridge) TerminalReady() { b.push(ReadyMsg{}) }

var (
	_ domain.StatusSink       = (*Bridge)(nil)
	_ domain.TerminalObserver = (*Bridge)(nil)
)
