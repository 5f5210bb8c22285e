package console

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"sandbox-term/internal/domain"
)

type fakeController struct {
	mu       sync.Mutex
	created  []domain.CreateParams
	resumed  []string
	retries  int
	cancels  int
	createFn func() error
}

func (c *fakeController) Create(_ context.Context, p domain.CreateParams) (string, error) {
	c.mu.Lock()
	c.created = append(c.created, p)
	fn := c.createFn
	c.mu.Unlock()
	if fn != nil {
		return "", fn()
	}
	return "sess-1", nil
}

func (c *fakeController) Resume(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = append(c.resumed, id)
	return nil
}

func (c *fakeController) Retry(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
	return "sess-2", nil
}

func (c *fakeController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels++
}

type fakeTerminal struct {
	mu         sync.Mutex
	submitted  []string
	interrupts int
	cleared    int
	prev       []string
	next       []string
	submitErr  error
}

func (t *fakeTerminal) Submit(_ context.Context, cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted = append(t.submitted, cmd)
	return t.submitErr
}

func (t *fakeTerminal) Interrupt(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupts++
	return nil
}

func (t *fakeTerminal) PreviousCommand() (string, bool) {
	if len(t.prev) == 0 {
		return "", false
	}
	v := t.prev[0]
	t.prev = t.prev[1:]
	return v, true
}

func (t *fakeTerminal) NextCommand() (string, bool) {
	if len(t.next) == 0 {
		return "", false
	}
	v := t.next[0]
	t.next = t.next[1:]
	return v, true
}

func (t *fakeTerminal) Complete(input string) (string, bool) {
	if input == "ec" {
		return "echo ", true
	}
	return "", false
}

func (t *fakeTerminal) ClearBuffer() { t.cleared++ }

func (t *fakeTerminal) submissions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.submitted...)
}

// recordingSender collects messages sent through a Bridge.
type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
	hook func(tea.Msg)
}

func (s *recordingSender) Send(msg tea.Msg) {
	if s.hook != nil {
		s.hook(msg)
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func (s *recordingSender) messages() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tea.Msg(nil), s.msgs...)
}
