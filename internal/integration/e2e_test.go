package integration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandbox-term/internal/adapter/auth"
	"sandbox-term/internal/adapter/backend"
	"sandbox-term/internal/adapter/stream"
	"sandbox-term/internal/adapter/tui/console"
	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
	"sandbox-term/internal/usecase/eventbus"
	"sandbox-term/internal/usecase/orchestrator"
	"sandbox-term/internal/usecase/readiness"
	"sandbox-term/internal/usecase/terminal"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stack struct {
	orch    *orchestrator.Orchestrator
	term    *terminal.Transport
	printer *console.Printer
	out     *syncBuffer
	events  *eventRecorder
}

type eventRecorder struct {
	mu    sync.Mutex
	types []domain.EventType
}

func (r *eventRecorder) handle(_ context.Context, e domain.Event) {
	r.mu.Lock()
	r.types = append(r.types, e.Type)
	r.mu.Unlock()
}

func (r *eventRecorder) seen() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EventType(nil), r.types...)
}

// newStack wires the production adapters against baseURL.
func newStack(t *testing.T, baseURL, token string, tune ...func(*config.Config)) *stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	cfg := config.Defaults()
	cfg.Backend.BaseURL = baseURL
	cfg.Auth.Token = token
	cfg.Readiness.Interval = 20 * time.Millisecond
	cfg.Readiness.Deadline = 5 * time.Second
	cfg.Terminal.PingInterval = 0
	for _, fn := range tune {
		fn(cfg)
	}
	require.NoError(t, config.Validate(cfg))

	tokens := auth.FromConfig(cfg.Auth)
	be := backend.New(cfg.Backend, tokens, logger)
	poller := readiness.NewPoller(be, readiness.Config{
		Interval:       cfg.Readiness.Interval,
		Deadline:       cfg.Readiness.Deadline,
		RequestTimeout: cfg.Readiness.RequestTimeout,
	}, logger)
	dialer, err := stream.NewDialer(cfg.Terminal, cfg.Backend.BaseURL, tokens, logger)
	require.NoError(t, err)

	bus := eventbus.New(logger)
	t.Cleanup(bus.Close)
	rec := &eventRecorder{}
	bus.SubscribeAll(rec.handle)

	out := &syncBuffer{}
	printer := console.NewPrinter(out)

	var (
		orch *orchestrator.Orchestrator
		tr   *terminal.Transport
	)
	observer := terminal.NewEventObserver(printer, bus, func() string { return tr.SessionID() })
	tr = terminal.NewTransport(dialer, terminal.Config{
		ConnectTimeout: 2 * time.Second,
		ReconnectDelay: 50 * time.Millisecond,
		BufferLines:    cfg.Terminal.BufferLines,
		HistorySize:    cfg.Terminal.HistorySize,
	}, terminal.WithObserver(observer), terminal.WithActiveFunc(func() bool { return orch.IsActive() }), terminal.WithLogger(logger))
	orch = orchestrator.New(orchestrator.Deps{
		Backend:  be,
		Poller:   poller,
		Terminal: tr,
		Sink:     printer,
		Bus:      bus,
		Logger:   logger,
	})
	t.Cleanup(orch.Cancel)

	return &stack{orch: orch, term: tr, printer: printer, out: out, events: rec}
}

func lineContents(lines []domain.TerminalLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Content
	}
	return out
}

func TestE2E_CreatePollAttachRun(t *testing.T) {
	SkipIfShort(t)
	pct := 40.0
	fb := NewFakeBackend(t, "secret",
		domain.StatusReport{Phase: "pulling_image", Message: "pulling ubuntu", Progress: &domain.ReportProgress{Percent: &pct}},
		domain.StatusReport{Phase: "starting_container"},
		domain.StatusReport{Phase: "ready", Ready: true},
	)
	s := newStack(t, fb.Server.URL, "secret")
	ctx := NewTestContext(t, 10*time.Second)

	id, err := s.orch.Create(ctx, domain.CreateParams{ProjectName: " demo ", WorkspaceID: "ws-1"})
	require.NoError(t, err)
	assert.Equal(t, fb.SessionID, id)
	require.NoError(t, s.orch.Wait(ctx))

	assert.Equal(t, domain.LifecycleReady, s.orch.State())
	assert.Equal(t, domain.PhaseReady, s.orch.Session().Phase)
	assert.Equal(t, domain.StateConnected, s.term.State())
	require.Len(t, fb.Creates(), 1)
	assert.Equal(t, "demo", fb.Creates()[0].ProjectName)

	err = console.RunPlain(ctx, strings.NewReader("pwd\nwhoami\n"), s.term, s.printer, console.PlainOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return indexOf(lineContents(s.term.Lines()), "sandbox") >= 0
	}, 2*time.Second, 10*time.Millisecond)

	lines := lineContents(s.term.Lines())
	assert.Contains(t, lines, "$ pwd")
	assert.Contains(t, lines, "/workspace")
	assert.Less(t, indexOf(lines, "$ pwd"), indexOf(lines, "/workspace"))
	assert.Equal(t, []string{"pwd", "whoami"}, fb.Received())
	assert.Equal(t, []string{"whoami", "pwd"}, s.term.History(), "history is most recent first")

	out := s.out.String()
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "pulling ubuntu")
	assert.Contains(t, out, "shell ready")

	require.Eventually(t, func() bool {
		ev := s.events.seen()
		return len(ev) > 0 && ev[len(ev)-1] == domain.EventTerminalConnected
	}, time.Second, 10*time.Millisecond)
	ev := s.events.seen()
	assert.Equal(t, domain.EventSessionCreated, ev[0])
	assert.Contains(t, ev, domain.EventSessionReady)
}

func TestE2E_ProvisioningFailure(t *testing.T) {
	SkipIfShort(t)
	fb := NewFakeBackend(t, "secret",
		domain.StatusReport{Phase: "pulling_image"},
		domain.StatusReport{Phase: "error", Error: "image pull failed"},
	)
	s := newStack(t, fb.Server.URL, "secret")
	ctx := NewTestContext(t, 10*time.Second)

	_, err := s.orch.Create(ctx, domain.CreateParams{ProjectName: "demo"})
	require.NoError(t, err)
	require.NoError(t, s.orch.Wait(ctx))

	assert.Equal(t, domain.LifecycleFailed, s.orch.State())
	assert.True(t, errors.Is(s.orch.Err(), domain.ErrProvisioningFailed))
	assert.Equal(t, "image pull failed", s.orch.Session().Error)
	assert.Equal(t, domain.StateDisconnected, s.term.State())

	polls := fb.Polls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, polls, fb.Polls(), "no polls after a terminal phase")

	err = console.RunPlain(ctx, strings.NewReader("pwd\n"), s.term, s.printer, console.PlainOptions{})
	assert.True(t, errors.Is(err, domain.ErrProvisioningFailed))
	assert.Empty(t, fb.Received())
}

func TestE2E_RejectedToken(t *testing.T) {
	SkipIfShort(t)
	fb := NewFakeBackend(t, "secret", domain.StatusReport{Phase: "ready", Ready: true})
	s := newStack(t, fb.Server.URL, "wrong")
	ctx := NewTestContext(t, 10*time.Second)

	_, err := s.orch.Create(ctx, domain.CreateParams{ProjectName: "demo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthInvalid))
	assert.Equal(t, domain.LifecycleFailed, s.orch.State())
	assert.Empty(t, fb.Creates())
}

func TestE2E_ResumeExistingSession(t *testing.T) {
	SkipIfShort(t)
	fb := NewFakeBackend(t, "secret", domain.StatusReport{Phase: "ready", Ready: true})
	s := newStack(t, fb.Server.URL, "secret")
	ctx := NewTestContext(t, 10*time.Second)

	require.NoError(t, s.orch.Resume(ctx, fb.SessionID))
	require.NoError(t, s.orch.Wait(ctx))
	assert.Equal(t, domain.LifecycleReady, s.orch.State())
	assert.Equal(t, domain.StateConnected, s.term.State())
	assert.Empty(t, fb.Creates())

	s.orch.Cancel()
	assert.Equal(t, domain.LifecycleIdle, s.orch.State())
	assert.Equal(t, domain.StateDisconnected, s.term.State())
}

func TestE2E_ResumeUnknownSessionTimesOut(t *testing.T) {
	SkipIfShort(t)
	fb := NewFakeBackend(t, "secret", domain.StatusReport{Phase: "ready", Ready: true})
	s := newStack(t, fb.Server.URL, "secret", func(c *config.Config) {
		c.Readiness.Deadline = 200 * time.Millisecond
	})
	ctx := NewTestContext(t, 10*time.Second)

	require.NoError(t, s.orch.Resume(ctx, "nope"))
	require.NoError(t, s.orch.Wait(ctx))
	assert.Equal(t, domain.LifecycleFailed, s.orch.State())
	assert.True(t, errors.Is(s.orch.Err(), domain.ErrTimeout))
	assert.Equal(t, readiness.TimeoutMessage, s.orch.Session().Error)
	assert.Zero(t, fb.Polls())
	assert.Greater(t, fb.StatusRequests(), 1, "not-found answers are retried until the deadline")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
