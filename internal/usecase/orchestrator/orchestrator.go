// Package orchestrator coordinates sandbox session creation, readiness
// polling and terminal attachment.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/usecase/readiness"
)

// SessionCreator issues create-session requests.
type SessionCreator interface {
	CreateSession(ctx context.Context, params domain.CreateParams) (string, error)
}

// PollStarter starts a readiness poll stream.
type PollStarter interface {
	Start(ctx context.Context, sessionID string) <-chan readiness.Update
}

// Deps are the collaborators of an Orchestrator. Terminal, Sink and Bus are optional.
type Deps struct {
	Backend  SessionCreator
	Poller   PollStarter
	Terminal domain.TerminalConnector
	Sink     domain.StatusSink
	Bus      domain.EventBus
	Logger   *slog.Logger
}

// run is one create/resume attempt. Updates from a run whose epoch is no
// longer current are discarded.
type run struct {
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (r *run) finish() { r.once.Do(func() { close(r.done) }) }

// request is what Retry replays.
type request struct {
	params   *domain.CreateParams
	resumeID string
}

// Orchestrator is the caller-facing session state machine:
// Idle → Creating → Polling → Ready | Failed. Retry from Failed returns to
// Creating and Cancel returns to Idle.
type Orchestrator struct {
	backend  SessionCreator
	poller   PollStarter
	terminal domain.TerminalConnector
	sink     domain.StatusSink
	bus      domain.EventBus
	logger   *slog.Logger

	active atomic.Bool

	mu      sync.Mutex
	state   domain.LifecycleState
	session domain.Session
	err     error
	last    *request
	epoch   uint64
	current *run
	queue   []func()

	emitMu sync.Mutex
}

// New creates an idle Orchestrator.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		backend:  deps.Backend,
		poller:   deps.Poller,
		terminal: deps.Terminal,
		sink:     deps.Sink,
		bus:      deps.Bus,
		logger:   deps.Logger,
	}
	if o.sink == nil {
		o.sink = domain.NopStatusSink{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Create validates params, issues the creation request and starts readiness
// polling in the background. It returns the new session id once the backend
// has accepted the request.
func (o *Orchestrator) Create(ctx context.Context, params domain.CreateParams) (string, error) {
	params = params.Normalized()
	if err := params.Validate(); err != nil {
		return "", err
	}

	r, err := o.begin(ctx, "Orchestrator.Create", &request{params: &params})
	if err != nil {
		return "", err
	}

	// Cancel aborts the request through r.ctx; the caller's ctx still bounds it.
	cctx, ccancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.ctx, ccancel)
	id, err := o.backend.CreateSession(cctx, params)
	stop()
	ccancel()
	id = strings.TrimSpace(id)

	o.mu.Lock()
	if r.epoch != o.epoch {
		o.mu.Unlock()
		r.finish()
		return "", domain.WrapOp("Orchestrator.Create", context.Canceled)
	}
	if err != nil {
		err = domain.WrapOp("Orchestrator.Create", err)
		o.failLocked(err)
		o.mu.Unlock()
		o.flush()
		r.finish()
		o.logger.Warn("sandbox create failed", "project", params.ProjectName, "error", err)
		return "", err
	}
	if id == "" {
		err = domain.NewSubSystemError("orchestrator", "Orchestrator.Create", domain.ErrMissingSessionID, "")
		o.failLocked(err)
		o.mu.Unlock()
		o.flush()
		r.finish()
		o.logger.Warn("sandbox create returned no session id", "project", params.ProjectName)
		return "", err
	}
	o.pollLocked(r, id)
	o.mu.Unlock()
	o.flush()

	o.logger.Info("sandbox created", "session_id", id, "project", params.ProjectName)
	o.emitEvent(ctx, domain.EventSessionCreated, id, map[string]string{"project": params.ProjectName})
	go o.consume(r, id, o.poller.Start(r.ctx, id))
	return id, nil
}

// Resume polls an existing session until it is ready and then attaches the
// terminal, skipping the creation request.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.NewSubSystemError("orchestrator", "Orchestrator.Resume", domain.ErrInvalidInput, "session id is required")
	}
	r, err := o.begin(ctx, "Orchestrator.Resume", &request{resumeID: sessionID})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.pollLocked(r, sessionID)
	o.mu.Unlock()
	o.flush()

	o.logger.Info("resuming sandbox session", "session_id", sessionID)
	go o.consume(r, sessionID, o.poller.Start(r.ctx, sessionID))
	return nil
}

// begin starts a new run in the Creating state, tearing down any previous one.
func (o *Orchestrator) begin(ctx context.Context, op string, req *request) (*run, error) {
	o.mu.Lock()
	if o.state == domain.LifecycleCreating || o.state == domain.LifecyclePolling {
		o.mu.Unlock()
		return nil, domain.NewSubSystemError("orchestrator", op, domain.ErrBusy, "")
	}
	prev := o.detachLocked()
	hadTerminal := o.state == domain.LifecycleReady || o.state == domain.LifecycleFailed

	o.epoch++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{epoch: o.epoch, ctx: runCtx, cancel: cancel, done: make(chan struct{})}
	o.current = r
	o.last = req
	o.err = nil
	o.session = domain.Session{}
	o.setStateLocked(domain.LifecycleCreating)
	o.mu.Unlock()
	o.flush()

	if prev != nil {
		prev.cancel()
		prev.finish()
	}
	if hadTerminal && o.terminal != nil {
		o.terminal.Close()
	}
	return r, nil
}

func (o *Orchestrator) pollLocked(r *run, id string) {
	o.session = domain.NewSession(id, time.Now())
	o.active.Store(true)
	s := o.session
	o.queue = append(o.queue, func() { o.sink.SessionUpdated(s) })
	o.setStateLocked(domain.LifecyclePolling)
}

func (o *Orchestrator) consume(r *run, id string, updates <-chan readiness.Update) {
	defer r.finish()
	for u := range updates {
		o.mu.Lock()
		if r.epoch != o.epoch {
			o.mu.Unlock()
			continue
		}
		o.session = u.Session
		s := u.Session
		o.queue = append(o.queue, func() { o.sink.SessionUpdated(s) })

		connect := false
		if u.Final {
			if u.Outcome == readiness.OutcomeReady {
				o.setStateLocked(domain.LifecycleReady)
				connect = true
			} else {
				o.failLocked(u.Err)
			}
		}
		o.mu.Unlock()
		o.flush()

		switch {
		case !u.Final:
			o.emitEvent(r.ctx, domain.EventSessionPhase, id, phasePayload(s))
		case connect:
			o.logger.Info("sandbox ready", "session_id", id, "attempts", u.Attempt)
			o.emitEvent(r.ctx, domain.EventSessionReady, id, phasePayload(s))
			o.connectTerminal(r, id)
		default:
			o.emitEvent(r.ctx, domain.EventSessionFailed, id, domain.FailurePayload{
				Code:  domain.ErrorCodeOf(u.Err),
				Error: s.Error,
			})
		}
	}
}

// connectTerminal attaches the terminal. A transport failure is reported by
// the transport itself and never fails the session.
func (o *Orchestrator) connectTerminal(r *run, id string) {
	if o.terminal == nil || !o.IsActive() {
		return
	}
	o.mu.Lock()
	current := r.epoch == o.epoch
	o.mu.Unlock()
	if !current {
		return
	}
	if err := o.terminal.Connect(r.ctx, id); err != nil {
		o.logger.Warn("terminal attach failed", "session_id", id, "error", err)
	}
}

func (o *Orchestrator) failLocked(err error) {
	o.err = err
	o.active.Store(false)
	if o.current != nil {
		o.current.cancel()
	}
	o.setStateLocked(domain.LifecycleFailed)
}

// Cancel abandons the current session: polling stops, the active flag is
// cleared and the terminal connection, including any pending reconnect, is
// closed. No backend deletion is issued.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	r := o.detachLocked()
	o.epoch++
	o.err = nil
	wasIdle := o.state == domain.LifecycleIdle
	o.setStateLocked(domain.LifecycleIdle)
	id := o.session.ID
	o.mu.Unlock()
	o.flush()

	if r != nil {
		r.cancel()
		r.finish()
	}
	if o.terminal != nil {
		o.terminal.Close()
	}
	if !wasIdle {
		o.logger.Info("sandbox session cancelled", "session_id", id)
		o.emitEvent(context.Background(), domain.EventSessionCancelled, id, nil)
	}
}

// Retry clears the previous error and replays the last create or resume request.
func (o *Orchestrator) Retry(ctx context.Context) (string, error) {
	o.mu.Lock()
	last := o.last
	o.mu.Unlock()
	if last == nil {
		return "", domain.NewSubSystemError("orchestrator", "Orchestrator.Retry", domain.ErrNothingToRetry, "")
	}
	if last.params != nil {
		return o.Create(ctx, *last.params)
	}
	if err := o.Resume(ctx, last.resumeID); err != nil {
		return "", err
	}
	return last.resumeID, nil
}

func (o *Orchestrator) detachLocked() *run {
	r := o.current
	o.current = nil
	o.active.Store(false)
	return r
}

// Wait blocks until the current run reaches Ready (with the terminal attach
// attempted), Failed or is cancelled.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the lifecycle state.
func (o *Orchestrator) State() domain.LifecycleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns the latest session snapshot.
func (o *Orchestrator) Session() domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Err returns the error that moved the orchestrator to Failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// IsActive reports whether the current session is being provisioned or is in use.
func (o *Orchestrator) IsActive() bool { return o.active.Load() }

func (o *Orchestrator) setStateLocked(s domain.LifecycleState) {
	if o.state == s {
		return
	}
	o.state = s
	err := o.err
	o.queue = append(o.queue, func() { o.sink.LifecycleChanged(s, err) })
}

// flush delivers queued sink notifications in production order.
func (o *Orchestrator) flush() {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	for {
		o.mu.Lock()
		batch := o.queue
		o.queue = nil
		o.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (o *Orchestrator) emitEvent(ctx context.Context, eventType domain.EventType, sessionID string, payload any) {
	if o.bus == nil {
		return
	}
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	o.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Payload:   data,
	})
}

func phasePayload(s domain.Session) domain.PhasePayload {
	p := domain.PhasePayload{Phase: s.Phase, Message: s.Message}
	if s.Progress != nil {
		p.Percent = s.Progress.Percent
	}
	return p
}
