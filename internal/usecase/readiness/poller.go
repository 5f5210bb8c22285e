// Package readiness drives the provisioning phase state machine by polling
// the session status endpoint until the sandbox is ready, fails or times out.
package readiness

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"sandbox-term/internal/domain"
)

// Poller defaults.
const (
	DefaultInterval       = time.Second
	DefaultDeadline       = 300 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// TimeoutMessage is the synthetic error recorded when the deadline elapses.
const TimeoutMessage = "timed out waiting for the sandbox to become ready"

// StatusQuerier performs one status query.
type StatusQuerier interface {
	SessionStatus(ctx context.Context, sessionID string) (domain.StatusReport, error)
}

// Config tunes a Poller.
type Config struct {
	Interval       time.Duration // time between query starts
	Deadline       time.Duration // overall budget for reaching a terminal phase
	RequestTimeout time.Duration // budget for a single query
}

// Outcome is how a poll stream ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeReady
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Update is one element of a poll stream. The last update of a stream that
// was not cancelled has Final set.
type Update struct {
	Session domain.Session
	Attempt int
	Final   bool
	Outcome Outcome
	Err     error
}

// Poller queries session status strictly sequentially.
type Poller struct {
	querier StatusQuerier
	cfg     Config
	logger  *slog.Logger
}

// NewPoller creates a Poller. Zero config fields take the defaults.
func NewPoller(querier StatusQuerier, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{querier: querier, cfg: cfg, logger: logger}
}

// Start begins polling sessionID. The returned channel is closed exactly once,
// after a Final update or, when ctx is cancelled, without one.
func (p *Poller) Start(ctx context.Context, sessionID string) <-chan Update {
	out := make(chan Update, 1)
	go p.run(ctx, sessionID, out)
	return out
}

func (p *Poller) run(ctx context.Context, sessionID string, out chan<- Update) {
	defer close(out)

	deadline := time.Now().Add(p.cfg.Deadline)
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(p.cfg.Interval), 1)
	session := domain.NewSession(sessionID, time.Now())
	log := p.logger.With("session_id", sessionID)

	send := func(u Update) bool {
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}
	timeout := func(attempt int) {
		session.Phase = domain.PhaseError
		session.Error = TimeoutMessage
		session.UpdatedAt = time.Now()
		log.Warn("sandbox readiness deadline exceeded", "deadline", p.cfg.Deadline, "attempts", attempt)
		send(Update{
			Session: session,
			Attempt: attempt,
			Final:   true,
			Outcome: OutcomeTimedOut,
			Err:     domain.NewSubSystemError("readiness", "Poller.Start", domain.ErrTimeout, TimeoutMessage),
		})
	}

	for attempt := 1; ; attempt++ {
		// Wait fails early when the next slot would land past the deadline,
		// so the deadline itself is awaited before timing out.
		if err := limiter.Wait(dctx); err != nil {
			<-dctx.Done()
			if ctx.Err() != nil {
				return
			}
			timeout(attempt - 1)
			return
		}

		rctx, rcancel := context.WithTimeout(dctx, p.cfg.RequestTimeout)
		report, err := p.querier.SessionStatus(rctx, sessionID)
		rcancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if dctx.Err() != nil || !time.Now().Before(deadline) {
				timeout(attempt)
				return
			}
			log.Info("sandbox status query failed, polling continues", "attempt", attempt, "error", err)
			continue
		}

		prev := session.Phase
		session = session.Apply(report, time.Now())
		if session.Phase != prev {
			log.Debug("sandbox phase changed", "from", prev, "to", session.Phase, "attempt", attempt)
		}

		switch session.Phase {
		case domain.PhaseReady:
			send(Update{Session: session, Attempt: attempt, Final: true, Outcome: OutcomeReady})
			return
		case domain.PhaseError:
			log.Warn("sandbox provisioning failed", "error", session.Error)
			send(Update{
				Session: session,
				Attempt: attempt,
				Final:   true,
				Outcome: OutcomeFailed,
				Err:     domain.NewSubSystemError("readiness", "Poller.Start", domain.ErrProvisioningFailed, session.Error),
			})
			return
		}
		if !send(Update{Session: session, Attempt: attempt}) {
			return
		}
	}
}
