package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Breaker wraps a ProvisioningBackend so that repeated status-query failures
// open the circuit and later queries fail fast without reaching the backend.
// Create requests pass through unguarded.
type Breaker struct {
	inner   domain.ProvisioningBackend
	breaker *gobreaker.CircuitBreaker[domain.StatusReport]
	logger  *slog.Logger
}

// NewBreaker wraps inner with a circuit breaker. Zero-valued settings use defaults.
func NewBreaker(inner domain.ProvisioningBackend, cfg config.CircuitBreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[domain.StatusReport](gobreaker.Settings{
		Name:        "backend:status",
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	return &Breaker{inner: inner, breaker: cb, logger: logger}
}

// countsAsSuccess reports whether err leaves the failure count untouched.
// Not-found, auth and cancellation outcomes do not trip the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAuthInvalid) ||
		errors.Is(err, context.Canceled)
}

// CreateSession implements domain.ProvisioningBackend.
func (b *Breaker) CreateSession(ctx context.Context, params domain.CreateParams) (string, error) {
	return b.inner.CreateSession(ctx, params)
}

// SessionStatus implements domain.ProvisioningBackend through the breaker.
func (b *Breaker) SessionStatus(ctx context.Context, sessionID string) (domain.StatusReport, error) {
	report, err := b.breaker.Execute(func() (domain.StatusReport, error) {
		return b.inner.SessionStatus(ctx, sessionID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.StatusReport{}, domain.NewSubSystemError("backend", "Breaker.SessionStatus",
				fmt.Errorf("%w: %w", domain.ErrProviderError, err), "circuit open")
		}
		return domain.StatusReport{}, err
	}
	return report, nil
}

// State returns the current circuit breaker state for monitoring.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}

var _ domain.ProvisioningBackend = (*Breaker)(nil)

// New builds the configured backend: a Client, wrapped in a Breaker when enabled.
func New(cfg config.BackendConfig, tokens domain.TokenSource, logger *slog.Logger, opts ...Option) domain.ProvisioningBackend {
	client := NewClient(cfg, tokens, logger, opts...)
	if !cfg.CircuitBreaker.Enabled {
		return client
	}
	return NewBreaker(client, cfg.CircuitBreaker, logger)
}
