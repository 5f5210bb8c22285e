// Package backend implements domain.ProvisioningBackend over the sandbox HTTP API.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
	"sandbox-term/internal/infra/tracer"
)

// Client talks to the provisioning API.
type Client struct {
	baseURL    string
	createPath string
	statusPath string
	timeout    time.Duration
	http       *http.Client
	tokens     domain.TokenSource
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client from backend settings. tokens may be nil for
// unauthenticated backends.
func NewClient(cfg config.BackendConfig, tokens domain.TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		createPath: cfg.CreatePath,
		statusPath: cfg.StatusPath,
		timeout:    cfg.RequestTimeout,
		tokens:     tokens,
		logger:     logger,
	}
	if c.createPath == "" {
		c.createPath = "/api/container/create"
	}
	if c.statusPath == "" {
		c.statusPath = "/api/container/{id}/status"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: NewPooledTransport(0, cfg.RequestTimeout, cfg.Pool)}
	}
	return c
}

type createResponse struct {
	SessionID string `json:"sessionId"`
	ID        string `json:"id"`
}

// CreateSession implements domain.ProvisioningBackend. An empty id in the
// response is returned as-is; the caller decides how to treat it.
func (c *Client) CreateSession(ctx context.Context, params domain.CreateParams) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.create_session",
		trace.WithAttributes(tracer.StringAttr("project.name", params.ProjectName)))
	defer span.End()

	var resp createResponse
	status, err := c.do(ctx, http.MethodPost, c.baseURL+c.createPath, params, &resp)
	span.SetAttributes(tracer.IntAttr("http.status_code", status))
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.NewSubSystemError("backend", "Client.CreateSession", err, "")
	}

	id := resp.SessionID
	if id == "" {
		id = resp.ID
	}
	span.SetAttributes(tracer.SessionAttr(id))
	tracer.SetOK(span)
	c.logger.Debug("create session accepted", "session_id", id, "status", status)
	return id, nil
}

// SessionStatus implements domain.ProvisioningBackend.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (domain.StatusReport, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.session_status",
		trace.WithAttributes(tracer.SessionAttr(sessionID)))
	defer span.End()

	u := c.baseURL + config.SessionPath(c.statusPath, url.PathEscape(sessionID))
	var report domain.StatusReport
	status, err := c.do(ctx, http.MethodGet, u, nil, &report)
	span.SetAttributes(tracer.IntAttr("http.status_code", status))
	if err != nil {
		tracer.RecordError(span, err)
		return domain.StatusReport{}, domain.NewSubSystemError("backend", "Client.SessionStatus", err, "")
	}
	span.SetAttributes(tracer.StringAttr("session.phase", report.Phase))
	tracer.SetOK(span)
	return report, nil
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) (int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	status, err := doJSON(ctx, c.http, method, u, token, body, out)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return status, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return status, err
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

var _ domain.ProvisioningBackend = (*Client)(nil)
