// Package stream implements domain.StreamDialer over websockets.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

// Dialer defaults.
const (
	DefaultReadLimit   int64 = 1 << 20
	defaultPingTimeout       = 10 * time.Second
)

// Dialer opens websocket connections to session terminals.
type Dialer struct {
	base         *url.URL
	path         string
	tokens       domain.TokenSource
	tokenInQuery bool
	readLimit    int64
	pingInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithHTTPClient sets the client used for the handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Dialer) { d.httpClient = hc }
}

// NewDialer builds a Dialer. The stream base is cfg.StreamURL, or backendURL
// with its scheme switched to ws/wss.
func NewDialer(cfg config.TerminalConfig, backendURL string, tokens domain.TokenSource, logger *slog.Logger, opts ...Option) (*Dialer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := StreamBase(cfg.StreamURL, backendURL)
	if err != nil {
		return nil, err
	}
	d := &Dialer{
		base:         base,
		path:         cfg.Path,
		tokens:       tokens,
		tokenInQuery: cfg.TokenInQuery,
		readLimit:    cfg.ReadLimit,
		pingInterval: cfg.PingInterval,
		logger:       logger,
	}
	if d.path == "" {
		d.path = "/api/container/{id}/terminal"
	}
	if d.readLimit <= 0 {
		d.readLimit = DefaultReadLimit
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// StreamBase resolves the websocket base URL.
func StreamBase(streamURL, backendURL string) (*url.URL, error) {
	raw := streamURL
	if raw == "" {
		raw = backendURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("stream url %q has no host", raw)
	}
	return u, nil
}

// URL returns the terminal endpoint for sessionID, without credentials.
func (d *Dialer) URL(sessionID string) *url.URL {
	u := *d.base
	escaped := strings.TrimRight(d.base.EscapedPath(), "/") + config.SessionPath(d.path, url.PathEscape(sessionID))
	u.Path, _ = url.PathUnescape(escaped)
	u.RawPath = escaped
	return &u
}

// Dial implements domain.StreamDialer. ctx bounds the handshake only.
func (d *Dialer) Dial(ctx context.Context, sessionID string) (domain.StreamConn, error) {
	token := ""
	if d.tokens != nil {
		tok, err := d.tokens.Token(ctx)
		if err != nil {
			return nil, domain.NewSubSystemError("terminal", "Dialer.Dial", domain.ErrAuthInvalid, err.Error())
		}
		token = tok
	}

	u := d.URL(sessionID)
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}, HTTPClient: d.httpClient}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
		if d.tokenInQuery {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}

	ws, resp, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, domain.NewSubSystemError("terminal", "Dialer.Dial", domain.ErrAuthInvalid,
				fmt.Sprintf("handshake rejected with status %d", resp.StatusCode))
		}
		if token != "" && d.tokenInQuery {
			return nil, errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(token), "[REDACTED]"))
		}
		return nil, err
	}
	ws.SetReadLimit(d.readLimit)

	c := &conn{ws: ws, done: make(chan struct{})}
	if d.pingInterval > 0 {
		go c.keepalive(d.pingInterval, d.logger, sessionID)
	}
	d.logger.Debug("terminal stream dialed", "session_id", sessionID, "url", d.URL(sessionID).String())
	return c, nil
}

// conn adapts *websocket.Conn to domain.StreamConn.
type conn struct {
	ws         *websocket.Conn
	pingFailed atomic.Bool
	closeOnce  sync.Once
	done       chan struct{}
}

func (c *conn) Read(ctx context.Context) (domain.FrameKind, []byte, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return 0, nil, c.mapReadError(err)
	}
	if typ == websocket.MessageBinary {
		return domain.FrameBinary, data, nil
	}
	return domain.FrameText, data, nil
}

func (c *conn) mapReadError(err error) error {
	if c.pingFailed.Load() {
		return fmt.Errorf("keepalive failed: %w", err)
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return fmt.Errorf("%w: %v", domain.ErrStreamClosed, err)
	}
	return err
}

func (c *conn) Write(ctx context.Context, kind domain.FrameKind, data []byte) error {
	typ := websocket.MessageText
	if kind == domain.FrameBinary {
		typ = websocket.MessageBinary
	}
	return c.ws.Write(ctx, typ, data)
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close(websocket.StatusNormalClosure, "client closed")
	})
	return err
}

// keepalive pings the peer until the conn is closed. A failed ping tears the
// socket down so the pending Read reports an unclean drop.
func (c *conn) keepalive(interval time.Duration, logger *slog.Logger, sessionID string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), min(interval, defaultPingTimeout))
		err := c.ws.Ping(ctx)
		cancel()
		if err == nil {
			continue
		}
		select {
		case <-c.done:
			return
		default:
		}
		logger.Warn("terminal keepalive failed", "session_id", sessionID, "error", err)
		c.pingFailed.Store(true)
		_ = c.ws.CloseNow()
		return
	}
}

var _ domain.StreamDialer = (*Dialer)(nil)
