// Package integration holds end-to-end tests that wire the real adapters
// against an in-process fake backend or, when configured, a live one.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"sandbox-term/internal/domain"
)

// Config holds integration test configuration from environment
type Config struct {
	BackendURL  string
	Token       string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	return &Config{
		BackendURL:  os.Getenv("SANDBOXTERM_IT_BACKEND_URL"),
		Token:       os.Getenv("SANDBOXTERM_IT_TOKEN"),
		TestTimeout: 60 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoBackend skips the test if no live backend is configured
func SkipIfNoBackend(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.BackendURL == "" {
		t.Skip("Skipping live backend test: SANDBOXTERM_IT_BACKEND_URL not set")
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// FakeBackend is an in-process provisioning backend: a create endpoint, a
// scripted status endpoint and a websocket terminal that answers a few
// commands.
type FakeBackend struct {
	Server    *httptest.Server
	Token     string
	SessionID string

	mu         sync.Mutex
	statuses   []domain.StatusReport
	polls      int
	statusHits int
	creates    []domain.CreateParams
	received   []string
	replies    map[string]string
}

// NewFakeBackend starts a fake backend whose status endpoint returns
// statuses in order, repeating the last one.
func NewFakeBackend(t *testing.T, token string, statuses ...domain.StatusReport) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		Token:     token,
		SessionID: "sess-42",
		statuses:  statuses,
		replies: map[string]string{
			"pwd":    "/workspace",
			"whoami": "sandbox",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/container/create", fb.handleCreate)
	mux.HandleFunc("GET /api/container/{id}/status", fb.handleStatus)
	mux.HandleFunc("GET /api/container/{id}/terminal", fb.handleTerminal)
	fb.Server = httptest.NewServer(fb.authorize(mux))
	t.Cleanup(fb.Server.Close)
	return fb
}

func (fb *FakeBackend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+fb.Token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p domain.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	fb.mu.Lock()
	fb.creates = append(fb.creates, p)
	fb.mu.Unlock()
	writeJSON(w, map[string]string{"sessionId": fb.SessionID})
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.statusHits++
	fb.mu.Unlock()
	if r.PathValue("id") != fb.SessionID {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"session not found"}`))
		return
	}
	fb.mu.Lock()
	i := min(fb.polls, len(fb.statuses)-1)
	fb.polls++
	report := fb.statuses[i]
	fb.mu.Unlock()
	writeJSON(w, report)
}

func (fb *FakeBackend) handleTerminal(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	_ = ws.Write(ctx, websocket.MessageText, []byte(`{"type":"ready","message":"shell ready"}`))
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		cmd := strings.TrimRight(string(data), "\n")
		fb.mu.Lock()
		fb.received = append(fb.received, cmd)
		reply, ok := fb.replies[cmd]
		fb.mu.Unlock()
		if !ok {
			reply = "sh: " + cmd + ": not found"
		}
		if err := ws.Write(ctx, websocket.MessageText, []byte(reply+"\n")); err != nil {
			return
		}
	}
}

// StatusRequests returns the number of status queries received, including
// those answered with 404.
func (fb *FakeBackend) StatusRequests() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.statusHits
}

// Polls returns the number of status queries served for the known session.
func (fb *FakeBackend) Polls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.polls
}

// Creates returns the create requests served.
func (fb *FakeBackend) Creates() []domain.CreateParams {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]domain.CreateParams(nil), fb.creates...)
}

// Received returns the commands the terminal received.
func (fb *FakeBackend) Received() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.received...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
