package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }, "backend.base_url must not be empty"},
		{"bad scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }, `backend.base_url scheme "ftp" is invalid`},
		{"no host", func(c *Config) { c.Backend.BaseURL = "http://" }, "backend.base_url must include a host"},
		{"status path", func(c *Config) { c.Backend.StatusPath = "/status" }, "backend.status_path must contain {id}"},
		{"create path", func(c *Config) { c.Backend.CreatePath = "create" }, "backend.create_path must start with /"},
		{"breaker failures", func(c *Config) { c.Backend.CircuitBreaker.MaxFailures = 0 }, "max_failures must be > 0"},
		{"interval", func(c *Config) { c.Readiness.Interval = 0 }, "readiness.interval must be > 0"},
		{"deadline", func(c *Config) { c.Readiness.Deadline = 500 * time.Millisecond }, "must not be shorter than readiness.interval"},
		{"terminal path", func(c *Config) { c.Terminal.Path = "/terminal" }, "terminal.path must contain {id}"},
		{"stream scheme", func(c *Config) { c.Terminal.StreamURL = "http://x" }, "terminal.stream_url scheme"},
		{"reconnect attempts", func(c *Config) { c.Terminal.MaxReconnectAttempts = -1 }, "max_reconnect_attempts must be >= 0"},
		{"buffer", func(c *Config) { c.Terminal.BufferLines = 0 }, "terminal.buffer_lines must be > 0"},
		{"history", func(c *Config) { c.Terminal.HistorySize = 0 }, "terminal.history_size must be > 0"},
		{"log level", func(c *Config) { c.Logger.Level = "verbose" }, `logger.level "verbose" is invalid`},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }, `logger.format "xml" is invalid`},
		{"exporter", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "jaeger" }, `tracer.exporter "jaeger" is invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Readiness.Interval = 0
	cfg.Terminal.BufferLines = 0
	cfg.Logger.Format = "xml"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidateDisabledBreakerSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.CircuitBreaker.Enabled = false
	cfg.Backend.CircuitBreaker.MaxFailures = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateZeroReconnectAttemptsAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Terminal.MaxReconnectAttempts = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
