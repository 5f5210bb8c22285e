package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBackend(cfg, ve)
	validateReadiness(cfg, ve)
	validateTerminal(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateBackend(cfg *Config, ve *ValidationError) {
	b := cfg.Backend
	validateURL(ve, "backend.base_url", b.BaseURL, "http", "https")
	if !strings.HasPrefix(b.CreatePath, "/") {
		ve.Add("backend.create_path must start with /")
	}
	if !strings.Contains(b.StatusPath, "{id}") {
		ve.Add("backend.status_path must contain {id}")
	}
	if b.RequestTimeout <= 0 {
		ve.Add("backend.request_timeout must be > 0")
	}
	if b.CircuitBreaker.Enabled {
		if b.CircuitBreaker.MaxFailures == 0 {
			ve.Add("backend.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if b.CircuitBreaker.Timeout <= 0 {
			ve.Add("backend.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
	if b.Pool.MaxIdleConns < 0 || b.Pool.MaxIdleConnsPerHost < 0 || b.Pool.MaxConnsPerHost < 0 {
		ve.Add("backend.pool limits must be >= 0")
	}
}

func validateReadiness(cfg *Config, ve *ValidationError) {
	r := cfg.Readiness
	if r.Interval <= 0 {
		ve.Add("readiness.interval must be > 0")
	}
	if r.Deadline <= 0 {
		ve.Add("readiness.deadline must be > 0")
	} else if r.Deadline < r.Interval {
		ve.Add("readiness.deadline (%s) must not be shorter than readiness.interval (%s)", r.Deadline, r.Interval)
	}
	if r.RequestTimeout <= 0 {
		ve.Add("readiness.request_timeout must be > 0")
	}
}

func validateTerminal(cfg *Config, ve *ValidationError) {
	t := cfg.Terminal
	if !strings.Contains(t.Path, "{id}") {
		ve.Add("terminal.path must contain {id}")
	}
	if t.StreamURL != "" {
		validateURL(ve, "terminal.stream_url", t.StreamURL, "ws", "wss")
	}
	if t.ConnectTimeout <= 0 {
		ve.Add("terminal.connect_timeout must be > 0")
	}
	if t.ReconnectDelay <= 0 {
		ve.Add("terminal.reconnect_delay must be > 0")
	}
	if t.MaxReconnectAttempts < 0 {
		ve.Add("terminal.max_reconnect_attempts must be >= 0")
	}
	if t.BufferLines <= 0 {
		ve.Add("terminal.buffer_lines must be > 0")
	}
	if t.HistorySize <= 0 {
		ve.Add("terminal.history_size must be > 0")
	}
	if t.ReadLimit <= 0 {
		ve.Add("terminal.read_limit must be > 0")
	}
	if t.PingInterval < 0 {
		ve.Add("terminal.ping_interval must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want debug, info, warn or error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want noop or stdout)", cfg.Tracer.Exporter)
	}
}

func validateURL(ve *ValidationError, field, raw string, schemes ...string) {
	if raw == "" {
		ve.Add("%s must not be empty", field)
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		ve.Add("%s: %v", field, err)
		return
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				ve.Add("%s must include a host", field)
			}
			return
		}
	}
	ve.Add("%s scheme %q is invalid (want %s)", field, u.Scheme, strings.Join(schemes, " or "))
}
