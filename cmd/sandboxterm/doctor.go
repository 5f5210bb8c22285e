package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sandbox-term/internal/adapter/auth"
	"sandbox-term/internal/adapter/backend"
	"sandbox-term/internal/adapter/stream"
	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// probeSessionID is queried to check that the status endpoint answers.
const probeSessionID = "sandboxterm-doctor-probe"

// runDoctor executes all health checks and reports results.
func runDoctor(args []string) error {
	var f cliFlags
	fs := newFlagSet("doctor", &f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfgPath := f.configPath()

	// Some checks work without a config.
	cfg, cfgErr := config.Load(cfgPath)
	if cfg != nil {
		f.apply(cfg)
	}

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Bearer token", Fn: checkToken},
		{Name: "Backend network", Fn: checkBackendNetwork},
		{Name: "Backend API", Fn: checkBackendAPI},
		{Name: "Terminal stream", Fn: checkStreamURL},
		{Name: "Log file", Fn: checkLogFile},
	}

	fmt.Println("sandboxterm doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

var noConfigResult = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// checkConfigFile returns a check that verifies the config file parses correctly.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check the YAML syntax, file permissions (0600) and " + config.KeyEnv,
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkToken verifies a bearer token resolves.
func checkToken(cfg *config.Config) CheckResult {
	if cfg == nil {
		return noConfigResult
	}
	src := auth.FromConfig(cfg.Auth)
	if src == nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no bearer token configured",
			Fix:     "Set auth.token, auth.token_env or auth.token_file",
		}
	}
	if _, err := src.Token(context.Background()); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("token unavailable: %v", err),
		}
	}
	return CheckResult{Status: StatusPass, Message: "bearer token available"}
}

// checkBackendNetwork dials the backend host.
func checkBackendNetwork(cfg *config.Config) CheckResult {
	if cfg == nil {
		return noConfigResult
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid backend.base_url: %v", err)}
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", addr, err),
			Fix:     "Check backend.base_url and your network connection",
		}
	}
	conn.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", addr, time.Since(start).Milliseconds()),
	}
}

// checkBackendAPI queries the status endpoint for a session that does not
// exist; a not-found answer proves the endpoint and the credentials work.
func checkBackendAPI(cfg *config.Config) CheckResult {
	if cfg == nil {
		return noConfigResult
	}
	client := backend.NewClient(cfg.Backend, auth.FromConfig(cfg.Auth), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.RequestTimeout)
	defer cancel()
	_, err := client.SessionStatus(ctx, probeSessionID)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return CheckResult{Status: StatusPass, Message: "status endpoint answered"}
	case errors.Is(err, domain.ErrAuthInvalid):
		return CheckResult{
			Status:  StatusFail,
			Message: "backend rejected the bearer token",
			Fix:     "Refresh the token or check auth settings",
		}
	default:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("status probe failed: %v", err),
		}
	}
}

// checkStreamURL verifies the websocket base URL can be derived.
func checkStreamURL(cfg *config.Config) CheckResult {
	if cfg == nil {
		return noConfigResult
	}
	base, err := stream.StreamBase(cfg.Terminal.StreamURL, cfg.Backend.BaseURL)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot derive stream URL: %v", err),
			Fix:     "Set terminal.stream_url to a ws:// or wss:// URL",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("terminal stream at %s", base)}
}

// checkLogFile verifies the console log directory is writable.
func checkLogFile(cfg *config.Config) CheckResult {
	if cfg == nil {
		return noConfigResult
	}
	if cfg.UI.LogFile == "" {
		return CheckResult{Status: StatusWarn, Message: "ui.log_file is empty, console logs are discarded"}
	}
	dir := filepath.Dir(cfg.UI.LogFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("logs written to %s", cfg.UI.LogFile)}
}
