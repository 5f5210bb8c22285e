package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sandbox-term/internal/adapter/auth"
	"sandbox-term/internal/adapter/backend"
	"sandbox-term/internal/adapter/stream"
	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
	"sandbox-term/internal/infra/logger"
	"sandbox-term/internal/infra/tracer"
	"sandbox-term/internal/usecase/eventbus"
	"sandbox-term/internal/usecase/readiness"
	"sandbox-term/internal/usecase/terminal"
)

// app holds the wired adapters shared by the commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	tokens  domain.TokenSource
	backend domain.ProvisioningBackend
	poller  *readiness.Poller
	dialer  *stream.Dialer
	bus     *eventbus.Bus

	cleanup []func()
}

// newApp loads the config and wires the adapters. console selects log
// output suitable for the full-screen console.
func newApp(ctx context.Context, f cliFlags, console bool) (*app, error) {
	// 1. Config
	cfg, err := config.Load(f.configPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{cfg: cfg}

	// 2. Logger & Tracer
	var closeLog func() error
	if console && !cfg.UI.Plain {
		a.log, closeLog, err = logger.ForConsole(cfg.Logger, cfg.UI.LogFile)
	} else {
		a.log, closeLog, err = logger.New(cfg.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.onClose(func() { _ = closeLog() })

	var traceOpts []tracer.Option
	if console && !cfg.UI.Plain && cfg.UI.LogFile != "" {
		traceFile, err := openTraceFile(cfg.UI.LogFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("tracer: %w", err)
		}
		a.onClose(func() { _ = traceFile.Close() })
		traceOpts = append(traceOpts, tracer.WithOutput(traceFile))
	}
	shutdown, err := tracer.Setup(ctx, cfg.Tracer, traceOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.onClose(func() { _ = shutdown(context.Background()) })

	// 3. Auth & backend
	a.tokens = auth.FromConfig(cfg.Auth)
	if a.tokens == nil {
		a.log.Warn("no bearer token configured; requests are sent unauthenticated")
	}
	a.backend = backend.New(cfg.Backend, a.tokens, a.log)
	a.poller = readiness.NewPoller(a.backend, readinessConfig(cfg.Readiness), a.log)

	// 4. Terminal stream
	a.dialer, err = stream.NewDialer(cfg.Terminal, cfg.Backend.BaseURL, a.tokens, a.log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("stream: %w", err)
	}

	// 5. Event bus
	a.bus = eventbus.New(a.log)
	unsubscribe := a.bus.SubscribeAll(eventbus.LogHandler(a.log))
	a.onClose(a.bus.Close)
	a.onClose(unsubscribe)

	return a, nil
}

// defer_ registers fn to run on Close, in reverse registration order.
func (a *app) onClose(fn func()) { a.cleanup = append(a.cleanup, fn) }

// Close releases everything newApp acquired.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func readinessConfig(c config.ReadinessConfig) readiness.Config {
	return readiness.Config{
		Interval:       c.Interval,
		Deadline:       c.Deadline,
		RequestTimeout: c.RequestTimeout,
	}
}

func terminalConfig(c config.TerminalConfig) terminal.Config {
	return terminal.Config{
		ConnectTimeout:       c.ConnectTimeout,
		ReconnectDelay:       c.ReconnectDelay,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		BufferLines:          c.BufferLines,
		HistorySize:          c.HistorySize,
		Vocabulary:           c.Vocabulary,
	}
}

// openTraceFile opens traces.json next to the log file.
func openTraceFile(logFile string) (*os.File, error) {
	dir := filepath.Dir(logFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "traces.json"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
