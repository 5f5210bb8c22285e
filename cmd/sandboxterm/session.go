package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sandbox-term/internal/adapter/tui/console"
	"sandbox-term/internal/domain"
	"sandbox-term/internal/usecase/orchestrator"
	"sandbox-term/internal/usecase/terminal"
)

// plainLinger keeps printing output after stdin ends in --plain mode.
const plainLinger = 2 * time.Second

func runCreate(args []string) error {
	var f cliFlags
	fs := newFlagSet("run", &f)
	addSessionFlags(fs, &f)
	addCreateFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runSession(f, func(cfg *cliFlags, a *app) (*domain.CreateParams, string, error) {
		p, err := cfg.createParams(a.cfg)
		if err != nil {
			return nil, "", err
		}
		return &p, "", nil
	})
}

func runAttach(args []string) error {
	var f cliFlags
	fs := newFlagSet("attach", &f)
	addSessionFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := sessionArg(fs)
	if err != nil {
		return err
	}
	return runSession(f, func(*cliFlags, *app) (*domain.CreateParams, string, error) {
		return nil, id, nil
	})
}

type targetFunc func(f *cliFlags, a *app) (params *domain.CreateParams, resumeID string, err error)

// runSession wires the orchestrator and transport behind either the
// full-screen console or the line-mode printer.
func runSession(f cliFlags, target targetFunc) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, f, true)
	if err != nil {
		return err
	}
	defer a.Close()

	params, resumeID, err := target(&f, a)
	if err != nil {
		return err
	}

	var (
		sink     domain.StatusSink
		observer domain.TerminalObserver
		bridge   *console.Bridge
		printer  *console.Printer
	)
	if a.cfg.UI.Plain {
		printer = console.NewPrinter(os.Stdout)
		sink, observer = printer, printer
	} else {
		bridge = console.NewBridge()
		sink, observer = bridge, bridge
	}

	var (
		orch *orchestrator.Orchestrator
		tr   *terminal.Transport
	)
	observer = terminal.NewEventObserver(observer, a.bus, func() string { return tr.SessionID() })
	tr = terminal.NewTransport(a.dialer, terminalConfig(a.cfg.Terminal),
		terminal.WithObserver(observer),
		terminal.WithActiveFunc(func() bool { return orch.IsActive() }),
		terminal.WithLogger(a.log),
	)
	orch = orchestrator.New(orchestrator.Deps{
		Backend:  a.backend,
		Poller:   a.poller,
		Terminal: tr,
		Sink:     sink,
		Bus:      a.bus,
		Logger:   a.log,
	})
	defer orch.Cancel()

	if !a.cfg.UI.Plain {
		return console.Run(ctx, console.Deps{
			Controller: orch,
			Terminal:   tr,
			Params:     params,
			ResumeID:   resumeID,
			MaxLines:   a.cfg.Terminal.BufferLines,
			Logger:     a.log,
		}, bridge)
	}

	if params != nil {
		id, err := orch.Create(ctx, *params)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "session %s created\n", id)
	} else if err := orch.Resume(ctx, resumeID); err != nil {
		return err
	}
	return console.RunPlain(ctx, os.Stdin, tr, printer, console.PlainOptions{Linger: plainLinger})
}
