package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"sandbox-term/internal/adapter/tui/components"
	"sandbox-term/internal/adapter/tui/uxerror"
	"sandbox-term/internal/domain"
)

// Printer is the line-mode front-end: it implements domain.StatusSink and
// domain.TerminalObserver by writing plain text to w.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	last string

	ready     chan struct{}
	readyOnce sync.Once
	failed    chan error
	failOnce  sync.Once
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
	}
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

// SessionUpdated prints the phase line when it changes.
func (p *Printer) SessionUpdated(s domain.Session) {
	line := "[" + s.Phase.Label() + "]"
	if s.Progress != nil && s.Progress.Percent != nil {
		line += fmt.Sprintf(" %d%%", *s.Progress.Percent)
	}
	if eta := components.FormatETA(s.Progress); eta != "" {
		line += " (" + eta + ")"
	}
	if s.Error != "" {
		line += " " + s.Error
	} else if s.Message != "" {
		line += " " + s.Message
	}

	p.mu.Lock()
	changed := line != p.last
	p.last = line
	p.mu.Unlock()
	if changed {
		p.println(line)
	}
}

// LifecycleChanged reports failures.
func (p *Printer) LifecycleChanged(state domain.LifecycleState, err error) {
	if state != domain.LifecycleFailed {
		return
	}
	if err != nil {
		p.println("error: " + uxerror.Humanize(err).Render())
	}
	p.failOnce.Do(func() { p.failed <- err })
}

// LineAppended prints the terminal line.
func (p *Printer) LineAppended(l domain.TerminalLine) { p.println(l.Content) }

// ConnectionChanged is a no-op; the transport reports state changes as
// system lines.
func (p *Printer) ConnectionChanged(domain.ConnectionState) {}

// TerminalReady unblocks RunPlain.
func (p *Printer) TerminalReady() { p.readyOnce.Do(func() { close(p.ready) }) }

var (
	_ domain.StatusSink       = (*Printer)(nil)
	_ domain.TerminalObserver = (*Printer)(nil)
)

// PlainOptions tune RunPlain.
type PlainOptions struct {
	// Linger is how long to keep printing output after the input ends.
	Linger time.Duration
}

// RunPlain waits for the terminal to become ready, then submits every
// non-blank line read from in until EOF or ctx is done. It returns the
// failure error if the session fails before the terminal is ready.
func RunPlain(ctx context.Context, in io.Reader, term Terminal, p *Printer, opts PlainOptions) error {
	select {
	case <-p.ready:
	case err := <-p.failed:
		if err == nil {
			err = domain.ErrProvisioningFailed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return err
					}
				default:
				}
				if opts.Linger > 0 {
					select {
					case <-time.After(opts.Linger):
					case <-ctx.Done():
					}
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := term.Submit(ctx, line); err != nil {
				p.println("error: " + uxerror.Humanize(err).Render())
			}
		}
	}
}
