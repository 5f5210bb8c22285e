package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandbox-term/internal/domain"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrinterSessionLinesDeduplicated(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	pct := 40
	s := domain.Session{ID: "s", Phase: domain.PhasePullingImage, Message: "pulling", Progress: &domain.Progress{Percent: &pct}}
	p.SessionUpdated(s)
	p.SessionUpdated(s)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "40%")
	assert.Contains(t, lines[0], "pulling")
}

func TestPrinterWritesTerminalLines(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	p.LineAppended(domain.TerminalLine{Content: "$ pwd", Type: domain.LineInput})
	p.LineAppended(domain.TerminalLine{Content: "/workspace", Type: domain.LineOutput})
	assert.Equal(t, "$ pwd\n/workspace\n", out.String())
}

func TestRunPlainSubmitsAfterReady(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	term := &fakeTerminal{}

	done := make(chan error, 1)
	go func() {
		done <- RunPlain(context.Background(), strings.NewReader("pwd\n\n  \nls\n"), term, p, PlainOptions{})
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, term.submissions(), "no input before the terminal is ready")
	p.TerminalReady()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPlain did not return at EOF")
	}
	assert.Equal(t, []string{"pwd", "ls"}, term.submissions())
}

func TestRunPlainReturnsFailure(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	failure := domain.NewSubSystemError("readiness", "Poller.Start", domain.ErrProvisioningFailed, "boom")
	p.LifecycleChanged(domain.LifecycleFailed, failure)

	err := RunPlain(context.Background(), strings.NewReader("pwd\n"), &fakeTerminal{}, p, PlainOptions{})
	assert.True(t, errors.Is(err, domain.ErrProvisioningFailed))
	assert.Contains(t, out.String(), "error:")
}

func TestRunPlainReportsSubmitErrors(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out)
	p.TerminalReady()
	term := &fakeTerminal{submitErr: domain.ErrNotConnected}

	require.NoError(t, RunPlain(context.Background(), strings.NewReader("pwd\n"), term, p, PlainOptions{}))
	assert.Contains(t, out.String(), "error:")
}

func TestRunPlainHonoursContext(t *testing.T) {
	p := NewPrinter(&syncBuffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunPlain(ctx, strings.NewReader(""), &fakeTerminal{}, p, PlainOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
