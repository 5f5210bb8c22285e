package terminal

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"sandbox-term/internal/domain"
)

// DefaultBufferLines is the default line buffer capacity.
const DefaultBufferLines = 1000

// LineBuffer is a bounded, append-only log of terminal lines. Once full, each
// append evicts the oldest line. All methods are safe for concurrent use.
type LineBuffer struct {
	mu    sync.Mutex
	lines []domain.TerminalLine
	start int // index of the oldest line
	size  int

	entropy io.Reader
	now     func() time.Time
}

// NewLineBuffer creates a buffer holding at most capacity lines.
// A non-positive capacity uses DefaultBufferLines.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferLines
	}
	t := time.Now()
	return &LineBuffer{
		lines:   make([]domain.TerminalLine, capacity),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0),
		now:     time.Now,
	}
}

// Append records a new line and returns it.
func (b *LineBuffer) Append(content string, typ domain.LineType) domain.TerminalLine {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	line := domain.TerminalLine{
		ID:        ulid.MustNew(ulid.Timestamp(t), b.entropy).String(),
		Content:   content,
		Type:      typ,
		Timestamp: t,
	}

	capacity := len(b.lines)
	if b.size < capacity {
		b.lines[(b.start+b.size)%capacity] = line
		b.size++
	} else {
		b.lines[b.start] = line
		b.start = (b.start + 1) % capacity
	}
	return line
}

// All returns the retained lines, oldest first.
func (b *LineBuffer) All() []domain.TerminalLine {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.TerminalLine, b.size)
	capacity := len(b.lines)
	for i := range b.size {
		out[i] = b.lines[(b.start+i)%capacity]
	}
	return out
}

// Len returns the number of retained lines.
func (b *LineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *LineBuffer) Cap() int { return len(b.lines) }

// Clear drops every retained line.
func (b *LineBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.lines)
	b.start, b.size = 0, 0
}
