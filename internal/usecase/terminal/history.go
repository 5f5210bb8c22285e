package terminal

import "sync"

// DefaultHistorySize is the default number of remembered commands.
const DefaultHistorySize = 100

// History is a bounded, most-recent-first list of submitted commands with a
// recall cursor. A cursor of -1 means the user is not navigating.
type History struct {
	mu       sync.Mutex
	entries  []string
	capacity int
	cursor   int
}

// NewHistory creates a history holding at most capacity commands.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity, cursor: -1}
}

// Add records cmd as the most recent command and resets the cursor. A command
// equal to the most recent entry is not stored twice.
func (h *History) Add(cmd string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cursor = -1
	if len(h.entries) > 0 && h.entries[0] == cmd {
		return
	}
	h.entries = append(h.entries, "")
	copy(h.entries[1:], h.entries)
	h.entries[0] = cmd
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// Previous moves the cursor one entry older and returns that entry. At the
// oldest entry it stays put. Returns false when the history is empty.
func (h *History) Previous() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
	}
	return h.entries[h.cursor], true
}

// Next moves the cursor one entry newer. Moving past the newest entry returns
// to fresh input, reported as ("", false).
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor <= 0 {
		h.cursor = -1
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Entries returns a copy of the history, most recent first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Cursor returns the recall cursor.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Reset leaves navigation mode without touching the entries.
func (h *History) Reset() {
	h.mu.Lock()
	h.cursor = -1
	h.mu.Unlock()
}
