package terminal

import (
	"sort"
	"strings"
)

// DefaultVocabulary is the fixed command list offered for Tab completion.
var DefaultVocabulary = []string{
	"cat", "cd", "chmod", "clear", "cp", "curl", "echo", "env", "exit", "export",
	"find", "git", "go", "grep", "head", "history", "kill", "less", "ls", "make",
	"mkdir", "mv", "node", "npm", "npx", "pip", "ps", "pwd", "python", "python3",
	"rm", "tail", "top", "touch", "which", "yarn",
}

// Completer performs advisory prefix completion of the first word.
type Completer struct {
	words []string
}

// NewCompleter creates a completer over vocab, or DefaultVocabulary when empty.
func NewCompleter(vocab []string) *Completer {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}
	words := append([]string(nil), vocab...)
	sort.Strings(words)
	return &Completer{words: words}
}

// Complete returns the completed input when the single word typed so far is
// an unambiguous prefix of exactly one vocabulary entry.
func (c *Completer) Complete(input string) (string, bool) {
	if input == "" || strings.ContainsAny(input, " \t") {
		return input, false
	}
	var match string
	n := 0
	for _, w := range c.words {
		if strings.HasPrefix(w, input) {
			match = w
			n++
		}
	}
	if n != 1 || match == input {
		return input, false
	}
	return match + " ", true
}

// Candidates lists every vocabulary entry starting with prefix.
func (c *Completer) Candidates(prefix string) []string {
	var out []string
	for _, w := range c.words {
		if strings.HasPrefix(w, prefix) {
			out = append(out, w)
		}
	}
	return out
}
