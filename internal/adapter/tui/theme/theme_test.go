package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sandbox-term/internal/domain"
)

func TestInitSymbolsASCIIOverride(t *testing.T) {
	t.Setenv("SANDBOXTERM_ASCII_SYMBOLS", "1")
	InitSymbols()
	t.Cleanup(func() {
		t.Setenv("SANDBOXTERM_ASCII_SYMBOLS", "")
		InitSymbols()
	})

	assert.Equal(t, "[OK]", SymbolSuccess)
	assert.Equal(t, "->", SymbolArrowR)
}

func TestLineStyleDistinguishesTypes(t *testing.T) {
	assert.Equal(t, LineInput.Render("x"), LineStyle(domain.LineInput).Render("x"))
	assert.Equal(t, LineError.Render("x"), LineStyle(domain.LineError).Render("x"))
	assert.Equal(t, LineSystem.Render("x"), LineStyle(domain.LineSystem).Render("x"))
	assert.Equal(t, LineOutput.Render("x"), LineStyle(domain.LineOutput).Render("x"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 10))
	assert.Equal(t, 10, Clamp(50, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
}

func TestUnicodeSymbolsAreSingleGlyphs(t *testing.T) {
	assert.Equal(t, "\u2713", unicodeSymbols.Success)
	assert.Equal(t, "\u2717", unicodeSymbols.Error)
	assert.Equal(t, "\u2192", unicodeSymbols.ArrowR)
	assert.Equal(t, "\u2026", unicodeSymbols.Ellipsis)
}
