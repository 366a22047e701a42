package sym

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}
}

func TestCommandDescriptionsCoversAllCommands(t *testing.T) {
	for cmd := range CommandToSymbol {
		if _, ok := CommandDescriptions[cmd]; !ok {
			t.Errorf("CommandDescriptions missing entry for command %q", cmd)
		}
	}
	if len(CommandDescriptions) != len(CommandToSymbol) {
		t.Errorf("CommandDescriptions has %d entries, CommandToSymbol has %d", len(CommandDescriptions), len(CommandToSymbol))
	}
}

func TestPaletteGlyphsAreSingleRunes(t *testing.T) {
	seen := make(map[string]bool)
	for _, glyph := range PaletteOrder {
		if utf8.RuneCountInString(glyph) != 1 {
			t.Errorf("glyph %q should be a single rune", glyph)
		}
		if seen[glyph] {
			t.Errorf("glyph %q appears twice in PaletteOrder", glyph)
		}
		seen[glyph] = true
		if _, ok := SymbolToCommand[glyph]; !ok {
			t.Errorf("palette glyph %q has no command", glyph)
		}
	}
}

func TestPaletteListsEveryOperatorInOrder(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(Palette(), "\n"), "\n")
	if len(lines) != len(PaletteOrder) {
		t.Fatalf("Palette has %d lines, PaletteOrder has %d glyphs", len(lines), len(PaletteOrder))
	}
	for i, glyph := range PaletteOrder {
		cmd := SymbolToCommand[glyph]
		if !strings.Contains(lines[i], glyph+" "+cmd) {
			t.Errorf("line %d = %q, want glyph %q and command %q", i, lines[i], glyph, cmd)
		}
		if !strings.HasSuffix(lines[i], CommandDescriptions[cmd]) {
			t.Errorf("line %d = %q, want description %q", i, lines[i], CommandDescriptions[cmd])
		}
	}
}

func TestDecorate(t *testing.T) {
	if got := Decorate("sync", "Run sync checks"); got != Sync+" Run sync checks" {
		t.Errorf("Decorate(sync) = %q", got)
	}
	if got := Decorate("version", "Show version"); got != "Show version" {
		t.Errorf("Decorate(version) = %q, want it unchanged", got)
	}
}
