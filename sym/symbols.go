// Package sym defines canonical symbols for relset operations and system markers.
// These symbols are stable across CLI output and log lines.
package sym

import (
	"fmt"
	"strings"
)

// Primary operators: each has a CLI command.
const (
	AM        = "≡" // am: configuration and system settings
	Set       = "⊂" // set: relationship sets and their members
	Rule      = "⊨" // rule: field-level assertions
	Sync      = "⟳" // sync: sync check runs
	Violation = "⚑" // violation: findings and their lifecycle
	Template  = "⧉" // template: reusable rule bundles
	Entity    = "◇" // entity: read-only engineering records
)

// System infrastructure symbols.
const (
	DB      = "⊔" // database/storage layer
	Schema  = "▦" // field schema registry
	Resolve = "⇶" // member resolution
)

// PaletteOrder defines the canonical ordering for help output.
var PaletteOrder = []string{AM, Set, Rule, Sync, Violation, Template, Entity}

// SymbolToCommand maps glyph strings to their text command equivalents.
var SymbolToCommand = map[string]string{
	AM:        "am",
	Set:       "set",
	Rule:      "rule",
	Sync:      "sync",
	Violation: "violation",
	Template:  "template",
	Entity:    "entity",
}

// CommandToSymbol maps text commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{
	"am":        AM,
	"set":       Set,
	"rule":      Rule,
	"sync":      Sync,
	"violation": Violation,
	"template":  Template,
	"entity":    Entity,
}

// CommandDescriptions provides human-readable explanations for help output.
var CommandDescriptions = map[string]string{
	"am":        "Configuration: system settings and state",
	"set":       "Sets: named groups of entities plus their rules",
	"rule":      "Rules: field-level checks scoped to an entity type",
	"sync":      "Sync: re-evaluate a set against the entity store",
	"violation": "Violations: findings and their lifecycle",
	"template":  "Templates: reusable, member-free rule bundles",
	"entity":    "Entities: read-only engineering records",
}

// Palette renders the primary operators in PaletteOrder, one per line, for
// root command help.
func Palette() string {
	var b strings.Builder
	for _, glyph := range PaletteOrder {
		cmd := SymbolToCommand[glyph]
		fmt.Fprintf(&b, "  %s %-10s %s\n", glyph, cmd, CommandDescriptions[cmd])
	}
	return b.String()
}

// Decorate prefixes a command's short help with its glyph, if it has one.
func Decorate(cmd, short string) string {
	if glyph, ok := CommandToSymbol[cmd]; ok {
		return glyph + " " + short
	}
	return short
}
