// Package diag implements the shared diagnostic bag used by every
// compiler phase: it records each error message as it is raised
// without aborting the phase, so the lexer, parser and emitter all
// report through the same type and the driver aggregates them.
package diag

import (
	"fmt"

	"github.com/xinuc/xinuc/internal/token"
)

// Severity distinguishes a hard error from an advisory warning. Only
// warnings are affected by the -W<n> verbosity flag; errors are always
// reported and always fail the compilation.
type Severity int

const (
	SevError Severity = iota
	SevWarning
)

func (s Severity) String() string {
	if s == SevWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one recorded message, tied to a source position.
type Diagnostic struct {
	Severity Severity
	Pos      token.Position
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Bag accumulates diagnostics across a phase (or a whole compilation)
// without ever stopping the phase early; callers keep going after
// recording an error.
type Bag struct {
	items []Diagnostic
}

// Errorf records a hard error at pos.
func (b *Bag) Errorf(pos token.Position, format string, args ...interface{}) {
	b.items = append(b.items, Diagnostic{Severity: SevError, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Warnf records an advisory warning at pos.
func (b *Bag) Warnf(pos token.Position, format string, args ...interface{}) {
	b.items = append(b.items, Diagnostic{Severity: SevWarning, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any SevError diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}

// Count returns the total number of recorded diagnostics.
func (b *Bag) Count() int { return len(b.items) }

// ErrorCount returns the number of SevError diagnostics.
func (b *Bag) ErrorCount() int {
	n := 0
	for _, d := range b.items {
		if d.Severity == SevError {
			n++
		}
	}
	return n
}

// All returns every recorded diagnostic in recording order.
func (b *Bag) All() []Diagnostic { return b.items }

// Merge appends another bag's diagnostics onto b, preserving relative
// order (this phase's diagnostics, then the other's).
func (b *Bag) Merge(other *Bag) {
	b.items = append(b.items, other.items...)
}
