// Package diag formats compiler diagnostics the way the front-end reports
// them to a terminal: one error line, a source snippet, and a caret. It is
// adapted from the teacher's Rust-style error reporter, simplified to the
// single-file, single-function scope of a miniC translation unit.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rivo/uniseg"

	"github.com/rehoboth23/minic/internal/token"
)

// Phase names the pipeline stage that raised a Diagnostic.
type Phase string

const (
	PhaseParse    Phase = "parse"
	PhaseSemantic Phase = "semantic"
	PhaseLowering Phase = "lowering"
	PhaseEmit     Phase = "emit"
)

// Diagnostic is a single fatal error: spec.md's taxonomy never produces
// warnings for this back-end (optimization and allocation failures are
// always locally recoverable, never reported), so there is one severity.
type Diagnostic struct {
	Phase    Phase
	Code     string
	Message  string
	Position token.Position
}

func (d *Diagnostic) Error() string {
	if d.Position.IsValid() {
		return fmt.Sprintf("%s: %s", d.Position, d.Message)
	}
	return d.Message
}

// Reporter formats Diagnostics against a held copy of the source text.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a Reporter for a given file's source text.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders a Diagnostic as a colored, caret-annotated block, in the
// style `error[E0200]: message` followed by the offending source line.
func (r *Reporter) Format(d *Diagnostic) string {
	var out strings.Builder

	bold := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", bold("error"), d.Code, d.Message))

	pos := d.Position
	if !pos.IsValid() {
		return out.String()
	}

	out.WriteString(fmt.Sprintf("  %s %s:%d:%d\n", dim("-->"), r.filename, pos.Line, pos.Column))

	if pos.Line > 0 && pos.Line <= len(r.lines) {
		line := r.lines[pos.Line-1]
		out.WriteString(fmt.Sprintf("%4d %s %s\n", pos.Line, dim("|"), line))

		// uniseg counts grapheme clusters rather than bytes so the caret
		// lands under the right column even when the source line contains
		// multi-byte characters (e.g. in a comment) before the error.
		prefixWidth := 0
		if pos.Column > 1 {
			gr := uniseg.NewGraphemes(line)
			for i := 0; i < pos.Column-1 && gr.Next(); i++ {
				prefixWidth++
			}
		}
		out.WriteString(fmt.Sprintf("     %s %s%s\n", dim("|"), strings.Repeat(" ", prefixWidth), bold("^")))
	}

	return out.String()
}
