// Command minic is the invocation harness for the back-end: it reads a
// miniC source file, runs it through parsing, semantic analysis, IR
// lowering, optimization, register allocation, and assembly emission,
// and writes the requested output files. Grounded on the teacher's
// cmd/kanso-cli/main.go (os.Args parsing, os.ReadFile, color.Green/Red
// status lines), extended with the optional -ir/-asm output flags and
// the atomic write pattern spec.md §7 recommends.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/segmentio/ksuid"

	"github.com/rehoboth23/minic/internal/ast"
	"github.com/rehoboth23/minic/internal/codegen"
	"github.com/rehoboth23/minic/internal/diag"
	"github.com/rehoboth23/minic/internal/grammar"
	"github.com/rehoboth23/minic/internal/ir"
	"github.com/rehoboth23/minic/internal/token"
)

func main() {
	irOut := flag.String("ir", "", "path to write the optimized IR listing (optional)")
	asmOut := flag.String("asm", "", "path to write the emitted assembly (optional)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: minic [-ir path] [-asm path] <source.mc>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if termenv.ColorProfile() == termenv.Ascii {
		color.NoColor = true
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	if err := run(path, *irOut, *asmOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", formatErr(path, err))
		os.Exit(1)
	}
}

func run(path, irOut, asmOut string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return &diag.Diagnostic{Phase: diag.PhaseParse, Code: diag.ErrReadFile, Message: err.Error()}
	}

	tree, err := grammar.ParseSource(path, string(source))
	if err != nil {
		return err
	}

	prog, err := ast.FromParseTree(tree)
	if err != nil {
		return err
	}

	mod, err := ir.BuildProgram(prog)
	if err != nil {
		return err
	}
	ir.OptimizeModule(mod)

	if irOut != "" {
		if err := writeAtomic(irOut, ir.Print(mod)); err != nil {
			return &diag.Diagnostic{Phase: diag.PhaseEmit, Code: diag.ErrWriteFile, Message: err.Error()}
		}
	}

	if asmOut != "" {
		asm, err := codegen.Emit(mod, filepath.Base(path))
		if err != nil {
			return &diag.Diagnostic{Phase: diag.PhaseEmit, Code: diag.ErrUnsupported, Message: err.Error()}
		}
		if err := writeAtomic(asmOut, asm); err != nil {
			return &diag.Diagnostic{Phase: diag.PhaseEmit, Code: diag.ErrWriteFile, Message: err.Error()}
		}
	}

	color.Green("compiled %s", path)
	return nil
}

// writeAtomic writes content to a temp file beside the final path and
// renames it into place, so a crash or a failing write never leaves a
// half-written output file (spec.md §7: "no output file is left in a
// half-written state... recommended but not mandated"). The temp name is
// suffixed with a ksuid so concurrent invocations targeting the same
// output path never collide.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), ksuid.New().String()))

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// formatErr renders a participle syntax error with its caret-annotated
// source snippet via diag.Reporter, or falls back to a Diagnostic's own
// Error() / the bare error message for every other phase.
func formatErr(path string, err error) string {
	if pe, ok := err.(participle.Error); ok {
		source, readErr := os.ReadFile(path)
		if readErr != nil {
			return pe.Message()
		}
		r := diag.NewReporter(path, string(source))
		lexPos := pe.Position()
		d := &diag.Diagnostic{
			Phase:   diag.PhaseParse,
			Code:    diag.ErrSyntax,
			Message: pe.Message(),
			Position: token.Position{
				Filename: lexPos.Filename,
				Offset:   lexPos.Offset,
				Line:     lexPos.Line,
				Column:   lexPos.Column,
			},
		}
		return r.Format(d)
	}
	return err.Error()
}
