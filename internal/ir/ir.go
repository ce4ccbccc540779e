package ir

import (
	"github.com/rehoboth23/minic/internal/ast"
	"github.com/rehoboth23/minic/internal/semantic"
)

// BuildProgram is the package's single entry point for the invocation
// harness: it runs semantic analysis, then lowers the validated AST to
// an IR module. Callers that already ran semantic.Analyze themselves may
// call Build directly instead.
func BuildProgram(prog *ast.Program) (*Module, error) {
	if err := semantic.Analyze(prog); err != nil {
		return nil, err
	}
	return Build(prog)
}
