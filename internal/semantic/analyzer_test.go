package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehoboth23/minic/internal/ast"
	"github.com/rehoboth23/minic/internal/diag"
	"github.com/rehoboth23/minic/internal/grammar"
)

func parse(t *testing.T, source string) *ast.Program {
	t.Helper()
	tree, err := grammar.ParseSource("test.mc", source)
	require.NoError(t, err)
	prog, err := ast.FromParseTree(tree)
	require.NoError(t, err)
	return prog
}

func TestAnalyzeAcceptsWellFormedProgram(t *testing.T) {
	prog := parse(t, `extern int read();
	int f(int x) {
		int y;
		y = x + 1;
		return y;
	}`)
	assert.NoError(t, Analyze(prog))
}

func TestAnalyzeRejectsUndefinedVariable(t *testing.T) {
	prog := parse(t, "int f() { return x; }")
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrUndefinedVariable, d.Code)
}

func TestAnalyzeRejectsDuplicateDeclaration(t *testing.T) {
	prog := parse(t, `int f() {
		int a;
		int a;
		return a;
	}`)
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrDuplicateDeclaration, d.Code)
}

func TestAnalyzeAllowsShadowingInNestedBlock(t *testing.T) {
	prog := parse(t, `int f(int a) {
		if (a < 0) {
			int a;
			a = 1;
		}
		return a;
	}`)
	assert.NoError(t, Analyze(prog), "an inner-block redeclaration of a must shadow, not collide with, the outer parameter")
}

func TestAnalyzeRejectsArityMismatch(t *testing.T) {
	prog := parse(t, `extern int read(int x);
	int f() {
		return read();
	}`)
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrArgumentCount, d.Code)
}

func TestAnalyzeRejectsVoidReturnValue(t *testing.T) {
	prog := parse(t, "void f() { return 1; }")
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrReturnType, d.Code)
}

func TestAnalyzeRejectsMissingReturnValue(t *testing.T) {
	prog := parse(t, "int f() { return; }")
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrReturnType, d.Code)
}

func TestAnalyzeRejectsVoidValueUsedAsOperand(t *testing.T) {
	prog := parse(t, `extern void print(int x);
	int f() {
		int y;
		y = print(1);
		return y;
	}`)
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrVoidValueUsed, d.Code)
}

func TestAnalyzeRejectsDuplicateExtern(t *testing.T) {
	prog := parse(t, `extern int read();
	extern int read();
	int f() { return 0; }`)
	err := Analyze(prog)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.ErrDuplicateExtern, d.Code)
}
