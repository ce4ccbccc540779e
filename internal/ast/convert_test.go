package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehoboth23/minic/internal/grammar"
)

func parseSource(t *testing.T, source string) *grammar.Program {
	t.Helper()
	tree, err := grammar.ParseSource("test.mc", source)
	require.NoError(t, err)
	return tree
}

func TestFromParseTreeBuildsFunctionAndExterns(t *testing.T) {
	tree := parseSource(t, `extern int read();
	extern void print(int x);
	int add(int a, int b) {
		int total;
		total = a + b;
		return total;
	}`)

	prog, err := FromParseTree(tree)
	require.NoError(t, err)

	require.Len(t, prog.Externs, 2)
	assert.Equal(t, "read", prog.Externs[0].Name)
	assert.Equal(t, TypeInt, prog.Externs[0].ReturnType)
	assert.Equal(t, "print", prog.Externs[1].Name)
	assert.Equal(t, []Type{TypeInt}, prog.Externs[1].ParamTypes)

	fn := prog.Function
	require.NotNil(t, fn)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, TypeInt, fn.ReturnType)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	require.Len(t, fn.Body.Statements, 3)
}

func TestFromParseTreeBuildsExpressionTree(t *testing.T) {
	tree := parseSource(t, `int f(int x) {
		return 1 + x * 2 - -x;
	}`)
	prog, err := FromParseTree(tree)
	require.NoError(t, err)

	ret, ok := prog.Function.Body.Statements[0].(*ReturnStmt)
	require.True(t, ok)
	require.NotNil(t, ret.Value)

	// (1 + x*2) - (-x)
	top, ok := ret.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinSub, top.Op)

	neg, ok := top.Right.(*UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, UnaryNeg, neg.Op)

	left, ok := top.Left.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinAdd, left.Op)

	mul, ok := left.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinMul, mul.Op)
}

func TestFromParseTreeBuildsComparisonAndCall(t *testing.T) {
	tree := parseSource(t, `extern int read();
	int f() {
		int x;
		x = read();
		if (x <= 0) return 0;
		return x;
	}`)
	prog, err := FromParseTree(tree)
	require.NoError(t, err)

	decl, ok := prog.Function.Body.Statements[0].(*DeclStmt)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)

	assign, ok := prog.Function.Body.Statements[1].(*AssignStmt)
	require.True(t, ok)
	require.NotNil(t, assign.ValueCall)
	assert.Equal(t, "read", assign.ValueCall.Callee)

	ifStmt, ok := prog.Function.Body.Statements[2].(*IfStmt)
	require.True(t, ok)
	cond, ok := ifStmt.Cond.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, BinLe, cond.Op)
}

// convertFunction's "unknown return type" path can never be reached through
// the parser (the grammar only ever emits "void"|"int"|"char" there), but it
// stays defensive per ParseType's own comment. Exercise it directly against
// a hand-built grammar tree, the way a parser revision loosening that
// restriction someday would hit it.
func TestConvertFunctionRejectsUnknownReturnType(t *testing.T) {
	g := &grammar.Function{
		ReturnType: "float",
		Name:       grammar.PosIdent{Value: "f"},
		Body:       &grammar.Block{},
	}
	_, err := convertFunction(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown return type")
}

func TestConvertExternRejectsUnknownParamType(t *testing.T) {
	g := &grammar.Extern{
		ReturnType: "int",
		Name:       grammar.PosIdent{Value: "f"},
		Params:     []string{"float"},
	}
	_, err := convertExtern(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter type")
}

func TestConvertPrimaryRejectsMalformedIntegerLiteral(t *testing.T) {
	huge := "99999999999999999999999999999999"
	g := &grammar.Primary{Int: &huge}
	_, err := convertPrimary(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer literal")
}
