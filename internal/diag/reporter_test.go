package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rehoboth23/minic/internal/token"
)

func TestReporterFormatIncludesCaretAtColumn(t *testing.T) {
	source := "int f() {\n\treturn x;\n}\n"
	r := NewReporter("test.mc", source)

	d := &Diagnostic{
		Phase:   PhaseSemantic,
		Code:    ErrUndefinedVariable,
		Message: "undefined variable x",
		Position: token.Position{
			Filename: "test.mc", Line: 2, Column: 9,
		},
	}

	out := r.Format(d)
	assert.Contains(t, out, "E0200")
	assert.Contains(t, out, "undefined variable x")
	assert.Contains(t, out, "test.mc:2:9")
	assert.Contains(t, out, "return x;")
}

func TestReporterFormatWithoutPositionOmitsSnippet(t *testing.T) {
	r := NewReporter("test.mc", "int f() { return 0; }\n")
	d := &Diagnostic{Phase: PhaseSemantic, Code: ErrMissingFunction, Message: "program has no defined function"}

	out := r.Format(d)
	assert.Contains(t, out, "program has no defined function")
	assert.NotContains(t, out, "-->")
}

func TestDiagnosticErrorIncludesPositionWhenValid(t *testing.T) {
	d := &Diagnostic{Message: "boom", Position: token.Position{Line: 3, Column: 4}}
	assert.Equal(t, "3:4: boom", d.Error())

	bare := &Diagnostic{Message: "boom"}
	assert.Equal(t, "boom", bare.Error())
}
