// Package token holds the source-position types shared by the grammar,
// ast and diag packages, so none of them needs to import the others just
// to report where a node came from.
package token

import "fmt"

// Position tracks a location in a source file, used for error reporting
// and as the anchor for every AST node.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// IsValid reports whether the position carries real line/column info.
func (p Position) IsValid() bool {
	return p.Line > 0
}
