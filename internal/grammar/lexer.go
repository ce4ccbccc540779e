package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// MiniCLexer tokenizes miniC source text. It follows the same stateful-rule
// shape as a hand-rolled lexer would, but delegates the state machine to
// participle so the grammar in program.go can consume tokens directly.
var MiniCLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `[0-9]+`, nil},
		{"Operator", `(==|!=|<=|>=|[-+*/<>=])`, nil},
		{"Punctuation", `[{}()[\],;]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
