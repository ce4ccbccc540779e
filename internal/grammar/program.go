// Package grammar is the participle-based concrete syntax for miniC: a
// stateful lexer (lexer.go) plus a struct-tag grammar (this file) that
// produces a raw parse tree. internal/ast converts that tree into the
// clean AST the rest of the compiler consumes.
package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// PosIdent is an identifier token carrying its own source span.
type PosIdent struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Value  string `@Ident`
}

// Program is the root of a miniC translation unit: zero or more extern
// declarations followed by exactly one defined function.
type Program struct {
	Pos      lexer.Position
	EndPos   lexer.Position
	Externs  []*Extern `@@*`
	Function *Function `@@`
}

// Extern declares a function with no body, resolved at link time (the
// runtime's read()/print() are always externs). A parameter may carry a
// name (`extern void print(int x);`); only its type is kept.
type Extern struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	ReturnType string       `"extern" @("void" | "int" | "char")`
	Name       PosIdent     `@@ "("`
	Params     []string     `[ @("int" | "char") Ident? { "," @("int" | "char") Ident? } ] ")" ";"`
}

// Function is the single defined function in the program.
type Function struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	ReturnType string       `@("void" | "int" | "char")`
	Name       PosIdent     `@@ "("`
	Params     []*Param     `[ @@ { "," @@ } ] ")"`
	Body       *Block       `@@`
}

// Param is one function parameter: a type and a name.
type Param struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Type   string   `@("int" | "char")`
	Name   PosIdent `@@`
}

// Block is a brace-delimited statement sequence.
type Block struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	Statements []*Statement `"{" @@* "}"`
}

// Statement is the sum type of every miniC statement form.
type Statement struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Block  *Block      `  @@`
	If     *IfStmt     `| @@`
	While  *WhileStmt  `| @@`
	Return *ReturnStmt `| @@`
	Decl   *DeclStmt   `| @@`
	Call   *CallStmt   `| @@`
	Assign *AssignStmt `| @@`
}

// DeclStmt declares a local variable, optionally with an initializer.
type DeclStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Type   string   `@("int" | "char")`
	Name   PosIdent `@@`
	Init   *RValue  `[ "=" @@ ] ";"`
}

// AssignStmt stores a new value into an already-declared variable.
type AssignStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   PosIdent `@@ "="`
	Value  *RValue  `@@ ";"`
}

// CallStmt is a call whose result, if any, is discarded.
type CallStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Callee PosIdent `@@ "("`
	Args   []*Expr  `[ @@ { "," @@ } ] ")" ";"`
}

// RValue is the right-hand side of a declaration or assignment: either a
// call (the only way a call result can be captured) or a plain expression.
type RValue struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Call   *CallExpr `  @@`
	Expr   *Expr     `| @@`
}

// CallExpr is a call used where a value is expected.
type CallExpr struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Callee PosIdent `@@ "("`
	Args   []*Expr  `[ @@ { "," @@ } ] ")"`
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Cond   *Expr      `"if" "(" @@ ")"`
	Then   *Statement `@@`
	Else   *Statement `[ "else" @@ ]`
}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Cond   *Expr      `"while" "(" @@ ")"`
	Body   *Statement `@@`
}

// ReturnStmt optionally carries a value; absent for void functions.
type ReturnStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Value  *Expr `"return" [ @@ ] ";"`
}

// Expr is the lowest-precedence expression level: an optional single
// comparison applied to two additive expressions.
type Expr struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Left   *Additive   `@@`
	Op     string      `[ @("==" | "!=" | "<=" | ">=" | "<" | ">")`
	Right  *Additive   `  @@ ]`
}

// Additive handles + and - at uniform left-to-right precedence.
type Additive struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Left   *Multiplicative   `@@`
	Rest   []*AddTerm        `@@*`
}

type AddTerm struct {
	Op    string          `@("+" | "-")`
	Right *Multiplicative `@@`
}

// Multiplicative handles * and / at uniform left-to-right precedence.
type Multiplicative struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Left   *Unary    `@@`
	Rest   []*MulTerm `@@*`
}

type MulTerm struct {
	Op    string `@("*" | "/")`
	Right *Unary `@@`
}

// Unary handles optional leading negation.
type Unary struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Neg    bool     `@"-"?`
	Primary *Primary `@@`
}

// Primary is the leaf of expression grammar: a literal, a variable
// reference, or a parenthesized sub-expression.
type Primary struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Int     *string `  @Integer`
	Ident   *string `| @Ident`
	SubExpr *Expr   `| "(" @@ ")"`
}
