package ast

import "github.com/rehoboth23/minic/internal/token"

// Position is a source location, reused from the token package so the
// grammar, ast and diag packages agree on one representation.
type Position = token.Position

// NodeType identifies the concrete shape of a Node without a type switch,
// mirroring the closed opcode set the rest of the back-end expects.
type NodeType int

const (
	ILLEGAL NodeType = iota
	PROGRAM
	EXTERN
	FUNCTION
	PARAM
	BLOCK_STMT
	DECL_STMT
	ASSIGN_STMT
	CALL_STMT
	IF_STMT
	WHILE_STMT
	RETURN_STMT
	INT_LIT
	VAR_REF
	UNARY_EXPR
	BINARY_EXPR
	CALL_EXPR
)

func (t NodeType) String() string {
	switch t {
	case PROGRAM:
		return "Program"
	case EXTERN:
		return "Extern"
	case FUNCTION:
		return "Function"
	case PARAM:
		return "Param"
	case BLOCK_STMT:
		return "BlockStmt"
	case DECL_STMT:
		return "DeclStmt"
	case ASSIGN_STMT:
		return "AssignStmt"
	case CALL_STMT:
		return "CallStmt"
	case IF_STMT:
		return "IfStmt"
	case WHILE_STMT:
		return "WhileStmt"
	case RETURN_STMT:
		return "ReturnStmt"
	case INT_LIT:
		return "IntLit"
	case VAR_REF:
		return "VarRef"
	case UNARY_EXPR:
		return "UnaryExpr"
	case BINARY_EXPR:
		return "BinaryExpr"
	case CALL_EXPR:
		return "CallExpr"
	default:
		return "Illegal"
	}
}

// Node is implemented by every AST type; it is the algebraic-sum-type
// backbone of the AST. Later phases pattern-match with type switches on
// the concrete node types; NodeType reports the same shape as a value.
type Node interface {
	NodePos() Position
	NodeEndPos() Position
	NodeType() NodeType
}

// Stmt is any statement node: block, declaration, assignment, call,
// if/else, while, or return.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is any expression node: integer constant, variable reference,
// unary negation, binary arithmetic, or comparison.
type Expr interface {
	Node
	exprNode()
}
