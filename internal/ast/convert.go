package ast

import (
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/rehoboth23/minic/internal/grammar"
)

// FromParseTree converts a participle-produced raw parse tree into the
// clean AST the semantic analyzer and IR lowering consume. It is the only
// place that walks grammar.* types; every later phase works on ast.Node.
//
// Any construct the grammar could not have produced (an operator keyword
// that isn't in the closed set, a malformed integer literal) is reported
// as a fatal conversion error rather than silently coerced, matching
// spec.md's "unknown AST node kinds are fatal" rule.
func FromParseTree(p *grammar.Program) (*Program, error) {
	prog := &Program{Pos: pos(p.Pos), EndPos: pos(p.EndPos)}

	for _, ge := range p.Externs {
		ext, err := convertExtern(ge)
		if err != nil {
			return nil, err
		}
		prog.Externs = append(prog.Externs, ext)
	}

	fn, err := convertFunction(p.Function)
	if err != nil {
		return nil, err
	}
	prog.Function = fn

	return prog, nil
}

func pos(p lexer.Position) Position {
	return Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

func convertExtern(g *grammar.Extern) (*Extern, error) {
	retType, ok := ParseType(g.ReturnType)
	if !ok {
		return nil, errors.Errorf("%s: unknown return type %q on extern %q", pos(g.Pos), g.ReturnType, g.Name.Value)
	}
	ext := &Extern{
		Pos:        pos(g.Pos),
		EndPos:     pos(g.EndPos),
		Name:       g.Name.Value,
		ReturnType: retType,
	}
	for _, p := range g.Params {
		t, ok := ParseType(p)
		if !ok {
			return nil, errors.Errorf("%s: unknown parameter type %q on extern %q", pos(g.Pos), p, g.Name.Value)
		}
		ext.ParamTypes = append(ext.ParamTypes, t)
	}
	return ext, nil
}

func convertFunction(g *grammar.Function) (*Function, error) {
	retType, ok := ParseType(g.ReturnType)
	if !ok {
		return nil, errors.Errorf("%s: unknown return type %q on function %q", pos(g.Pos), g.ReturnType, g.Name.Value)
	}
	fn := &Function{
		Pos:        pos(g.Pos),
		EndPos:     pos(g.EndPos),
		Name:       g.Name.Value,
		ReturnType: retType,
	}
	for _, p := range g.Params {
		t, ok := ParseType(p.Type)
		if !ok {
			return nil, errors.Errorf("%s: unknown parameter type %q on parameter %q", pos(p.Pos), p.Type, p.Name.Value)
		}
		fn.Params = append(fn.Params, &Param{
			Pos: pos(p.Pos), EndPos: pos(p.EndPos), Name: p.Name.Value, Type: t,
		})
	}
	body, err := convertBlock(g.Body)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func convertBlock(g *grammar.Block) (*BlockStmt, error) {
	b := &BlockStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos)}
	for _, gs := range g.Statements {
		s, err := convertStmt(gs)
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, s)
	}
	return b, nil
}

func convertStmt(g *grammar.Statement) (Stmt, error) {
	switch {
	case g.Block != nil:
		return convertBlock(g.Block)
	case g.If != nil:
		return convertIf(g.If)
	case g.While != nil:
		return convertWhile(g.While)
	case g.Return != nil:
		return convertReturn(g.Return)
	case g.Decl != nil:
		return convertDecl(g.Decl)
	case g.Call != nil:
		return convertCallStmt(g.Call)
	case g.Assign != nil:
		return convertAssign(g.Assign)
	default:
		return nil, errors.Errorf("%s: empty statement node", pos(g.Pos))
	}
}

func convertIf(g *grammar.IfStmt) (Stmt, error) {
	cond, err := convertExpr(g.Cond)
	if err != nil {
		return nil, err
	}
	then, err := convertStmt(g.Then)
	if err != nil {
		return nil, err
	}
	var elseStmt Stmt
	if g.Else != nil {
		elseStmt, err = convertStmt(g.Else)
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Cond: cond, Then: then, Else: elseStmt}, nil
}

func convertWhile(g *grammar.WhileStmt) (Stmt, error) {
	cond, err := convertExpr(g.Cond)
	if err != nil {
		return nil, err
	}
	body, err := convertStmt(g.Body)
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Cond: cond, Body: body}, nil
}

func convertReturn(g *grammar.ReturnStmt) (Stmt, error) {
	r := &ReturnStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos)}
	if g.Value != nil {
		v, err := convertExpr(g.Value)
		if err != nil {
			return nil, err
		}
		r.Value = v
	}
	return r, nil
}

func convertDecl(g *grammar.DeclStmt) (Stmt, error) {
	t, ok := ParseType(g.Type)
	if !ok {
		return nil, errors.Errorf("%s: unknown type %q in declaration of %q", pos(g.Pos), g.Type, g.Name.Value)
	}
	d := &DeclStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Name: g.Name.Value, Type: t}
	if g.Init != nil {
		if err := fillRValue(g.Init, &d.InitExpr, &d.InitCall); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func convertAssign(g *grammar.AssignStmt) (Stmt, error) {
	a := &AssignStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Name: g.Name.Value}
	if err := fillRValue(g.Value, &a.ValueExpr, &a.ValueCall); err != nil {
		return nil, err
	}
	return a, nil
}

func fillRValue(g *grammar.RValue, expr *Expr, call **CallExpr) error {
	switch {
	case g.Call != nil:
		c, err := convertCallExpr(g.Call)
		if err != nil {
			return err
		}
		*call = c
		return nil
	case g.Expr != nil:
		e, err := convertExpr(g.Expr)
		if err != nil {
			return err
		}
		*expr = e
		return nil
	default:
		return errors.Errorf("%s: empty right-hand side", pos(g.Pos))
	}
}

func convertCallStmt(g *grammar.CallStmt) (Stmt, error) {
	c := &CallStmt{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Callee: g.Callee.Value}
	for _, a := range g.Args {
		e, err := convertExpr(a)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, e)
	}
	return c, nil
}

func convertCallExpr(g *grammar.CallExpr) (*CallExpr, error) {
	c := &CallExpr{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Callee: g.Callee.Value}
	for _, a := range g.Args {
		e, err := convertExpr(a)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, e)
	}
	return c, nil
}

var comparisonOps = map[string]BinaryOp{
	"==": BinEq, "!=": BinNe, "<": BinLt, "<=": BinLe, ">": BinGt, ">=": BinGe,
}

func convertExpr(g *grammar.Expr) (Expr, error) {
	left, err := convertAdditive(g.Left)
	if err != nil {
		return nil, err
	}
	if g.Op == "" {
		return left, nil
	}
	op, ok := comparisonOps[g.Op]
	if !ok {
		return nil, errors.Errorf("%s: unknown comparison operator %q", pos(g.Pos), g.Op)
	}
	right, err := convertAdditive(g.Right)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Op: op, Left: left, Right: right}, nil
}

func convertAdditive(g *grammar.Additive) (Expr, error) {
	left, err := convertMultiplicative(g.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range g.Rest {
		right, err := convertMultiplicative(term.Right)
		if err != nil {
			return nil, err
		}
		var op BinaryOp
		switch term.Op {
		case "+":
			op = BinAdd
		case "-":
			op = BinSub
		default:
			return nil, errors.Errorf("%s: unknown additive operator %q", pos(g.Pos), term.Op)
		}
		left = &BinaryExpr{Pos: left.NodePos(), EndPos: right.NodeEndPos(), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func convertMultiplicative(g *grammar.Multiplicative) (Expr, error) {
	left, err := convertUnary(g.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range g.Rest {
		right, err := convertUnary(term.Right)
		if err != nil {
			return nil, err
		}
		var op BinaryOp
		switch term.Op {
		case "*":
			op = BinMul
		case "/":
			op = BinDiv
		default:
			return nil, errors.Errorf("%s: unknown multiplicative operator %q", pos(g.Pos), term.Op)
		}
		left = &BinaryExpr{Pos: left.NodePos(), EndPos: right.NodeEndPos(), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func convertUnary(g *grammar.Unary) (Expr, error) {
	value, err := convertPrimary(g.Primary)
	if err != nil {
		return nil, err
	}
	if !g.Neg {
		return value, nil
	}
	return &UnaryExpr{Pos: pos(g.Pos), EndPos: value.NodeEndPos(), Op: UnaryNeg, Value: value}, nil
}

func convertPrimary(g *grammar.Primary) (Expr, error) {
	switch {
	case g.Int != nil:
		v, err := strconv.ParseInt(*g.Int, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: invalid integer literal %q", pos(g.Pos), *g.Int)
		}
		return &IntLit{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Value: v}, nil
	case g.Ident != nil:
		return &VarRef{Pos: pos(g.Pos), EndPos: pos(g.EndPos), Name: *g.Ident}, nil
	case g.SubExpr != nil:
		return convertExpr(g.SubExpr)
	default:
		return nil, errors.Errorf("%s: empty primary expression", pos(g.Pos))
	}
}
