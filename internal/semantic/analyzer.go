// Package semantic validates a parsed miniC program before it is handed
// to IR lowering: declaration uniqueness, variable/function resolution,
// and call-site/signature compatibility (spec.md §6's "Input AST
// contract" — lowering trusts these have already been checked).
package semantic

import (
	"github.com/rehoboth23/minic/internal/ast"
	"github.com/rehoboth23/minic/internal/diag"
)

// signature is a callable's parameter and return types, shared by externs
// and the one defined function.
type signature struct {
	name       string
	params     []ast.Type
	returnType ast.Type
}

// Analyzer walks a Program once, building the call-site registry and
// variable scopes as it goes.
type Analyzer struct {
	signatures map[string]*signature
	fn         *ast.Function
}

// Analyze checks prog and returns the first fatal diagnostic found, or
// nil if the program is well-formed. It never mutates prog.
func Analyze(prog *ast.Program) error {
	a := &Analyzer{signatures: make(map[string]*signature), fn: prog.Function}

	for _, ext := range prog.Externs {
		if _, exists := a.signatures[ext.Name]; exists {
			return &diag.Diagnostic{
				Phase: diag.PhaseSemantic, Code: diag.ErrDuplicateExtern, Position: ext.Pos,
				Message: "duplicate extern declaration of " + ext.Name,
			}
		}
		a.signatures[ext.Name] = &signature{name: ext.Name, params: ext.ParamTypes, returnType: ext.ReturnType}
	}

	if prog.Function == nil {
		return &diag.Diagnostic{Phase: diag.PhaseSemantic, Code: diag.ErrMissingFunction, Message: "program has no defined function"}
	}

	fnParamTypes := make([]ast.Type, len(prog.Function.Params))
	for i, p := range prog.Function.Params {
		fnParamTypes[i] = p.Type
	}
	a.signatures[prog.Function.Name] = &signature{
		name: prog.Function.Name, params: fnParamTypes, returnType: prog.Function.ReturnType,
	}

	root := newScope(nil)
	for _, p := range prog.Function.Params {
		if existing := root.DefineLocal(&Symbol{Name: p.Name, Type: p.Type, Pos: p.Pos}); existing != nil {
			return dupErr(p.Name, p.Pos)
		}
	}

	return a.checkBlock(prog.Function.Body, root)
}

func dupErr(name string, pos ast.Position) error {
	return &diag.Diagnostic{
		Phase: diag.PhaseSemantic, Code: diag.ErrDuplicateDeclaration, Position: pos,
		Message: "\"" + name + "\" is already declared in this scope",
	}
}

func (a *Analyzer) checkBlock(b *ast.BlockStmt, parent *Scope) error {
	scope := parent.push()
	for _, stmt := range b.Statements {
		if err := a.checkStmt(stmt, scope); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkStmt(stmt ast.Stmt, scope *Scope) error {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return a.checkBlock(s, scope)
	case *ast.DeclStmt:
		return a.checkDecl(s, scope)
	case *ast.AssignStmt:
		return a.checkAssign(s, scope)
	case *ast.CallStmt:
		_, err := a.checkCall(s.Callee, s.Args, s.Pos, scope)
		return err
	case *ast.IfStmt:
		if _, err := a.exprType(s.Cond, scope); err != nil {
			return err
		}
		if err := a.checkStmt(s.Then, scope); err != nil {
			return err
		}
		if s.Else != nil {
			return a.checkStmt(s.Else, scope)
		}
		return nil
	case *ast.WhileStmt:
		if _, err := a.exprType(s.Cond, scope); err != nil {
			return err
		}
		return a.checkStmt(s.Body, scope)
	case *ast.ReturnStmt:
		return a.checkReturn(s, scope)
	default:
		return &diag.Diagnostic{Phase: diag.PhaseSemantic, Code: diag.ErrUnknownNode, Position: stmt.NodePos(), Message: "unknown statement node"}
	}
}

func (a *Analyzer) checkDecl(d *ast.DeclStmt, scope *Scope) error {
	if d.Type == ast.TypeVoid {
		return &diag.Diagnostic{
			Phase: diag.PhaseSemantic, Code: diag.ErrUnsupported, Position: d.Pos,
			Message: "cannot declare variable " + d.Name + " of type void",
		}
	}
	if existing := scope.DefineLocal(&Symbol{Name: d.Name, Type: d.Type, Pos: d.Pos}); existing != nil {
		return dupErr(d.Name, d.Pos)
	}
	if d.InitCall != nil {
		retType, err := a.checkCall(d.InitCall.Callee, d.InitCall.Args, d.InitCall.Pos, scope)
		if err != nil {
			return err
		}
		if retType == ast.TypeVoid {
			return voidValueErr(d.InitCall.Callee, d.Pos)
		}
		return nil
	}
	if d.InitExpr != nil {
		_, err := a.exprType(d.InitExpr, scope)
		return err
	}
	return nil
}

func (a *Analyzer) checkAssign(s *ast.AssignStmt, scope *Scope) error {
	sym := scope.Resolve(s.Name)
	if sym == nil {
		return &diag.Diagnostic{
			Phase: diag.PhaseSemantic, Code: diag.ErrUndefinedVariable, Position: s.Pos,
			Message: "undefined variable " + s.Name,
		}
	}
	if s.ValueCall != nil {
		retType, err := a.checkCall(s.ValueCall.Callee, s.ValueCall.Args, s.ValueCall.Pos, scope)
		if err != nil {
			return err
		}
		if retType == ast.TypeVoid {
			return voidValueErr(s.ValueCall.Callee, s.Pos)
		}
		return nil
	}
	_, err := a.exprType(s.ValueExpr, scope)
	return err
}

func (a *Analyzer) checkReturn(r *ast.ReturnStmt, scope *Scope) error {
	if a.fn.ReturnType == ast.TypeVoid {
		if r.Value != nil {
			return &diag.Diagnostic{
				Phase: diag.PhaseSemantic, Code: diag.ErrReturnType, Position: r.Pos,
				Message: "function " + a.fn.Name + " returns void but a value was returned",
			}
		}
		return nil
	}
	if r.Value == nil {
		return &diag.Diagnostic{
			Phase: diag.PhaseSemantic, Code: diag.ErrReturnType, Position: r.Pos,
			Message: "function " + a.fn.Name + " must return a value",
		}
	}
	_, err := a.exprType(r.Value, scope)
	return err
}

// checkCall resolves callee against the signature registry, checks arity,
// and checks every argument type-checks (implicit int/char widening is
// allowed, matching C's usual arithmetic conversions for these two
// integer widths). It returns the callee's declared return type.
func (a *Analyzer) checkCall(callee string, args []ast.Expr, pos ast.Position, scope *Scope) (ast.Type, error) {
	sig, ok := a.signatures[callee]
	if !ok {
		return ast.TypeInvalid, &diag.Diagnostic{
			Phase: diag.PhaseSemantic, Code: diag.ErrUndefinedFunction, Position: pos,
			Message: "call to undefined function " + callee,
		}
	}
	if len(args) != len(sig.params) {
		return ast.TypeInvalid, &diag.Diagnostic{
			Phase: diag.PhaseSemantic, Code: diag.ErrArgumentCount, Position: pos,
			Message: "wrong number of arguments to " + callee,
		}
	}
	for _, arg := range args {
		if _, err := a.exprType(arg, scope); err != nil {
			return ast.TypeInvalid, err
		}
	}
	return sig.returnType, nil
}

func voidValueErr(callee string, pos ast.Position) error {
	return &diag.Diagnostic{
		Phase: diag.PhaseSemantic, Code: diag.ErrVoidValueUsed, Position: pos,
		Message: "call to void function " + callee + " used as a value",
	}
}

// exprType infers the type of an expression, validating variable
// references and integer operand types as it goes. Arithmetic and
// comparison always yield int (i32): this language has no narrower
// arithmetic, only narrower storage (char parameters/locals).
func (a *Analyzer) exprType(e ast.Expr, scope *Scope) (ast.Type, error) {
	switch v := e.(type) {
	case *ast.IntLit:
		return ast.TypeInt, nil
	case *ast.VarRef:
		sym := scope.Resolve(v.Name)
		if sym == nil {
			return ast.TypeInvalid, &diag.Diagnostic{
				Phase: diag.PhaseSemantic, Code: diag.ErrUndefinedVariable, Position: v.Pos,
				Message: "undefined variable " + v.Name,
			}
		}
		return sym.Type, nil
	case *ast.UnaryExpr:
		if _, err := a.exprType(v.Value, scope); err != nil {
			return ast.TypeInvalid, err
		}
		return ast.TypeInt, nil
	case *ast.BinaryExpr:
		if _, err := a.exprType(v.Left, scope); err != nil {
			return ast.TypeInvalid, err
		}
		if _, err := a.exprType(v.Right, scope); err != nil {
			return ast.TypeInvalid, err
		}
		return ast.TypeInt, nil
	default:
		return ast.TypeInvalid, &diag.Diagnostic{Phase: diag.PhaseSemantic, Code: diag.ErrUnknownNode, Position: e.NodePos(), Message: "unknown expression node"}
	}
}
