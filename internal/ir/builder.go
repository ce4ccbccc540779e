package ir

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rehoboth23/minic/internal/ast"
)

const invalidBlockID BlockID = -1
const invalidInstID InstID = -1

func mapType(t ast.Type) Type {
	switch t {
	case ast.TypeInt:
		return TypeI32
	case ast.TypeChar:
		return TypeI8
	default:
		return TypeVoid
	}
}

var comparisonPreds = map[ast.BinaryOp]Predicate{
	ast.BinEq: PredEQ, ast.BinNe: PredNE,
	ast.BinLt: PredSLT, ast.BinLe: PredSLE,
	ast.BinGt: PredSGT, ast.BinGe: PredSGE,
}

var arithOpcodes = map[ast.BinaryOp]Opcode{
	ast.BinAdd: OpAdd, ast.BinSub: OpSub, ast.BinMul: OpMul, ast.BinDiv: OpSDiv,
}

// builder holds the mutable state of one function's lowering: the block
// currently receiving instructions, the scope chain mapping a source
// name to the Alloca that backs it (mirroring semantic.Scope so that
// shadowing across nested blocks resolves to the right slot), and the
// on-demand shared return block.
type builder struct {
	fn     *Function
	module *Module

	entry   BlockID
	current BlockID
	scopes  []map[string]InstID

	retSlot  InstID
	retBlock BlockID

	blockSeq int
}

// Build lowers a validated AST program into an IR module: externs become
// declarations with no body, and the one defined function is lowered
// per-statement into basic blocks of SSA instructions (spec.md §4.A).
// prog must already have passed semantic analysis: Build trusts that
// every call site is arity/type-checked and every variable reference
// resolves.
func Build(prog *ast.Program) (*Module, error) {
	mod := &Module{}

	for _, ext := range prog.Externs {
		params := make([]Param, len(ext.ParamTypes))
		for i, t := range ext.ParamTypes {
			params[i] = Param{Name: fmt.Sprintf("arg%d", i), Type: mapType(t)}
		}
		mod.Functions = append(mod.Functions, &Function{
			Name: ext.Name, Extern: true, ReturnType: mapType(ext.ReturnType), Params: params,
		})
	}

	astFn := prog.Function
	params := make([]Param, len(astFn.Params))
	for i, p := range astFn.Params {
		params[i] = Param{Name: p.Name, Type: mapType(p.Type)}
	}
	fn := NewFunction(astFn.Name, mapType(astFn.ReturnType), params)
	mod.Functions = append(mod.Functions, fn)

	b := &builder{fn: fn, module: mod, retBlock: invalidBlockID, retSlot: invalidInstID}
	b.entry = fn.NewBlock("entry")
	b.current = b.entry
	b.pushScope()

	if fn.ReturnType != TypeVoid {
		b.retSlot = fn.Emit(b.entry, &Instruction{Op: OpAlloca, Type: TypePtr, AllocatedType: fn.ReturnType})
	}

	for i, p := range astFn.Params {
		slot := fn.Emit(b.entry, &Instruction{Op: OpAlloca, Type: TypePtr, AllocatedType: params[i].Type})
		fn.Emit(b.entry, &Instruction{Op: OpStore, Operands: []Operand{ArgOperand(i), ValueOperand(slot)}})
		b.define(p.Name, slot)
	}

	if err := b.lowerStmt(astFn.Body); err != nil {
		return nil, err
	}

	if !blockTerminated(fn, b.current) {
		b.emitJump(b.ensureRetBlock())
	}
	b.finishReturnBlock()

	groupAllocasAtTop(fn)
	pruneDeadBlocks(fn)

	return mod, nil
}

func (b *builder) pushScope() { b.scopes = append(b.scopes, make(map[string]InstID)) }
func (b *builder) popScope()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) define(name string, id InstID) {
	b.scopes[len(b.scopes)-1][name] = id
}

func (b *builder) resolve(name string) InstID {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if id, ok := b.scopes[i][name]; ok {
			return id
		}
	}
	return invalidInstID
}

func (b *builder) newBlock(kind string) BlockID {
	b.blockSeq++
	return b.fn.NewBlock(fmt.Sprintf("%s%d", kind, b.blockSeq))
}

func (b *builder) ensureRetBlock() BlockID {
	if b.retBlock == invalidBlockID {
		b.retBlock = b.fn.NewBlock("ret")
	}
	return b.retBlock
}

func (b *builder) finishReturnBlock() {
	if b.retBlock == invalidBlockID {
		return
	}
	if b.fn.ReturnType != TypeVoid {
		loadID := b.fn.Emit(b.retBlock, &Instruction{Op: OpLoad, Type: b.fn.ReturnType, Operands: []Operand{ValueOperand(b.retSlot)}})
		b.fn.Emit(b.retBlock, &Instruction{Op: OpRet, Operands: []Operand{ValueOperand(loadID)}})
	} else {
		b.fn.Emit(b.retBlock, &Instruction{Op: OpRet})
	}
}

func (b *builder) emitJump(target BlockID) {
	b.fn.Emit(b.current, &Instruction{Op: OpBr, True: target})
}

func (b *builder) emitCondBr(cond Operand, trueB, falseB BlockID) {
	b.fn.Emit(b.current, &Instruction{Op: OpBr, Operands: []Operand{cond}, True: trueB, False: falseB})
}

func (b *builder) jumpToIfNotTerminated(target BlockID) {
	if !blockTerminated(b.fn, b.current) {
		b.emitJump(target)
	}
}

func blockTerminated(fn *Function, id BlockID) bool {
	blk := fn.Block(id)
	if len(blk.Insts) == 0 {
		return false
	}
	last := fn.Inst(blk.Insts[len(blk.Insts)-1])
	return last != nil && last.Op.IsTerminator()
}

func (b *builder) lowerStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.BlockStmt:
		b.pushScope()
		for _, stmt := range n.Statements {
			if err := b.lowerStmt(stmt); err != nil {
				b.popScope()
				return err
			}
		}
		b.popScope()
		return nil
	case *ast.DeclStmt:
		return b.lowerDecl(n)
	case *ast.AssignStmt:
		return b.lowerAssign(n)
	case *ast.CallStmt:
		_, err := b.lowerCall(n.Callee, n.Args)
		return err
	case *ast.IfStmt:
		return b.lowerIf(n)
	case *ast.WhileStmt:
		return b.lowerWhile(n)
	case *ast.ReturnStmt:
		return b.lowerReturn(n)
	default:
		return errors.Errorf("%s: unknown statement node in lowering", s.NodePos())
	}
}

func (b *builder) lowerDecl(d *ast.DeclStmt) error {
	t := mapType(d.Type)
	slot := b.fn.Emit(b.entry, &Instruction{Op: OpAlloca, Type: TypePtr, AllocatedType: t})
	b.define(d.Name, slot)

	switch {
	case d.InitCall != nil:
		v, err := b.lowerCall(d.InitCall.Callee, d.InitCall.Args)
		if err != nil {
			return err
		}
		b.fn.Emit(b.current, &Instruction{Op: OpStore, Operands: []Operand{v, ValueOperand(slot)}})
	case d.InitExpr != nil:
		v, err := b.lowerExpr(d.InitExpr)
		if err != nil {
			return err
		}
		b.fn.Emit(b.current, &Instruction{Op: OpStore, Operands: []Operand{v, ValueOperand(slot)}})
	}
	return nil
}

func (b *builder) lowerAssign(a *ast.AssignStmt) error {
	slot := b.resolve(a.Name)
	if slot == invalidInstID {
		return errors.Errorf("%s: unresolved variable %q reached lowering", a.Pos, a.Name)
	}
	var v Operand
	var err error
	if a.ValueCall != nil {
		v, err = b.lowerCall(a.ValueCall.Callee, a.ValueCall.Args)
	} else {
		v, err = b.lowerExpr(a.ValueExpr)
	}
	if err != nil {
		return err
	}
	b.fn.Emit(b.current, &Instruction{Op: OpStore, Operands: []Operand{v, ValueOperand(slot)}})
	return nil
}

func (b *builder) lowerCall(callee string, args []ast.Expr) (Operand, error) {
	sig := b.module.Lookup(callee)
	if sig == nil {
		return Operand{}, errors.Errorf("unresolved callee %q reached lowering", callee)
	}
	ops := make([]Operand, 0, len(args))
	for _, a := range args {
		v, err := b.lowerExpr(a)
		if err != nil {
			return Operand{}, err
		}
		ops = append(ops, v)
	}
	id := b.fn.Emit(b.current, &Instruction{Op: OpCall, Type: sig.ReturnType, Callee: callee, Operands: ops})
	return ValueOperand(id), nil
}

func (b *builder) lowerIf(s *ast.IfStmt) error {
	cond, err := b.lowerCond(s.Cond)
	if err != nil {
		return err
	}

	thenBlock := b.newBlock("then")
	joinBlock := b.newBlock("join")
	elseBlock := joinBlock
	if s.Else != nil {
		elseBlock = b.newBlock("else")
	}
	b.emitCondBr(cond, thenBlock, elseBlock)

	b.current = thenBlock
	if err := b.lowerStmt(s.Then); err != nil {
		return err
	}
	b.jumpToIfNotTerminated(joinBlock)

	if s.Else != nil {
		b.current = elseBlock
		if err := b.lowerStmt(s.Else); err != nil {
			return err
		}
		b.jumpToIfNotTerminated(joinBlock)
	}

	b.current = joinBlock
	return nil
}

func (b *builder) lowerWhile(s *ast.WhileStmt) error {
	header := b.newBlock("header")
	body := b.newBlock("body")
	exit := b.newBlock("exit")

	b.emitJump(header)

	b.current = header
	cond, err := b.lowerCond(s.Cond)
	if err != nil {
		return err
	}
	b.emitCondBr(cond, body, exit)

	b.current = body
	if err := b.lowerStmt(s.Body); err != nil {
		return err
	}
	b.jumpToIfNotTerminated(header)

	b.current = exit
	return nil
}

func (b *builder) lowerReturn(s *ast.ReturnStmt) error {
	retBlock := b.ensureRetBlock()
	if s.Value != nil {
		v, err := b.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		b.fn.Emit(b.current, &Instruction{Op: OpStore, Operands: []Operand{v, ValueOperand(b.retSlot)}})
	}
	b.emitJump(retBlock)
	return nil
}

// lowerCond lowers a condition expression to an operand that is always
// the result of an ICmp, synthesizing `icmp ne cond, 0` when the source
// expression is not itself a comparison — mirroring C's "any scalar is
// truthy" rule for `if`/`while` conditions used as a bare expression.
func (b *builder) lowerCond(e ast.Expr) (Operand, error) {
	if be, ok := e.(*ast.BinaryExpr); ok && be.Op.IsComparison() {
		return b.lowerExpr(e)
	}
	v, err := b.lowerExpr(e)
	if err != nil {
		return Operand{}, err
	}
	id := b.fn.Emit(b.current, &Instruction{Op: OpICmp, Type: TypeI32, Pred: PredNE, Operands: []Operand{v, ConstOperand(0)}})
	return ValueOperand(id), nil
}

func (b *builder) lowerExpr(e ast.Expr) (Operand, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return ConstOperand(n.Value), nil
	case *ast.VarRef:
		slot := b.resolve(n.Name)
		if slot == invalidInstID {
			return Operand{}, errors.Errorf("%s: unresolved variable %q reached lowering", n.Pos, n.Name)
		}
		allocaInst := b.fn.Inst(slot)
		id := b.fn.Emit(b.current, &Instruction{Op: OpLoad, Type: allocaInst.AllocatedType, Operands: []Operand{ValueOperand(slot)}})
		return ValueOperand(id), nil
	case *ast.UnaryExpr:
		v, err := b.lowerExpr(n.Value)
		if err != nil {
			return Operand{}, err
		}
		id := b.fn.Emit(b.current, &Instruction{Op: OpNeg, Type: TypeI32, Operands: []Operand{v}})
		return ValueOperand(id), nil
	case *ast.BinaryExpr:
		left, err := b.lowerExpr(n.Left)
		if err != nil {
			return Operand{}, err
		}
		right, err := b.lowerExpr(n.Right)
		if err != nil {
			return Operand{}, err
		}
		if n.Op.IsComparison() {
			pred, ok := comparisonPreds[n.Op]
			if !ok {
				return Operand{}, errors.Errorf("%s: unknown comparison operator", n.Pos)
			}
			id := b.fn.Emit(b.current, &Instruction{Op: OpICmp, Type: TypeI32, Pred: pred, Operands: []Operand{left, right}})
			return ValueOperand(id), nil
		}
		op, ok := arithOpcodes[n.Op]
		if !ok {
			return Operand{}, errors.Errorf("%s: unknown arithmetic operator", n.Pos)
		}
		id := b.fn.Emit(b.current, &Instruction{Op: op, Type: TypeI32, Operands: []Operand{left, right}})
		return ValueOperand(id), nil
	default:
		return Operand{}, errors.Errorf("%s: unknown expression node in lowering", e.NodePos())
	}
}

// groupAllocasAtTop stable-partitions the entry block so every Alloca
// precedes every other instruction, satisfying the invariant that all
// slots are declared at the top of the entry block regardless of where
// in the source the corresponding declaration appeared.
func groupAllocasAtTop(fn *Function) {
	entry := fn.Block(BlockID(0)) // entry is always block 0
	var allocas, rest []InstID
	for _, id := range entry.Insts {
		inst := fn.Inst(id)
		if inst != nil && inst.Op == OpAlloca {
			allocas = append(allocas, id)
		} else {
			rest = append(rest, id)
		}
	}
	entry.Insts = append(allocas, rest...)
}

// pruneDeadBlocks removes blocks (other than entry) with zero
// predecessors, iterating to a fixpoint since removing one unreachable
// block can orphan another that only it pointed to.
func pruneDeadBlocks(fn *Function) {
	for {
		preds := computePreds(fn)
		changed := false
		for _, blk := range fn.Blocks {
			if !blk.Live || blk.ID == 0 {
				continue
			}
			if len(preds[blk.ID]) == 0 {
				blk.Live = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	preds := computePreds(fn)
	for _, blk := range fn.Blocks {
		if blk.Live {
			blk.Preds = preds[blk.ID]
		}
	}
}

func computePreds(fn *Function) map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID)
	for _, blk := range fn.Blocks {
		if !blk.Live || len(blk.Insts) == 0 {
			continue
		}
		last := fn.Inst(blk.Insts[len(blk.Insts)-1])
		if last == nil || last.Op != OpBr {
			continue
		}
		if len(last.Operands) > 0 {
			preds[last.True] = append(preds[last.True], blk.ID)
			preds[last.False] = append(preds[last.False], blk.ID)
		} else {
			preds[last.True] = append(preds[last.True], blk.ID)
		}
	}
	return preds
}
