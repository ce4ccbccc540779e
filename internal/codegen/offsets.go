package codegen

import (
	"github.com/rehoboth23/minic/internal/ir"
	"github.com/rehoboth23/minic/internal/regalloc"
)

// OffsetMap maps a stack-resident value — an Alloca slot, an incoming
// argument's backing slot, or a spilled value-producing instruction — to
// its signed byte displacement from %ebp.
type OffsetMap map[ir.InstID]int

// computeOffsets assigns every stack location a function's body needs
// (spec.md §4.D "Offset assignment"): one word below %ebp per local
// Alloca, the caller-supplied words above %ebp for each parameter slot,
// and one word below %ebp for any spilled value that never becomes the
// direct source of a Store (an intermediate temporary with no
// user-declared variable to borrow a slot from). localMem is the total
// frame size to reserve in the prologue.
func computeOffsets(fn *ir.Function, alloc regalloc.Allocation) (OffsetMap, int) {
	offsets := make(OffsetMap)
	offset := 0

	argSlots := make(map[ir.InstID]int)
	for _, inst := range fn.AllInsts() {
		if inst.Op != ir.OpStore || inst.Operands[0].Kind != ir.OperandArg {
			continue
		}
		if slot, ok := slotOperand(inst.Operands[1]); ok {
			argSlots[slot] = inst.Operands[0].ArgIdx
		}
	}

	for _, inst := range fn.AllInsts() {
		if inst.Op != ir.OpAlloca {
			continue
		}
		if argIdx, ok := argSlots[inst.ID]; ok {
			offsets[inst.ID] = 8 + 4*argIdx
			continue
		}
		offset -= 4
		offsets[inst.ID] = offset
	}

	for _, inst := range fn.AllInsts() {
		if inst.Op == ir.OpAlloca || !inst.HasResult() || alloc[inst.ID] != regalloc.SPILL {
			continue
		}
		if inst.Op == ir.OpLoad {
			if slot, ok := slotOperand(inst.Operands[0]); ok {
				offsets[inst.ID] = offsets[slot]
				continue
			}
		}
		if slot, ok := directStoreTarget(fn, inst.ID); ok {
			offsets[inst.ID] = offsets[slot]
			continue
		}
		offset -= 4
		offsets[inst.ID] = offset
	}

	return offsets, -offset
}

// directStoreTarget reports the slot id is stored into, when id is the
// direct source operand of some Store in the function — the case
// spec.md §4.D describes literally: a spilled arithmetic result that
// becomes a named variable's value reuses that variable's word rather
// than needing a spill slot of its own.
func directStoreTarget(fn *ir.Function, id ir.InstID) (ir.InstID, bool) {
	for _, use := range fn.Uses(id) {
		if use.Op != ir.OpStore {
			continue
		}
		if use.Operands[0].Kind == ir.OperandValue && use.Operands[0].Value == id {
			if slot, ok := slotOperand(use.Operands[1]); ok {
				return slot, true
			}
		}
	}
	return 0, false
}

func slotOperand(op ir.Operand) (ir.InstID, bool) {
	if op.Kind != ir.OperandValue {
		return 0, false
	}
	return op.Value, true
}
