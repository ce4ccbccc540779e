package ir

// applyDCE removes every instruction in blk whose result has no
// remaining uses, excluding the opcodes that are never dead by
// definition (Store, Alloca, Br, Call, Ret — all side-effecting or
// structural). It iterates within the block until a sweep removes
// nothing, since erasing one dead instruction can make one of its own
// operands dead in turn; cross-block effects are left to the outer
// fixpoint.
func applyDCE(fn *Function, blk *BasicBlock) bool {
	changed := false
	for {
		removed := false
		for _, id := range append([]InstID(nil), blk.Insts...) {
			inst := fn.Inst(id)
			if inst == nil {
				continue
			}
			switch inst.Op {
			case OpStore, OpAlloca, OpBr, OpCall, OpRet:
				continue
			}
			if !inst.HasResult() {
				continue
			}
			if len(fn.Uses(id)) == 0 {
				fn.Erase(id)
				changed = true
				removed = true
			}
		}
		if !removed {
			break
		}
	}
	return changed
}
