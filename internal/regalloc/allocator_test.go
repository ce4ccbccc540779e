package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehoboth23/minic/internal/ir"
)

// straightLineFive builds int f(a,b,c,d,e){ t1=a+1; ...; return t1+t2+t3+t4+t5; }
// directly against the IR arena, the way the teacher's builder_test.go
// constructs functions by hand rather than always routing through the
// parser.
func straightLineFive(t *testing.T) *ir.Function {
	t.Helper()
	fn := ir.NewFunction("f", ir.TypeI32, []ir.Param{
		{Name: "a", Type: ir.TypeI32}, {Name: "b", Type: ir.TypeI32},
		{Name: "c", Type: ir.TypeI32}, {Name: "d", Type: ir.TypeI32},
		{Name: "e", Type: ir.TypeI32},
	})
	blk := fn.NewBlock("entry")

	var temps []ir.InstID
	for i := 0; i < 5; i++ {
		id := fn.Emit(blk, &ir.Instruction{
			Op: ir.OpAdd, Type: ir.TypeI32,
			Operands: []ir.Operand{ir.ArgOperand(i), ir.ConstOperand(1)},
		})
		temps = append(temps, id)
	}

	sum := temps[0]
	for i := 1; i < len(temps); i++ {
		sum = fn.Emit(blk, &ir.Instruction{
			Op: ir.OpAdd, Type: ir.TypeI32,
			Operands: []ir.Operand{ir.ValueOperand(sum), ir.ValueOperand(temps[i])},
		})
	}
	fn.Emit(blk, &ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{ir.ValueOperand(sum)}})

	return fn
}

func TestAllocateAssignsEveryResultRegOrSpill(t *testing.T) {
	fn := straightLineFive(t)
	alloc := Allocate(fn)

	for _, inst := range fn.AllInsts() {
		if inst.Op == ir.OpAlloca || !inst.HasResult() {
			continue
		}
		reg, ok := alloc[inst.ID]
		require.True(t, ok, "every value-producing instruction must be assigned, even if SPILL")
		if reg != SPILL {
			assert.Contains(t, []Reg{R1, R2, R3}, reg)
		}
	}
}

func TestAllocateSpillsUnderPressure(t *testing.T) {
	fn := straightLineFive(t)
	alloc := Allocate(fn)

	spilled := 0
	for _, inst := range fn.AllInsts() {
		if alloc[inst.ID] == SPILL {
			spilled++
		}
	}
	assert.GreaterOrEqual(t, spilled, 1, "five simultaneously live temporaries must force at least one spill with only three pool registers")
}

func TestAllocateNeverAssignsSameRegisterToInterferingValues(t *testing.T) {
	fn := straightLineFive(t)
	alloc := Allocate(fn)

	for _, blk := range fn.Blocks {
		if !blk.Live {
			continue
		}
		live := computeLiveness(fn, blk)
		for _, id := range live.Order {
			inst := fn.Inst(id)
			for i := range inst.Operands {
				for j := i + 1; j < len(inst.Operands); j++ {
					a, b := inst.Operands[i], inst.Operands[j]
					if a.Kind != ir.OperandValue || b.Kind != ir.OperandValue {
						continue
					}
					ra, aok := alloc[a.Value]
					rb, bok := alloc[b.Value]
					if !aok || !bok || ra == SPILL || rb == SPILL {
						continue
					}
					if a.Value != b.Value {
						assert.NotEqual(t, ra, rb, "two distinct simultaneously-live operands must not share a pool register")
					}
				}
			}
		}
	}
}
