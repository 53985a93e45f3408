package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// packedSwitchCompareLimit is the largest number of cases lowered to a chain
// of compares rather than a jump table.
const packedSwitchCompareLimit = 6

// VisitGoto implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitGoto(instr *ir.Instruction) {
	v.jumpTo(instr.Block().Succs()[0])
}

// VisitReturn implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitReturn(*ir.Instruction) { v.generateFrameExit() }

// VisitReturnVoid implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitReturnVoid(*ir.Instruction) { v.generateFrameExit() }

// VisitExit implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitExit(*ir.Instruction) {}

// VisitThrow implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitThrow(instr *ir.Instruction) {
	v.invokeRuntime(runtime.QuickDeliverException, instr, nil)
}

// VisitPackedSwitch implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitPackedSwitch(instr *ir.Instruction) {
	start, n := instr.PackedSwitchData()
	succs := instr.Block().Succs()
	cases, def := succs[:n], succs[n]
	value := reg(v.summary(instr).InAt(0))

	// at = value - start, the index of the case.
	v.addConst(regAT, value, -int64(start))
	if n <= packedSwitchCompareLimit {
		for i, blk := range cases {
			if i > 0 {
				v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regAT, -1, regAT)
			}
			v.beqz(regAT, v.blockLabel(blk))
		}
		v.jumpTo(def)
		return
	}

	if fitsInt16(int64(n)) {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, regAT, int64(n), regTMP)
	} else {
		v.loadConst(regTMP, int32(n))
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, regAT, regTMP, regTMP)
	}
	v.beqz(regTMP, v.blockLabel(def))

	// The table follows the dispatch sequence and holds the offsets of the
	// cases from the return address of the nal.
	//
	//	nal
	//	sll   at, at, 2
	//	addu  at, at, ra
	//	lw    at, 20(at)
	//	addu  at, at, ra
	//	jr    at
	//	nop
	anchor := v.asm.CompileStandAlone(asm_mips32.NAL)
	v.asm.CompileRegisterAndConstToRegister(asm_mips32.SLL, regAT, 2, regAT)
	v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regAT, regRA, regAT)
	v.asm.CompileMemoryToRegister(asm_mips32.LW, regAT, 20, regAT)
	v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regAT, regRA, regAT)
	v.asm.CompileJumpToRegister(asm_mips32.JR, regAT)
	v.nop()
	table := v.asm.CompileData(make([]byte, 4*n))
	v.jumpTables = append(v.jumpTables, jumpTable{table: table, anchor: anchor, targets: cases})
}

// VisitSuspendCheck implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitSuspendCheck(instr *ir.Instruction) {
	if blk := instr.Block(); v.cg.Options().JIT && blk.IsLoopHeader() {
		v.cg.RecordOSREntry(instr, v.here())
	}
	sp := v.addSlowPath(&suspendCheckSlowPath{slowPathCode: v.newSlowPathCode(instr)})
	v.asm.CompileMemoryToRegister(asm_mips32.LHU, regTR, runtime.ThreadFlagsOffset, regAT)
	v.branchToSlowPath(asm_mips32.BNE, regAT, sp)
	v.bindExit(sp)
}

// VisitDeoptimize implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitDeoptimize(instr *ir.Instruction) {
	if cond := instr.InputAt(0); cond.IsConstant() && cond.Int64FromConstant() == 0 {
		return
	}
	sp := v.newDeoptimizationSlowPath(instr)
	v.branchOnCondition(instr, false, enter(sp))
}

// canFaultOn returns true if the first memory access of user dereferences
// the value checked by nullCheck, at an offset inside the null page.
func canFaultOn(user, nullCheck *ir.Instruction) bool {
	if user == nil || len(user.Inputs()) == 0 || user.InputAt(0) != nullCheck {
		return false
	}
	switch user.Opcode() {
	case ir.OpInstanceFieldGet, ir.OpInstanceFieldSet:
		return runtime.CanDoImplicitNullCheckOn(int64(user.FieldData().Offset))
	case ir.OpArrayLength, ir.OpInvokeVirtual, ir.OpInvokeInterface:
		return true
	}
	return false
}

// maybeRecordImplicitNullCheck records n, the first memory access of
// instr, as the implicit null check of its object input.
func (m *machine) maybeRecordImplicitNullCheck(instr *ir.Instruction, n asm.Node) {
	if !m.cg.Options().ImplicitNullChecks {
		return
	}
	nc := instr.InputAt(0)
	if nc.Opcode() == ir.OpNullCheck && nc.NextDisregardingMoves() == instr && canFaultOn(instr, nc) {
		m.cg.RecordImplicitNullCheck(nc, backend.At(n, 0))
	}
}

// VisitNullCheck implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNullCheck(instr *ir.Instruction) {
	obj := reg(v.summary(instr).InAt(0))
	if !v.cg.Options().ImplicitNullChecks {
		v.branchToSlowPath(asm_mips32.BEQ, obj, v.newNullCheckSlowPath(instr))
		return
	}
	if canFaultOn(instr.NextDisregardingMoves(), instr) {
		// Recorded by the user.
		return
	}
	n := v.asm.CompileMemoryToRegister(asm_mips32.LW, obj, 0, regZero)
	v.cg.RecordImplicitNullCheck(instr, backend.At(n, 0))
}

// VisitBoundsCheck implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitBoundsCheck(instr *ir.Instruction) {
	s := v.summary(instr)
	sp := v.newBoundsCheckSlowPath(instr)
	// A negative index is a large unsigned one.
	v.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, reg(s.InAt(0)), reg(s.InAt(1)), regAT)
	v.branchToSlowPath(asm_mips32.BEQ, regAT, sp)
}

// VisitDivZeroCheck implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitDivZeroCheck(instr *ir.Instruction) {
	in := v.summary(instr).InAt(0)
	if in.IsConstant() {
		if in.Constant().IsZeroBitPattern() {
			v.b(enter(v.newDivZeroCheckSlowPath(instr)))
		}
		return
	}
	sp := v.newDivZeroCheckSlowPath(instr)
	if instr.InputAt(0).Type().Kind() == ir.TypeInt64 {
		v.asm.CompileTwoRegistersToRegister(asm_mips32.OR, lowReg(in), highReg(in), regAT)
		v.branchToSlowPath(asm_mips32.BEQ, regAT, sp)
		return
	}
	v.branchToSlowPath(asm_mips32.BEQ, reg(in), sp)
}

// VisitMemoryBarrier implements backend.InstructionVisitor.
//
// MIPS32r2 only has the full barrier.
func (v *instructionVisitor) VisitMemoryBarrier(*ir.Instruction) {
	v.asm.CompileStandAlone(asm_mips32.SYNC)
}

// VisitMonitorOperation implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitMonitorOperation(instr *ir.Instruction) {
	e := runtime.QuickUnlockObject
	if instr.IsMonitorEnter() {
		e = runtime.QuickLockObject
	}
	v.invokeRuntime(e, instr, nil)
}
