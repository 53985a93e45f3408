package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

func (m *machine) readBarrier() backend.ReadBarrierKind { return m.cg.Options().ReadBarrier }

// emitsReadBarrier returns true if loading a reference needs a read barrier.
func (m *machine) emitsReadBarrier() bool { return m.readBarrier() != backend.ReadBarrierNone }

// readBarrierCallKind returns the call kind of an instruction loading a
// reference with a read barrier: the slow path flavor calls the runtime.
func (m *machine) readBarrierCallKind() backend.CallKind {
	if m.readBarrier() == backend.ReadBarrierBakerSlowPath {
		return backend.CallKindOnSlowPath
	}
	return backend.CallKindNoCall
}

// loadReferenceWithBakerBarrier loads the reference at base+off into out,
// where base+off points into obj. The lock word of obj is loaded first, and
// the reference is marked if obj is gray. It returns the lock word load,
// which is the first access to obj.
//
//	lw    t9, 4(obj)
//	sync
//	lw    out, off(base)
//	lui   at, 0x1000
//	and   at, t9, at
//	<mark out if at != 0>
func (m *machine) loadReferenceWithBakerBarrier(instr *ir.Instruction, obj, base asm.Register, off int64, out int) asm.Node {
	first := m.asm.CompileMemoryToRegister(asm_mips32.LW, obj, runtime.ObjectLockWordOffset, regT9)
	// Orders the reference load after the lock word load.
	m.asm.CompileStandAlone(asm_mips32.SYNC)
	m.load(asm_mips32.LW, base, off, core(out))
	m.asm.CompileConstToRegister(asm_mips32.LUI, runtime.LockWordGrayBit>>16, regAT)
	m.asm.CompileTwoRegistersToRegister(asm_mips32.AND, regT9, regAT, regAT)
	m.markIfNeeded(instr, out)
	return first
}

// loadGcRoot emits load, which loads a GC root into out, followed by the
// read barrier marking it while the GC is marking.
func (m *machine) loadGcRoot(instr *ir.Instruction, out int, load func()) {
	load()
	if !m.emitsReadBarrier() {
		return
	}
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regTR, runtime.ThreadIsGcMarkingOffset, regAT)
	m.markIfNeeded(instr, out)
}

// markIfNeeded marks the reference in out if at is not zero.
func (m *machine) markIfNeeded(instr *ir.Instruction, out int) {
	switch m.readBarrier() {
	case backend.ReadBarrierBakerThunks:
		done := &label{}
		m.beqz(regAT, done)
		m.thunkFor(out).target(m.asm.CompileJump(asm_mips32.BAL))
		m.nop()
		m.bind(done)
	case backend.ReadBarrierBakerSlowPath:
		slowPath := m.addSlowPath(&readBarrierMarkSlowPath{slowPathCode: m.newSlowPathCode(instr), ref: out})
		m.branchToSlowPath(asm_mips32.BNE, regAT, slowPath)
		m.bindExit(slowPath)
	}
}

// thunkFor returns the label of the thunk marking r, emitted by Finalize.
func (m *machine) thunkFor(r int) *label {
	l, ok := m.thunks[r]
	if !ok {
		l = &label{}
		m.thunks[r] = l
		m.thunkRegs = append(m.thunkRegs, r)
	}
	return l
}

// Layout of the frame of a Baker thunk.
const (
	thunkFrameSize  = 160
	thunkRAOffset   = 4 * (t7 - v0 + 1)
	thunkFpuOffset  = 64
	thunkCoreOffset = 0
)

func thunkCoreSlot(r int) int64 { return int64(thunkCoreOffset + 4*(r-v0)) }
func thunkFpuSlot(r int) int64  { return int64(thunkFpuOffset + 8*(r/2)) }

// emitReadBarrierThunk emits the thunk bound to l marking the reference in
// r. The thunk preserves every register but r, as the caller does not
// expect a call.
func (m *machine) emitReadBarrierThunk(r int, l *label) {
	cfi := m.cg.CFI()
	m.bind(l)
	cfi.RememberState(m.here())
	n := m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regSP, -thunkFrameSize, regSP)
	cfi.AdjustCFAOffset(after(n), thunkFrameSize)

	for _, c := range callerSaveCore {
		m.asm.CompileRegisterToMemory(asm_mips32.SW, core(c), regSP, thunkCoreSlot(c))
	}
	m.asm.CompileRegisterToMemory(asm_mips32.SW, regRA, regSP, thunkRAOffset)
	for _, f := range callerSaveFpu {
		m.asm.CompileRegisterToMemory(asm_mips32.SDC1, fpu(f), regSP, thunkFpuSlot(f))
	}

	m.move(regA0, core(r))
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regTR, runtime.QuickReadBarrierMark.Offset(), regT9)
	m.asm.CompileJumpToRegister(asm_mips32.JALR, regT9)
	m.nop()

	savedByThunk := r >= v0 && r <= t7
	if savedByThunk {
		m.asm.CompileRegisterToMemory(asm_mips32.SW, regV0, regSP, thunkCoreSlot(r))
	} else {
		m.move(core(r), regV0)
	}

	for _, f := range callerSaveFpu {
		m.asm.CompileMemoryToRegister(asm_mips32.LDC1, regSP, thunkFpuSlot(f), fpu(f))
	}
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, thunkRAOffset, regRA)
	for _, c := range callerSaveCore {
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, thunkCoreSlot(c), core(c))
	}
	m.asm.CompileJumpToRegister(asm_mips32.JR, regRA)
	m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regSP, thunkFrameSize, regSP)
	pos := m.here()
	cfi.AdjustCFAOffset(pos, -thunkFrameSize)
	cfi.RestoreState(pos)
}
