package mips32

import (
	"math/bits"

	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// The frame of a method looks like:
//
//	            (high address)
//	          +-----------------+
//	          |  caller's frame |
//	          |      arg N      |
//	          |     .......     |
//	          |      arg 0      |
//	          |  callee method  |  <- caller's SP
//	          +-----------------+
//	          |       ra        |
//	          | core callee-save|
//	          |   ...........   |
//	          | fpu callee-save |
//	          |   ...........   |
//	          |   home slot M   |
//	          |   ...........   |
//	          |   home slot 0   |  <- HomeAreaOffset
//	          | slow path saves |  <- SlowPathSaveAreaOffset
//	          |  outgoing args  |
//	          |  ArtMethod*     |
//	   SP---> +-----------------+
//	             (low address)
//
// The slow path save area has a fixed slot for every caller-save register.
const (
	saveAreaCoreSize = 4 * 14
	saveAreaSize     = saveAreaCoreSize + 8*10
	stackAlignment   = 16
)

func alignUp(v, align int) int { return (v + align - 1) &^ (align - 1) }

// saveSlotOfCore returns the offset in the slow path save area of a caller-save core register.
func saveSlotOfCore(r int) int { return 4 * (r - v0) }

// saveSlotOfFpu returns the offset in the slow path save area of a caller-save FPU register.
func saveSlotOfFpu(r int) int { return saveAreaCoreSize + 8*(r/2) }

// ComputeFrame implements backend.Machine.
func (m *machine) ComputeFrame(req backend.FrameRequest) (f backend.Frame) {
	off := req.OutgoingArgsSize
	if off < 4 {
		off = 4
	}
	if req.NeedsSlowPathSaveArea {
		off = alignUp(off, 8)
		f.SlowPathSaveAreaOffset = off
		off += saveAreaSize
	}
	off = alignUp(off, 8)
	f.HomeAreaOffset = off
	off += req.HomeAreaSize

	used := req.UsedRegisters.Intersect(calleeSaves)
	f.CoreSpillMask = used.Core | 1<<ra
	f.FpuSpillMask = used.Fpu
	nc, nf := bits.OnesCount32(f.CoreSpillMask), bits.OnesCount32(f.FpuSpillMask)
	size := off + 4*nc + 8*nf
	if nf > 0 {
		// FPU slots are 8-byte aligned below the core slots.
		size += 4
	}
	f.Size = alignUp(size, stackAlignment)
	return
}

type spillSlot struct {
	r   int
	off int64
}

// coreSpillSlots returns the save slots of the core registers, ra first.
func coreSpillSlots(f backend.Frame) (ret []spillSlot) {
	off := int64(f.Size)
	for r := 31; r >= 0; r-- {
		if f.CoreSpillMask&(1<<r) != 0 {
			off -= 4
			ret = append(ret, spillSlot{r: r, off: off})
		}
	}
	return
}

// fpuSpillSlots returns the save slots of the FPU registers.
func fpuSpillSlots(f backend.Frame) (ret []spillSlot) {
	off := int64(f.Size-4*bits.OnesCount32(f.CoreSpillMask)) &^ 7
	for r := 31; r >= 0; r-- {
		if f.FpuSpillMask&(1<<r) != 0 {
			off -= 8
			ret = append(ret, spillSlot{r: r, off: off})
		}
	}
	return
}

// GenerateFrameEntry implements backend.Machine.
func (m *machine) GenerateFrameEntry() {
	f := m.cg.Frame()
	cfi := m.cg.CFI()
	size := int64(f.Size)
	m.methodEntry = m.asm.CompileLabel()

	if m.cg.Options().ImplicitStackOverflowChecks && size < runtime.StackOverflowReservedBytes {
		check := m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, -runtime.StackOverflowReservedBytes, regZero)
		m.cg.RecordPcInfo(nil, backend.At(check, 0), nil)
	} else {
		slowPath := m.addSlowPath(&stackOverflowSlowPath{slowPathCode: m.newFatalSlowPathCode(nil)})
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regTR, runtime.ThreadStackEndOffset, regAT)
		m.addConst(regTMP, regSP, -size)
		m.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, regTMP, regAT, regAT)
		m.branchToSlowPath(asm_mips32.BNE, regAT, slowPath)
	}

	adjust := m.adjustSP(-size)
	cfi.AdjustCFAOffset(after(adjust), int(size))

	for _, s := range coreSpillSlots(f) {
		n := m.store(asm_mips32.SW, core(s.r), regSP, s.off)
		cfi.RelOffset(after(n), dwarfCore(s.r), int(s.off))
	}
	for _, s := range fpuSpillSlots(f) {
		n := m.store(asm_mips32.SDC1, fpu(s.r), regSP, s.off)
		cfi.RelOffset(after(n), dwarfFpu(s.r), int(s.off))
	}
	m.asm.CompileRegisterToMemory(asm_mips32.SW, regA0, regSP, 0)
}

// adjustSP adds delta to sp and returns the instruction doing it.
func (m *machine) adjustSP(delta int64) asm.Node {
	if fitsInt16(delta) {
		return m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regSP, delta, regSP)
	}
	m.loadConst(regAT, int32(delta))
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regSP, regAT, regSP)
	return m.asm.Current
}

// generateFrameExit restores the callee-save registers and returns.
func (m *machine) generateFrameExit() {
	f := m.cg.Frame()
	cfi := m.cg.CFI()
	size := int64(f.Size)
	cfi.RememberState(m.here())

	for _, s := range fpuSpillSlots(f) {
		n := m.load(asm_mips32.LDC1, regSP, s.off, fpu(s.r))
		cfi.Restore(after(n), dwarfFpu(s.r))
	}
	for _, s := range coreSpillSlots(f) {
		n := m.load(asm_mips32.LW, regSP, s.off, core(s.r))
		cfi.Restore(after(n), dwarfCore(s.r))
	}

	if fitsInt16(size) {
		m.asm.CompileJumpToRegister(asm_mips32.JR, regRA)
		m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regSP, size, regSP)
	} else {
		m.loadConst(regAT, int32(size))
		m.asm.CompileJumpToRegister(asm_mips32.JR, regRA)
		m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regSP, regAT, regSP)
	}
	pos := m.here()
	cfi.AdjustCFAOffset(pos, -int(size))
	cfi.RestoreState(pos)
}
