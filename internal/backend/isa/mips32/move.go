package mips32

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// stackOffset returns the offset from the current SP of a stack location,
// accounting for the registers spilled by AllocateScratch.
func (m *machine) stackOffset(loc backend.Location) int64 {
	return int64(loc.StackIndex()) + m.spillDelta
}

// loadFpu loads the floating point value of typ at base+off into f.
// Doubles not known to be 8-byte aligned are loaded word by word.
func (m *machine) loadFpu(typ ir.DataType, base asm.Register, off int64, f asm.Register) asm.Node {
	switch {
	case !typ.Is64Bit():
		return m.load(asm_mips32.LWC1, base, off, f)
	case off%8 == 0:
		return m.load(asm_mips32.LDC1, base, off, f)
	}
	first := m.load(asm_mips32.LW, base, off, regT9)
	m.asm.CompileRegisterToRegister(asm_mips32.MTC1, regT9, f)
	m.load(asm_mips32.LW, base, off+4, regT9)
	m.asm.CompileRegisterToRegister(asm_mips32.MTHC1, regT9, f)
	return first
}

// storeFpu is the store counterpart of loadFpu.
func (m *machine) storeFpu(typ ir.DataType, f, base asm.Register, off int64) asm.Node {
	switch {
	case !typ.Is64Bit():
		return m.store(asm_mips32.SWC1, f, base, off)
	case off%8 == 0:
		return m.store(asm_mips32.SDC1, f, base, off)
	}
	m.asm.CompileRegisterToRegister(asm_mips32.MFC1, f, regT9)
	first := m.store(asm_mips32.SW, regT9, base, off)
	m.asm.CompileRegisterToRegister(asm_mips32.MFHC1, f, regT9)
	m.store(asm_mips32.SW, regT9, base, off+4)
	return first
}

// loadFpuConst loads the bits of a floating point constant into f.
func (m *machine) loadFpuConst(typ ir.DataType, bits uint64, f asm.Register) {
	lo := regZero
	if l := int32(uint32(bits)); l != 0 {
		m.loadConst(regTMP, l)
		lo = regTMP
	}
	m.asm.CompileRegisterToRegister(asm_mips32.MTC1, lo, f)
	if typ.Is64Bit() {
		hi := regZero
		if h := int32(uint32(bits >> 32)); h != 0 {
			m.loadConst(regTMP, h)
			hi = regTMP
		}
		m.asm.CompileRegisterToRegister(asm_mips32.MTHC1, hi, f)
	}
}

// EmitMove implements backend.MoveEmitter.
func (m *machine) EmitMove(src, dst backend.Location, typ ir.DataType) {
	switch {
	case dst.IsRegister():
		m.moveToCore(src, reg(dst))
	case dst.IsRegisterPair():
		m.moveToPair(src, lowReg(dst), highReg(dst))
	case dst.IsFpuRegister():
		m.moveToFpu(src, reg(dst), typ)
	case dst.IsStackSlot():
		off := m.stackOffset(dst)
		switch {
		case src.IsRegister():
			m.store(asm_mips32.SW, reg(src), regSP, off)
		case src.IsFpuRegister():
			m.storeFpu(ir.TypeFloat32, reg(src), regSP, off)
		default:
			m.moveToCore(src, regTMP)
			m.store(asm_mips32.SW, regTMP, regSP, off)
		}
	case dst.IsDoubleStackSlot():
		off := m.stackOffset(dst)
		switch {
		case src.IsRegisterPair():
			m.store(asm_mips32.SW, lowReg(src), regSP, off)
			m.store(asm_mips32.SW, highReg(src), regSP, off+4)
		case src.IsFpuRegister():
			m.storeFpu(ir.TypeFloat64, reg(src), regSP, off)
		case src.IsDoubleStackSlot():
			srcOff := m.stackOffset(src)
			m.load(asm_mips32.LW, regSP, srcOff, regTMP)
			m.store(asm_mips32.SW, regTMP, regSP, off)
			m.load(asm_mips32.LW, regSP, srcOff+4, regTMP)
			m.store(asm_mips32.SW, regTMP, regSP, off+4)
		case src.IsConstant():
			bits := src.Constant().ConstantBits()
			for i, word := range []int32{int32(uint32(bits)), int32(uint32(bits >> 32))} {
				r := regZero
				if word != 0 {
					m.loadConst(regTMP, word)
					r = regTMP
				}
				m.store(asm_mips32.SW, r, regSP, off+4*int64(i))
			}
		default:
			panic(fmt.Sprintf("BUG: move %s -> %s", src, dst))
		}
	default:
		panic(fmt.Sprintf("BUG: move %s -> %s", src, dst))
	}
}

func (m *machine) moveToCore(src backend.Location, dst asm.Register) {
	switch {
	case src.IsRegister():
		m.move(dst, reg(src))
	case src.IsStackSlot():
		m.load(asm_mips32.LW, regSP, m.stackOffset(src), dst)
	case src.IsConstant():
		m.loadConst(dst, int32(uint32(src.Constant().ConstantBits())))
	case src.IsFpuRegister():
		m.asm.CompileRegisterToRegister(asm_mips32.MFC1, reg(src), dst)
	default:
		panic(fmt.Sprintf("BUG: move %s to a core register", src))
	}
}

func (m *machine) moveToPair(src backend.Location, lo, hi asm.Register) {
	switch {
	case src.IsRegisterPair():
		m.move(lo, lowReg(src))
		m.move(hi, highReg(src))
	case src.IsDoubleStackSlot():
		off := m.stackOffset(src)
		m.load(asm_mips32.LW, regSP, off, lo)
		m.load(asm_mips32.LW, regSP, off+4, hi)
	case src.IsConstant():
		bits := src.Constant().ConstantBits()
		m.loadConst(lo, int32(uint32(bits)))
		m.loadConst(hi, int32(uint32(bits>>32)))
	case src.IsFpuRegister():
		m.asm.CompileRegisterToRegister(asm_mips32.MFC1, reg(src), lo)
		m.asm.CompileRegisterToRegister(asm_mips32.MFHC1, reg(src), hi)
	default:
		panic(fmt.Sprintf("BUG: move %s to a register pair", src))
	}
}

func (m *machine) moveToFpu(src backend.Location, dst asm.Register, typ ir.DataType) {
	switch {
	case src.IsFpuRegister():
		if reg(src) == dst {
			return
		}
		if typ.Is64Bit() {
			m.asm.CompileRegisterToRegister(asm_mips32.MOV_D, reg(src), dst)
		} else {
			m.asm.CompileRegisterToRegister(asm_mips32.MOV_S, reg(src), dst)
		}
	case src.IsStackSlot():
		m.loadFpu(ir.TypeFloat32, regSP, m.stackOffset(src), dst)
	case src.IsDoubleStackSlot():
		m.loadFpu(ir.TypeFloat64, regSP, m.stackOffset(src), dst)
	case src.IsConstant():
		m.loadFpuConst(typ, src.Constant().ConstantBits(), dst)
	case src.IsRegister():
		m.asm.CompileRegisterToRegister(asm_mips32.MTC1, reg(src), dst)
	case src.IsRegisterPair():
		m.asm.CompileRegisterToRegister(asm_mips32.MTC1, lowReg(src), dst)
		m.asm.CompileRegisterToRegister(asm_mips32.MTHC1, highReg(src), dst)
	default:
		panic(fmt.Sprintf("BUG: move %s to an FPU register", src))
	}
}

// CanSwap implements backend.MoveEmitter.
func (m *machine) CanSwap(x, y backend.Location) bool {
	switch {
	case x.IsConstant() || y.IsConstant() || x.IsFpuRegisterPair() || y.IsFpuRegisterPair():
		return false
	case x.IsFpuRegister() || y.IsFpuRegister():
		return !x.IsSIMDStackSlot() && !y.IsSIMDStackSlot()
	case x.IsSIMDStackSlot() || y.IsSIMDStackSlot():
		return x.IsSIMDStackSlot() && y.IsSIMDStackSlot()
	}
	return x.Is64Bit() == y.Is64Bit()
}

// EmitSwap implements backend.MoveEmitter.
func (m *machine) EmitSwap(x, y backend.Location, typ ir.DataType) {
	if y.IsRegisterKind() && !x.IsRegisterKind() {
		x, y = y, x
	}
	if y.IsFpuRegister() && !x.IsFpuRegister() {
		x, y = y, x
	}
	switch {
	case x.IsRegister() && y.IsRegister():
		m.swapCore(reg(x), reg(y))
	case x.IsRegisterPair() && y.IsRegisterPair():
		m.swapCore(lowReg(x), lowReg(y))
		m.swapCore(highReg(x), highReg(y))
	case x.IsFpuRegister() && y.IsFpuRegister():
		m.asm.CompileRegisterToRegister(asm_mips32.MOV_D, reg(x), regFTMP)
		m.asm.CompileRegisterToRegister(asm_mips32.MOV_D, reg(y), reg(x))
		m.asm.CompileRegisterToRegister(asm_mips32.MOV_D, regFTMP, reg(y))
	case x.IsFpuRegister() && y.IsRegister():
		m.asm.CompileRegisterToRegister(asm_mips32.MFC1, reg(x), regTMP)
		m.asm.CompileRegisterToRegister(asm_mips32.MTC1, reg(y), reg(x))
		m.move(reg(y), regTMP)
	case x.IsFpuRegister() && y.IsRegisterPair():
		m.asm.CompileRegisterToRegister(asm_mips32.MFC1, reg(x), regTMP)
		m.asm.CompileRegisterToRegister(asm_mips32.MFHC1, reg(x), regT9)
		m.asm.CompileRegisterToRegister(asm_mips32.MTC1, lowReg(y), reg(x))
		m.asm.CompileRegisterToRegister(asm_mips32.MTHC1, highReg(y), reg(x))
		m.move(lowReg(y), regTMP)
		m.move(highReg(y), regT9)
	case x.IsRegister() && y.IsStackSlot():
		m.swapCoreWithStack(reg(x), m.stackOffset(y))
	case x.IsRegisterPair() && y.IsDoubleStackSlot():
		off := m.stackOffset(y)
		m.swapCoreWithStack(lowReg(x), off)
		m.swapCoreWithStack(highReg(x), off+4)
	case x.IsFpuRegister() && (y.IsStackSlot() || y.IsDoubleStackSlot()):
		ftyp := ir.TypeFloat32
		if y.IsDoubleStackSlot() {
			ftyp = ir.TypeFloat64
		}
		off := m.stackOffset(y)
		m.asm.CompileRegisterToRegister(asm_mips32.MOV_D, reg(x), regFTMP)
		m.loadFpu(ftyp, regSP, off, reg(x))
		m.storeFpu(ftyp, regFTMP, regSP, off)
	case x.IsStackSlot() && y.IsStackSlot():
		m.swapStackWords(m.stackOffset(x), m.stackOffset(y))
	case x.IsDoubleStackSlot() && y.IsDoubleStackSlot():
		xo, yo := m.stackOffset(x), m.stackOffset(y)
		m.swapStackWords(xo, yo)
		m.swapStackWords(xo+4, yo+4)
	case x.IsSIMDStackSlot() && y.IsSIMDStackSlot():
		xo, yo := m.stackOffset(x), m.stackOffset(y)
		for i := int64(0); i < 16; i += 4 {
			m.swapStackWords(xo+i, yo+i)
		}
	default:
		panic(fmt.Sprintf("BUG: swap %s <-> %s", x, y))
	}
}

func (m *machine) swapCore(x, y asm.Register) {
	m.move(regTMP, x)
	m.move(x, y)
	m.move(y, regTMP)
}

func (m *machine) swapCoreWithStack(r asm.Register, off int64) {
	m.move(regTMP, r)
	m.load(asm_mips32.LW, regSP, off, r)
	m.store(asm_mips32.SW, regTMP, regSP, off)
}

func (m *machine) swapStackWords(x, y int64) {
	m.load(asm_mips32.LW, regSP, x, regTMP)
	m.load(asm_mips32.LW, regSP, y, regT9)
	m.store(asm_mips32.SW, regTMP, regSP, y)
	m.store(asm_mips32.SW, regT9, regSP, x)
}

// scratchSpillSize is the stack space pushed to spill one scratch register.
const scratchSpillSize = 8

// AllocateScratch implements backend.MoveEmitter.
//
// A caller-save register neither the moves nor the live values use is free.
// Any other register the moves leave alone is pushed below the frame first:
// a callee-save one may belong to the caller.
func (m *machine) AllocateScratch(src backend.Location, typ ir.DataType, inUse func(backend.Location) bool, live backend.RegisterSet) (backend.Location, bool) {
	var candidates []backend.Location
	switch {
	case src.IsFpuRegister() || (src.IsConstant() && typ.IsFloatingPoint()):
		for _, r := range callerSaveFpu {
			candidates = append(candidates, backend.FpuRegisterLocation(r))
		}
		for _, r := range calleeSaveFpu {
			candidates = append(candidates, backend.FpuRegisterLocation(r))
		}
	case src.Is64Bit() || (src.IsConstant() && typ.Is64Bit()):
		for _, p := range m.info.RegisterPairs {
			candidates = append(candidates, backend.RegisterPairLocation(p[0], p[1]))
		}
	default:
		for _, r := range m.info.AllocatableCore {
			candidates = append(candidates, backend.RegisterLocation(r))
		}
	}

	for _, c := range candidates {
		if !inUse(c) && !live.Overlaps(c) && !m.info.IsCalleeSave(c) {
			return c, false
		}
	}
	for _, c := range candidates {
		if inUse(c) {
			continue
		}
		m.adjustSP(-scratchSpillSize)
		m.spillDelta += scratchSpillSize
		m.cg.CFI().AdjustCFAOffset(m.here(), scratchSpillSize)
		switch {
		case c.IsFpuRegister():
			m.asm.CompileRegisterToMemory(asm_mips32.SDC1, reg(c), regSP, 0)
		case c.IsRegisterPair():
			m.asm.CompileRegisterToMemory(asm_mips32.SW, lowReg(c), regSP, 0)
			m.asm.CompileRegisterToMemory(asm_mips32.SW, highReg(c), regSP, 4)
		default:
			m.asm.CompileRegisterToMemory(asm_mips32.SW, reg(c), regSP, 0)
		}
		return c, true
	}
	panic(fmt.Sprintf("BUG: no scratch register for %s", src))
}

// FreeScratch implements backend.MoveEmitter.
func (m *machine) FreeScratch(scratch backend.Location, spilled bool) {
	if !spilled {
		return
	}
	switch {
	case scratch.IsFpuRegister():
		m.asm.CompileMemoryToRegister(asm_mips32.LDC1, regSP, 0, reg(scratch))
	case scratch.IsRegisterPair():
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, 0, lowReg(scratch))
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, 4, highReg(scratch))
	default:
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, 0, reg(scratch))
	}
	m.adjustSP(scratchSpillSize)
	m.spillDelta -= scratchSpillSize
	m.cg.CFI().AdjustCFAOffset(m.here(), -scratchSpillSize)
}

// emitParallelMove sequentializes pm with the move resolver.
func (m *machine) emitParallelMove(pm *backend.ParallelMove) {
	if pm.IsEmpty() {
		return
	}
	m.resolver.EmitNativeCode(pm)
	stats := &m.cg.Context().Stats
	stats.Add(m.resolver.Stats)
	m.resolver.Stats = backend.MoveResolverStats{}
	if m.spillDelta != 0 {
		panic(fmt.Sprintf("BUG: %d bytes of scratch spills left", m.spillDelta))
	}
}

// VisitParallelMove implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitParallelMove(instr *ir.Instruction) {
	v.cg.Context().Stats.ParallelMoves++
	v.emitParallelMove(v.cg.ParallelMoveOf(instr))
}

// VisitParallelMove implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitParallelMove(*ir.Instruction) {}
