// Package mips32 implements backend.Machine for MIPS32r2 with a 64-bit FPU.
package mips32

import (
	"fmt"
	"math"

	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	asm_mips32_debug "github.com/tetratelabs/irgen/internal/asm/mips32_debug"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

type (
	// machine implements backend.Machine.
	machine struct {
		cg       *backend.CodeGenerator
		asm      *asm_mips32.AssemblerImpl
		info     *backend.RegisterInfo
		resolver *backend.MoveResolver

		// methodEntry is the first node of the method, the target of recursive calls.
		methodEntry asm.Node
		// blockLabels maps a block ID to its label.
		blockLabels []*label
		// currentBlock is the block being emitted.
		currentBlock *ir.BasicBlock

		// spillDelta is the number of bytes pushed below the frame by
		// AllocateScratch while a parallel move is being emitted.
		spillDelta int64

		// thunks maps a core register to the Baker read barrier thunk marking it.
		thunks     map[int]*label
		thunkRegs  []int
		jumpTables []jumpTable

		locations locationsBuilder
		visitor   instructionVisitor

		listing string
	}

	// locationsBuilder implements backend.LocationsBuilder.
	locationsBuilder struct{ *machine }

	// instructionVisitor implements backend.InstructionVisitor.
	instructionVisitor struct{ *machine }

	// label is a branch target which may be bound after the branches to it.
	label struct {
		node    asm.Node
		pending []asm.Node
	}

	// jumpTable is a PackedSwitch table filled once the block labels are bound.
	jumpTable struct {
		table, anchor asm.Node
		targets       []*ir.BasicBlock
	}
)

// NewMachine returns a backend.Machine for MIPS32r2.
func NewMachine() backend.Machine {
	m := &machine{asm: asm_mips32.NewAssemblerImpl(), thunks: map[int]*label{}}
	m.info = m.newRegisterInfo()
	m.resolver = backend.NewMoveResolver(m)
	m.locations = locationsBuilder{m}
	m.visitor = instructionVisitor{m}
	return m
}

// SetCodeGenerator implements backend.Machine.
func (m *machine) SetCodeGenerator(cg *backend.CodeGenerator) {
	m.cg = cg
	n := 0
	for _, blk := range cg.Graph().Blocks() {
		if blk.ID() >= n {
			n = blk.ID() + 1
		}
	}
	m.blockLabels = make([]*label, n)
	for _, blk := range cg.Graph().Blocks() {
		m.blockLabels[blk.ID()] = &label{}
	}
}

// LocationsBuilder implements backend.Machine.
func (m *machine) LocationsBuilder() backend.LocationsBuilder { return &m.locations }

// InstructionVisitor implements backend.Machine.
func (m *machine) InstructionVisitor() backend.InstructionVisitor { return &m.visitor }

// RegisterInfo implements backend.Machine.
func (m *machine) RegisterInfo() *backend.RegisterInfo { return m.info }

// LongBranches implements backend.Machine.
func (m *machine) LongBranches() int { return m.asm.LongBranches() }

// Listing implements backend.Machine.
func (m *machine) Listing() string { return m.listing }

// BindBlock implements backend.Machine.
func (m *machine) BindBlock(blk *ir.BasicBlock) {
	m.currentBlock = blk
	m.bind(m.blockLabel(blk))
}

// Finalize implements backend.Machine.
func (m *machine) Finalize() ([]byte, error) {
	for _, r := range m.thunkRegs {
		m.emitReadBarrierThunk(r, m.thunks[r])
	}
	for _, jt := range m.jumpTables {
		targets := make([]asm.Node, len(jt.targets))
		for i, blk := range jt.targets {
			l := m.blockLabel(blk)
			if l.node == nil {
				return nil, fmt.Errorf("switch target %s is never bound", blk.Name())
			}
			targets[i] = l.node
		}
		// The table holds offsets from the return address of the nal.
		m.asm.BuildJumpTable(jt.table, jt.anchor, 8, targets)
	}

	code, err := m.asm.Assemble()
	if err != nil {
		return nil, err
	}
	if m.cg.Options().DebugAssembler {
		if m.listing, err = asm_mips32_debug.Listing(m.asm.Root, code); err != nil {
			return nil, err
		}
	}
	return code, nil
}

func (m *machine) blockLabel(blk *ir.BasicBlock) *label { return m.blockLabels[blk.ID()] }

// bind binds l to the current position.
func (m *machine) bind(l *label) {
	if l.node != nil {
		panic("BUG: label bound twice")
	}
	l.node = m.asm.CompileLabel()
	for _, n := range l.pending {
		n.AssignJumpTarget(l.node)
	}
	l.pending = nil
}

// target makes l the target of branch.
func (l *label) target(branch asm.Node) {
	if l.node != nil {
		branch.AssignJumpTarget(l.node)
		return
	}
	l.pending = append(l.pending, branch)
}

// here returns the current position. It must not be called between a branch
// and its delay slot.
func (m *machine) here() backend.CodePosition {
	return backend.At(m.asm.CompileLabel(), 0)
}

// after returns the position right after n.
func after(n asm.Node) backend.CodePosition { return backend.At(n, 4) }

func (m *machine) nop() { m.asm.CompileStandAlone(asm_mips32.NOP) }

// b branches to l with a nop in the delay slot.
func (m *machine) b(l *label) {
	l.target(m.asm.CompileJump(asm_mips32.B))
	m.nop()
}

func (m *machine) beqz(r asm.Register, l *label) {
	l.target(m.asm.CompileTwoRegistersToBranch(asm_mips32.BEQ, r, regZero))
	m.nop()
}

func (m *machine) bnez(r asm.Register, l *label) {
	l.target(m.asm.CompileTwoRegistersToBranch(asm_mips32.BNE, r, regZero))
	m.nop()
}

func (m *machine) beq(x, y asm.Register, l *label) {
	l.target(m.asm.CompileTwoRegistersToBranch(asm_mips32.BEQ, x, y))
	m.nop()
}

func (m *machine) bne(x, y asm.Register, l *label) {
	l.target(m.asm.CompileTwoRegistersToBranch(asm_mips32.BNE, x, y))
	m.nop()
}

// jumpTo branches to blk unless it is laid out right after the current block.
func (m *machine) jumpTo(blk *ir.BasicBlock) {
	if !m.cg.GoesToNextBlock(m.currentBlock, blk) {
		m.b(m.blockLabel(blk))
	}
}

// move copies the core register src into dst.
func (m *machine) move(dst, src asm.Register) {
	if dst != src {
		m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, src, regZero, dst)
	}
}

func fitsInt16(v int64) bool  { return v >= math.MinInt16 && v <= math.MaxInt16 }
func fitsUint16(v int64) bool { return v >= 0 && v <= math.MaxUint16 }

// loadConst loads the 32-bit value v into dst.
func (m *machine) loadConst(dst asm.Register, v int32) {
	switch {
	case v == 0:
		m.move(dst, regZero)
	case fitsInt16(int64(v)):
		m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regZero, int64(v), dst)
	case fitsUint16(int64(v)):
		m.asm.CompileRegisterAndConstToRegister(asm_mips32.ORI, regZero, int64(v), dst)
	default:
		m.asm.CompileConstToRegister(asm_mips32.LUI, int64(uint32(v)>>16), dst)
		if lo := int64(uint32(v) & 0xffff); lo != 0 {
			m.asm.CompileRegisterAndConstToRegister(asm_mips32.ORI, dst, lo, dst)
		}
	}
}

// address returns a base register and an immediate addressing base+off,
// materializing the upper half of off in at when it does not fit.
func (m *machine) address(base asm.Register, off int64) (asm.Register, int64) {
	if fitsInt16(off) {
		return base, off
	}
	hi, lo := backend.SplitAddress(uint32(off))
	m.asm.CompileConstToRegister(asm_mips32.LUI, int64(hi), regAT)
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regAT, base, regAT)
	return regAT, int64(int16(lo))
}

// load emits inst loading from base+off into dst and returns its node.
func (m *machine) load(inst asm.Instruction, base asm.Register, off int64, dst asm.Register) asm.Node {
	base, off = m.address(base, off)
	return m.asm.CompileMemoryToRegister(inst, base, off, dst)
}

// store emits inst storing src to base+off and returns its node.
func (m *machine) store(inst asm.Instruction, src, base asm.Register, off int64) asm.Node {
	base, off = m.address(base, off)
	return m.asm.CompileRegisterToMemory(inst, src, base, off)
}

// addConst emits dst = src + v.
func (m *machine) addConst(dst, src asm.Register, v int64) {
	if fitsInt16(v) {
		if v != 0 || dst != src {
			m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, src, v, dst)
		}
		return
	}
	m.loadConst(regAT, int32(v))
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, src, regAT, dst)
}

// operand returns the core register holding the 32-bit value at loc,
// loading constants into scratch.
func (m *machine) operand(loc backend.Location, scratch asm.Register) asm.Register {
	if !loc.IsConstant() {
		return reg(loc)
	}
	v := int32(loc.Constant().ConstantBits())
	if v == 0 {
		return regZero
	}
	m.loadConst(scratch, v)
	return scratch
}

// pairOperand is operand for 64-bit values.
func (m *machine) pairOperand(loc backend.Location, lowScratch, highScratch asm.Register) (lo, hi asm.Register) {
	if !loc.IsConstant() {
		return lowReg(loc), highReg(loc)
	}
	bits := loc.Constant().ConstantBits()
	lo, hi = regZero, regZero
	if l := int32(uint32(bits)); l != 0 {
		m.loadConst(lowScratch, l)
		lo = lowScratch
	}
	if h := int32(uint32(bits >> 32)); h != 0 {
		m.loadConst(highScratch, h)
		hi = highScratch
	}
	return
}

// invokeRuntime calls entrypoint through the thread register and records
// the stack map of instr at the return address.
func (m *machine) invokeRuntime(entrypoint runtime.QuickEntrypoint, instr *ir.Instruction, slowPath backend.SlowPath) {
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regTR, entrypoint.Offset(), regT9)
	m.asm.CompileJumpToRegister(asm_mips32.JALR, regT9)
	m.nop()
	if entrypoint.NeedsStackMap() {
		m.cg.RecordPcInfo(instr, m.here(), slowPath)
	}
}

// pcRelative emits "nal; lui dst, hi; addu dst, dst, ra" for the high half
// of a patch and returns the position of the anchor, the return address of
// the nal. The caller emits the low half relative to dst.
func (m *machine) pcRelative(high backend.PatchID, dst asm.Register) backend.CodePosition {
	nal := m.asm.CompileStandAlone(asm_mips32.NAL)
	lui := m.asm.CompileConstToRegister(asm_mips32.LUI, 0x1234, dst)
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, dst, regRA, dst)
	anchor := backend.At(nal, 8)
	m.cg.Patches().Place(high, backend.At(lui, 0), anchor)
	return anchor
}

// placeLow records n as the instruction carrying the low half of a patch.
func (m *machine) placeLow(low backend.PatchID, n asm.Node) {
	m.cg.Patches().Place(low, backend.At(n, 0), backend.CodePosition{})
}

// jitRootLoad emits "lui dst, hi; lw dst, lo(dst)" loading the root of
// the JIT root table at rootIndex, and returns the lw.
func (m *machine) jitRootLoad(rootIndex uint32, dst asm.Register) asm.Node {
	lui := m.asm.CompileConstToRegister(asm_mips32.LUI, 0x5678, dst)
	lw := m.asm.CompileMemoryToRegister(asm_mips32.LW, dst, 0x5678, dst)
	m.cg.JitRoots().AddPatch(backend.At(lui, 0), rootIndex)
	return lw
}

// summary returns the resolved LocationSummary of instr.
func (m *machine) summary(instr *ir.Instruction) *backend.LocationSummary { return m.cg.Summary(instr) }
