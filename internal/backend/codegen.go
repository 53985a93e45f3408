package backend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/ir"
)

// RegisterInfo describes the register file of an architecture to the register allocator.
type RegisterInfo struct {
	WordSize int
	// AllocatableCore and AllocatableFpu list the registers in preference order.
	AllocatableCore []int
	AllocatableFpu  []int
	// RegisterPairs lists the (low, high) core pairs holding 64-bit values.
	RegisterPairs [][2]int
	CalleeSaves   RegisterSet
	// ParameterStackOffset returns the offset from the caller's SP of a
	// parameter passed on the stack. ok is false for register parameters.
	ParameterStackOffset func(param *ir.Instruction) (offset int, ok bool)
}

// IsCalleeSave returns true if every register of loc is preserved across calls.
func (r *RegisterInfo) IsCalleeSave(loc Location) bool {
	var s RegisterSet
	s.Add(loc)
	return !s.IsEmpty() && s.Subtract(r.CalleeSaves).IsEmpty()
}

// FrameRequest is what the register allocator needs in the frame.
type FrameRequest struct {
	// OutgoingArgsSize is the size of the stack arguments of the calls.
	OutgoingArgsSize int
	// HomeAreaSize is the size of the stack slots of the values.
	HomeAreaSize int
	// UsedRegisters are the registers the allocator assigned.
	UsedRegisters RegisterSet
	// NeedsSlowPathSaveArea is true if a slow path saves live registers.
	NeedsSlowPathSaveArea bool
}

// Frame is the layout of the stack frame of a method.
type Frame struct {
	Size          int
	CoreSpillMask uint32
	FpuSpillMask  uint32
	// HomeAreaOffset is the offset from SP of the first home slot.
	HomeAreaOffset int
	// SlowPathSaveAreaOffset is the offset from SP where slow paths save
	// live registers, valid if requested.
	SlowPathSaveAreaOffset int
}

// Machine is implemented by each architecture.
type Machine interface {
	// SetCodeGenerator is called once, before locations building.
	SetCodeGenerator(cg *CodeGenerator)
	LocationsBuilder() LocationsBuilder
	InstructionVisitor() InstructionVisitor
	RegisterInfo() *RegisterInfo
	// ComputeFrame lays out the frame. Called once by CodeGenerator.InitializeFrame.
	ComputeFrame(req FrameRequest) Frame
	// GenerateFrameEntry emits the prologue.
	GenerateFrameEntry()
	// BindBlock binds the label of blk to the current position.
	BindBlock(blk *ir.BasicBlock)
	// Finalize emits the out-of-line code shared by the method and assembles it.
	Finalize() ([]byte, error)
	// Listing returns the debug listing of the code, if enabled.
	Listing() string
	// LongBranches returns the number of branches relaxed by Finalize.
	LongBranches() int
}

// Result is the output of the compilation of one method.
type Result struct {
	Code             []byte
	Frame            Frame
	StackMaps        []StackMap
	EncodedStackMaps []byte
	LinkerPatches    []LinkerPatch
	CFI              []byte
	JitRoots         []JitRoot
	JitPatches       []JitPatch
	Listing          string
}

// CodeGenerator drives the compilation of one method: it asks the
// architecture for the locations of every instruction, lets the register
// allocator resolve them, and then asks the architecture to emit the code of
// every instruction in layout order.
type CodeGenerator struct {
	ctx     *CompilationContext
	graph   *ir.Graph
	machine Machine

	summaries      []*LocationSummary
	valueLocations []Location
	moves          map[*ir.Instruction]*ParallelMove
	locationsBuilt bool

	frame            Frame
	frameInitialized bool

	current   *ir.Instruction
	slowPaths []SlowPath
	stackMaps *StackMapStream
	patches   *PatchTable
	jitRoots  *JitRootTable
	cfi       *CFIWriter
}

// NewCodeGenerator returns a CodeGenerator of graph for machine.
func NewCodeGenerator(ctx *CompilationContext, graph *ir.Graph, machine Machine) *CodeGenerator {
	cg := &CodeGenerator{
		ctx:       ctx,
		graph:     graph,
		machine:   machine,
		moves:     map[*ir.Instruction]*ParallelMove{},
		stackMaps: NewStackMapStream(),
		patches:   NewPatchTable(),
		jitRoots:  NewJitRootTable(),
		cfi:       NewCFIWriter(),
	}
	machine.SetCodeGenerator(cg)
	return cg
}

// Context returns the compilation context.
func (cg *CodeGenerator) Context() *CompilationContext { return cg.ctx }

// Options returns the compiler options.
func (cg *CodeGenerator) Options() *CompilerOptions { return &cg.ctx.Options }

// Graph returns the compiled graph.
func (cg *CodeGenerator) Graph() *ir.Graph { return cg.graph }

// Machine returns the architecture.
func (cg *CodeGenerator) Machine() Machine { return cg.machine }

// StackMaps returns the stack map stream.
func (cg *CodeGenerator) StackMaps() *StackMapStream { return cg.stackMaps }

// Patches returns the PC-relative patch table.
func (cg *CodeGenerator) Patches() *PatchTable { return cg.patches }

// JitRoots returns the JIT root table.
func (cg *CodeGenerator) JitRoots() *JitRootTable { return cg.jitRoots }

// CFI returns the call frame information writer.
func (cg *CodeGenerator) CFI() *CFIWriter { return cg.cfi }

// Current returns the instruction whose code is being emitted.
func (cg *CodeGenerator) Current() *ir.Instruction { return cg.current }

// BuildLocations lets the architecture declare the LocationSummary of every
// instruction, then freezes them.
func (cg *CodeGenerator) BuildLocations() error {
	if limit := cg.ctx.Options.MaxInstructions; limit > 0 && cg.graph.NumberOfInstructions() > limit {
		return NewBailout(BailoutTooManyInstructions, "%d instructions, limit is %d", cg.graph.NumberOfInstructions(), limit)
	}
	b := cg.machine.LocationsBuilder()
	for _, blk := range cg.graph.Blocks() {
		for _, phi := range blk.Phis() {
			DispatchLocations(b, phi)
		}
		for _, instr := range blk.Instructions() {
			if instr.Opcode() == ir.OpParallelMove {
				continue
			}
			DispatchLocations(b, instr)
			if cg.summaryOf(instr) == nil {
				cg.NewLocationSummary(instr, CallKindNoCall)
			}
		}
	}
	for _, s := range cg.summaries {
		if s != nil {
			s.Freeze()
		}
	}
	cg.locationsBuilt = true
	return nil
}

// NewLocationSummary creates and registers the summary of instr.
func (cg *CodeGenerator) NewLocationSummary(instr *ir.Instruction, callKind CallKind) *LocationSummary {
	if cg.locationsBuilt {
		panic(fmt.Sprintf("BUG: new summary for %s after locations building", instr))
	}
	s := NewLocationSummary(instr, callKind)
	cg.growTo(instr.ID())
	cg.summaries[instr.ID()] = s
	return s
}

func (cg *CodeGenerator) growTo(id int) {
	for len(cg.summaries) <= id {
		cg.summaries = append(cg.summaries, nil)
		cg.valueLocations = append(cg.valueLocations, NoLocation())
	}
}

func (cg *CodeGenerator) summaryOf(instr *ir.Instruction) *LocationSummary {
	if id := instr.ID(); id < len(cg.summaries) {
		return cg.summaries[id]
	}
	return nil
}

// Summary returns the summary of instr.
func (cg *CodeGenerator) Summary(instr *ir.Instruction) *LocationSummary {
	s := cg.summaryOf(instr)
	if s == nil {
		panic(fmt.Sprintf("BUG: no location summary for %s", instr))
	}
	return s
}

// ParallelMoveOf returns the moves of the ParallelMove instruction pm.
func (cg *CodeGenerator) ParallelMoveOf(pm *ir.Instruction) *ParallelMove {
	if pm.Opcode() != ir.OpParallelMove {
		panic(fmt.Sprintf("BUG: %s is not a parallel move", pm))
	}
	m, ok := cg.moves[pm]
	if !ok {
		m = &ParallelMove{}
		cg.moves[pm] = m
	}
	return m
}

// SetValueLocation records where the value of instr lives at safepoints.
func (cg *CodeGenerator) SetValueLocation(instr *ir.Instruction, loc Location) {
	cg.growTo(instr.ID())
	cg.valueLocations[instr.ID()] = loc
}

// ValueLocation returns the location set with SetValueLocation. Constants
// live in their constant location.
func (cg *CodeGenerator) ValueLocation(instr *ir.Instruction) Location {
	if instr.IsConstant() {
		return ConstantLocation(instr)
	}
	if id := instr.ID(); id < len(cg.valueLocations) {
		return cg.valueLocations[id]
	}
	return NoLocation()
}

// InitializeFrame lays out the frame once the register allocator knows what it needs.
func (cg *CodeGenerator) InitializeFrame(req FrameRequest) error {
	if cg.frameInitialized {
		panic("BUG: frame initialized twice")
	}
	frame := cg.machine.ComputeFrame(req)
	if limit := cg.ctx.Options.MaxFrameSize; limit > 0 && frame.Size > limit {
		return NewBailout(BailoutFrameTooLarge, "frame of %d bytes, limit is %d", frame.Size, limit)
	}
	cg.frame, cg.frameInitialized = frame, true
	return nil
}

// Frame returns the frame layout.
func (cg *CodeGenerator) Frame() Frame {
	if !cg.frameInitialized {
		panic("BUG: frame not initialized")
	}
	return cg.frame
}

// IsFrameInitialized returns true once InitializeFrame succeeded.
func (cg *CodeGenerator) IsFrameInitialized() bool { return cg.frameInitialized }

// GoesToNextBlock returns true if to is laid out right after from.
func (cg *CodeGenerator) GoesToNextBlock(from, to *ir.BasicBlock) bool {
	blocks := cg.graph.Blocks()
	for i, b := range blocks {
		if b == from {
			return i+1 < len(blocks) && blocks[i+1] == to
		}
	}
	return false
}

// AddSlowPath registers sp to be emitted after the code of the method.
func (cg *CodeGenerator) AddSlowPath(sp SlowPath) SlowPath {
	cg.slowPaths = append(cg.slowPaths, sp)
	return sp
}

// SlowPaths returns the registered slow paths.
func (cg *CodeGenerator) SlowPaths() []SlowPath { return cg.slowPaths }

// RecordPcInfo records a stack map for the runtime call of instr returning
// at pos. slowPath is the slow path making the call, if any.
func (cg *CodeGenerator) RecordPcInfo(instr *ir.Instruction, pos CodePosition, slowPath SlowPath) {
	kind := StackMapDefault
	var extra BitVector
	switch {
	case slowPath != nil:
		kind = StackMapSlowPath
		extra = slowPath.Base().StackMask
	case instr != nil && instr.Opcode().IsInvoke():
		kind = StackMapCall
	}
	cg.recordStackMap(instr, pos, kind, extra)
}

// RecordImplicitNullCheck records that the memory access at pos faults if
// the object checked by nullCheck is null.
func (cg *CodeGenerator) RecordImplicitNullCheck(nullCheck *ir.Instruction, pos CodePosition) {
	cg.recordStackMap(nullCheck, pos, StackMapImplicitNullCheck, nil)
}

// RecordOSREntry records that on-stack replacement may enter the method at pos.
func (cg *CodeGenerator) RecordOSREntry(instr *ir.Instruction, pos CodePosition) {
	cg.recordStackMap(instr, pos, StackMapOSR, nil)
}

func (cg *CodeGenerator) recordStackMap(instr *ir.Instruction, pos CodePosition, kind StackMapKind, extra BitVector) {
	var dexPC, regMask uint32
	var stackMask BitVector
	var env *ir.Environment
	if instr != nil {
		dexPC, env = instr.DexPC(), instr.Env()
		if s := cg.summaryOf(instr); s != nil {
			stackMask = s.StackMask().Clone()
			if kind == StackMapImplicitNullCheck {
				regMask = s.ReferenceRegisters().Core
			}
		}
	}
	for i := 0; i < extra.NumBits(); i++ {
		if extra.IsSet(i) {
			stackMask.Set(i)
		}
	}
	cg.stackMaps.BeginStackMapEntry(pos, dexPC, kind, regMask, stackMask)
	if env != nil {
		for _, v := range env.Values {
			cg.stackMaps.AddDexRegister(cg.dexRegisterLocation(v))
		}
	}
	cg.stackMaps.EndStackMapEntry()
}

func (cg *CodeGenerator) dexRegisterLocation(v *ir.Instruction) DexRegisterLocation {
	if v == nil {
		return DexRegisterLocation{}
	}
	loc := cg.ValueLocation(v)
	switch loc.Kind() {
	case LocationConstant:
		return DexRegisterLocation{Kind: DexRegisterConstant, Value: int32(uint32(v.ConstantBits()))}
	case LocationStackSlot, LocationDoubleStackSlot:
		return DexRegisterLocation{Kind: DexRegisterInStack, Value: int32(loc.StackIndex())}
	case LocationRegister:
		return DexRegisterLocation{Kind: DexRegisterInRegister, Value: int32(loc.Reg())}
	case LocationRegisterPair:
		return DexRegisterLocation{Kind: DexRegisterInRegister, Value: int32(loc.LowReg())}
	case LocationFpuRegister:
		return DexRegisterLocation{Kind: DexRegisterInFpuRegister, Value: int32(loc.Reg())}
	case LocationFpuRegisterPair:
		return DexRegisterLocation{Kind: DexRegisterInFpuRegister, Value: int32(loc.LowReg())}
	}
	return DexRegisterLocation{}
}

// Compile emits the code of the method. The frame must be initialized and
// every summary resolved.
func (cg *CodeGenerator) Compile() (*Result, error) {
	if !cg.locationsBuilt {
		panic("BUG: locations are not built")
	}
	if !cg.frameInitialized {
		panic("BUG: frame not initialized")
	}
	m, v := cg.machine, cg.machine.InstructionVisitor()

	m.GenerateFrameEntry()
	for _, blk := range cg.graph.Blocks() {
		m.BindBlock(blk)
		for _, instr := range blk.Instructions() {
			if instr.IsEmittedAtUseSite() {
				continue
			}
			cg.current = instr
			DispatchInstruction(v, instr)
		}
	}
	cg.current = nil

	emitSlowPaths(cg.slowPaths)

	code, err := m.Finalize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cg.graph.Name(), err)
	}

	cg.stackMaps.Resolve()
	res := &Result{
		Code:          code,
		Frame:         cg.frame,
		StackMaps:     cg.stackMaps.Entries(),
		LinkerPatches: cg.patches.LinkerPatches(),
		CFI:           cg.cfi.Encode(),
		JitRoots:      cg.jitRoots.Roots(),
		JitPatches:    cg.jitRoots.Resolve(),
		Listing:       m.Listing(),
	}
	res.EncodedStackMaps = EncodeStackMaps(res.StackMaps)

	stats := &cg.ctx.Stats
	stats.SlowPaths = len(cg.slowPaths)
	stats.StackMaps = len(res.StackMaps)
	stats.Patches = len(res.LinkerPatches) + len(res.JitPatches)
	stats.LongBranches = m.LongBranches()
	cg.ctx.Logger.Debug("method compiled",
		zap.Int("code_size", len(code)),
		zap.Int("frame_size", cg.frame.Size),
		zap.Int("slow_paths", stats.SlowPaths),
		zap.Int("stack_maps", stats.StackMaps),
		zap.Int("patches", stats.Patches),
		zap.Int("long_branches", stats.LongBranches),
	)
	return res, nil
}
