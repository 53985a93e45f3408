package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// slowPathCode is embedded in every slow path of this machine.
type slowPathCode struct {
	backend.SlowPathBase
	m           *machine
	entry, exit *label
}

func (m *machine) newSlowPathCode(instr *ir.Instruction) slowPathCode {
	c := slowPathCode{SlowPathBase: backend.NewSlowPathBase(instr), m: m, entry: &label{}, exit: &label{}}
	c.Entry, c.Exit = c.entry, c.exit
	return c
}

// newFatalSlowPathCode is newSlowPathCode for slow paths which never return.
func (m *machine) newFatalSlowPathCode(instr *ir.Instruction) slowPathCode {
	c := slowPathCode{SlowPathBase: backend.NewSlowPathBase(instr), m: m, entry: &label{}}
	c.Entry = c.entry
	return c
}

// IsFatal implements backend.SlowPath.
func (c *slowPathCode) IsFatal() bool { return c.exit == nil }

func (m *machine) addSlowPath(sp backend.SlowPath) backend.SlowPath { return m.cg.AddSlowPath(sp) }

// enter records a branch of the fast path to sp and returns its entry label.
func enter(sp backend.SlowPath) *label {
	sp.Base().MarkEntered()
	return sp.Base().Entry.(*label)
}

// bindExit binds the label where sp returns to the fast path.
func (m *machine) bindExit(sp backend.SlowPath) { m.bind(sp.Base().Exit.(*label)) }

// branchToSlowPath emits "inst r, zero" (BEQ or BNE) to the entry of sp.
func (m *machine) branchToSlowPath(inst asm.Instruction, r asm.Register, sp backend.SlowPath) {
	enter(sp).target(m.asm.CompileTwoRegistersToBranch(inst, r, regZero))
	m.nop()
}

// begin binds the entry of the slow path.
func (c *slowPathCode) begin() { c.m.bind(c.entry) }

// returnToFastPath branches back to the exit.
func (c *slowPathCode) returnToFastPath() {
	c.m.b(c.exit)
	c.MarkExited()
}

// liveCallerSaves returns the live registers of s a runtime call clobbers.
// With honorCustom, a custom slow path calling convention replaces the
// caller-save set.
func liveCallerSaves(s *backend.LocationSummary, honorCustom bool) backend.RegisterSet {
	saves := callerSaves
	if honorCustom && s.HasCustomSlowPathCallingConvention() {
		saves = s.CustomSlowPathCallerSaves()
	}
	return s.LiveRegisters().Intersect(saves)
}

// saveLiveRegisters stores set to the slow path save area and marks the
// saved references in the stack mask of the slow path.
func (c *slowPathCode) saveLiveRegisters(s *backend.LocationSummary, set backend.RegisterSet) {
	m := c.m
	base := int64(m.cg.Frame().SlowPathSaveAreaOffset)
	refs := s.ReferenceRegisters()
	for _, r := range set.CoreRegisters() {
		off := base + int64(saveSlotOfCore(r))
		m.store(asm_mips32.SW, core(r), regSP, off)
		if refs.ContainsCore(r) {
			c.StackMask.Set(int(off / 4))
		}
	}
	for _, r := range set.FpuRegisters() {
		m.store(asm_mips32.SDC1, fpu(r), regSP, base+int64(saveSlotOfFpu(r)))
	}
}

func (c *slowPathCode) restoreLiveRegisters(set backend.RegisterSet) {
	m := c.m
	base := int64(m.cg.Frame().SlowPathSaveAreaOffset)
	for _, r := range set.CoreRegisters() {
		m.load(asm_mips32.LW, regSP, base+int64(saveSlotOfCore(r)), core(r))
	}
	for _, r := range set.FpuRegisters() {
		m.load(asm_mips32.LDC1, regSP, base+int64(saveSlotOfFpu(r)), fpu(r))
	}
}

// moveArguments moves the locations in srcs to the runtime arguments, in order.
func (c *slowPathCode) moveArguments(srcs []backend.Location, types []ir.DataType) {
	var pm backend.ParallelMove
	var args runtimeArgs
	for i, src := range srcs {
		pm.AddMove(src, args.next(types[i]), types[i], nil)
	}
	c.m.emitParallelMove(&pm)
}

// callRuntime calls e on behalf of the instruction of the slow path.
func (c *slowPathCode) callRuntime(sp backend.SlowPath, e runtime.QuickEntrypoint) {
	c.m.invokeRuntime(e, c.Instruction(), sp)
}

// throwSlowPath calls a throwing entrypoint with the inputs of the
// instruction as arguments.
type throwSlowPath struct {
	slowPathCode
	name       string
	entrypoint runtime.QuickEntrypoint
	args       []backend.Location
	argTypes   []ir.DataType
}

// Name implements backend.SlowPath.
func (sp *throwSlowPath) Name() string { return sp.name }

// EmitNativeCode implements backend.SlowPath.
func (sp *throwSlowPath) EmitNativeCode() {
	sp.begin()
	if len(sp.args) > 0 {
		sp.moveArguments(sp.args, sp.argTypes)
	}
	sp.callRuntime(sp, sp.entrypoint)
	sp.MarkFatal()
}

func (m *machine) newNullCheckSlowPath(instr *ir.Instruction) backend.SlowPath {
	return m.addSlowPath(&throwSlowPath{
		slowPathCode: m.newFatalSlowPathCode(instr),
		name:         "NullCheckSlowPath",
		entrypoint:   runtime.QuickThrowNullPointer,
	})
}

func (m *machine) newBoundsCheckSlowPath(instr *ir.Instruction) backend.SlowPath {
	s := m.summary(instr)
	return m.addSlowPath(&throwSlowPath{
		slowPathCode: m.newFatalSlowPathCode(instr),
		name:         "BoundsCheckSlowPath",
		entrypoint:   runtime.QuickThrowArrayBounds,
		args:         []backend.Location{s.InAt(0), s.InAt(1)},
		argTypes:     []ir.DataType{ir.TypeInt32, ir.TypeInt32},
	})
}

func (m *machine) newDivZeroCheckSlowPath(instr *ir.Instruction) backend.SlowPath {
	return m.addSlowPath(&throwSlowPath{
		slowPathCode: m.newFatalSlowPathCode(instr),
		name:         "DivZeroCheckSlowPath",
		entrypoint:   runtime.QuickThrowDivZero,
	})
}

func (m *machine) newDeoptimizationSlowPath(instr *ir.Instruction) backend.SlowPath {
	return m.addSlowPath(&throwSlowPath{
		slowPathCode: m.newFatalSlowPathCode(instr),
		name:         "DeoptimizationSlowPath",
		entrypoint:   runtime.QuickDeoptimize,
	})
}

// stackOverflowSlowPath throws from the frame entry, before the frame is set up.
type stackOverflowSlowPath struct {
	slowPathCode
}

// Name implements backend.SlowPath.
func (sp *stackOverflowSlowPath) Name() string { return "StackOverflowCheckSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *stackOverflowSlowPath) EmitNativeCode() {
	sp.begin()
	sp.callRuntime(sp, runtime.QuickThrowStackOverflow)
	sp.MarkFatal()
}

// suspendCheckSlowPath lets the runtime suspend the thread.
type suspendCheckSlowPath struct {
	slowPathCode
}

// Name implements backend.SlowPath.
func (sp *suspendCheckSlowPath) Name() string { return "SuspendCheckSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *suspendCheckSlowPath) EmitNativeCode() {
	s := sp.m.summary(sp.Instruction())
	live := liveCallerSaves(s, true)
	sp.begin()
	sp.saveLiveRegisters(s, live)
	sp.callRuntime(sp, runtime.QuickTestSuspend)
	sp.restoreLiveRegisters(live)
	sp.returnToFastPath()
}

// loadClassSlowPath resolves, and with doClinit initializes, a class.
// It serves LoadClass and ClinitCheck.
type loadClassSlowPath struct {
	slowPathCode
	typeIndex uint32
	doClinit  bool
	// out is the register receiving the class.
	out asm.Register
	// bss is set for the BssEntry load kind, where temp holds the address of
	// the high half of the entry and the resolved class is stored back.
	bss     bool
	bssHigh backend.PatchID
	temp    asm.Register
}

// Name implements backend.SlowPath.
func (sp *loadClassSlowPath) Name() string { return "LoadClassSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *loadClassSlowPath) EmitNativeCode() {
	e := runtime.QuickInitializeType
	if sp.doClinit {
		e = runtime.QuickInitializeStaticStorage
	}
	sp.emitResolution(sp, e, sp.typeIndex, sp.out, sp.bss, sp.bssHigh, sp.temp)
}

// loadStringSlowPath resolves a string.
type loadStringSlowPath struct {
	slowPathCode
	stringIndex uint32
	out         asm.Register
	bssHigh     backend.PatchID
	temp        asm.Register
}

// Name implements backend.SlowPath.
func (sp *loadStringSlowPath) Name() string { return "LoadStringSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *loadStringSlowPath) EmitNativeCode() {
	sp.emitResolution(sp, runtime.QuickResolveString, sp.stringIndex, sp.out, true, sp.bssHigh, sp.temp)
}

// emitResolution calls the resolution entrypoint e with the index in a0,
// stores the result to the .bss entry if any, and moves it to out.
func (c *slowPathCode) emitResolution(sp backend.SlowPath, e runtime.QuickEntrypoint, index uint32, out asm.Register,
	bss bool, bssHigh backend.PatchID, temp asm.Register,
) {
	m := c.m
	s := m.summary(c.Instruction())
	live := liveCallerSaves(s, true)
	c.begin()
	c.saveLiveRegisters(s, live)
	if bss {
		// a0 may be the temp.
		m.move(regAT, temp)
	}
	m.loadConst(regA0, int32(index))
	c.callRuntime(sp, e)
	if bss {
		sw := m.asm.CompileRegisterToMemory(asm_mips32.SW, regV0, regAT, 0x5678)
		m.placeLow(m.cg.Patches().NewLowPatch(bssHigh), sw)
	}
	m.move(out, regV0)
	c.restoreLiveRegisters(live)
	c.returnToFastPath()
}

// typeCheckSlowPath calls the runtime for InstanceOf and CheckCast. It is
// fatal for the CheckCast kinds whose fast path decides the cast fully.
type typeCheckSlowPath struct {
	slowPathCode
}

// Name implements backend.SlowPath.
func (sp *typeCheckSlowPath) Name() string { return "TypeCheckSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *typeCheckSlowPath) EmitNativeCode() {
	m := sp.m
	instr := sp.Instruction()
	s := m.summary(instr)
	args := []backend.Location{s.InAt(0), s.InAt(1)}
	types := []ir.DataType{ir.TypeReference, ir.TypeReference}

	sp.begin()
	if sp.IsFatal() {
		sp.moveArguments(args, types)
		sp.callRuntime(sp, runtime.QuickCheckInstanceOf)
		sp.MarkFatal()
		return
	}

	live := liveCallerSaves(s, true)
	sp.saveLiveRegisters(s, live)
	sp.moveArguments(args, types)
	if instr.Opcode() == ir.OpInstanceOf {
		sp.callRuntime(sp, runtime.QuickInstanceOf)
		m.move(reg(s.Out()), regV0)
	} else {
		sp.callRuntime(sp, runtime.QuickCheckInstanceOf)
	}
	sp.restoreLiveRegisters(live)
	sp.returnToFastPath()
}

// arraySetSlowPath lets the runtime check and store a reference the fast
// path could not prove assignable.
type arraySetSlowPath struct {
	slowPathCode
}

// Name implements backend.SlowPath.
func (sp *arraySetSlowPath) Name() string { return "ArraySetSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *arraySetSlowPath) EmitNativeCode() {
	s := sp.m.summary(sp.Instruction())
	live := liveCallerSaves(s, true)
	sp.begin()
	sp.saveLiveRegisters(s, live)
	sp.moveArguments(
		[]backend.Location{s.InAt(0), s.InAt(1), s.InAt(2)},
		[]ir.DataType{ir.TypeReference, ir.TypeInt32, ir.TypeReference},
	)
	sp.callRuntime(sp, runtime.QuickAputObject)
	sp.restoreLiveRegisters(live)
	sp.returnToFastPath()
}

// readBarrierMarkSlowPath marks the reference in ref, in place.
type readBarrierMarkSlowPath struct {
	slowPathCode
	ref int
}

// Name implements backend.SlowPath.
func (sp *readBarrierMarkSlowPath) Name() string { return "ReadBarrierMarkSlowPath" }

// EmitNativeCode implements backend.SlowPath.
func (sp *readBarrierMarkSlowPath) EmitNativeCode() {
	m := sp.m
	s := m.summary(sp.Instruction())
	// The marking entrypoint is not a save-everything one, so the custom
	// convention of the instruction does not apply.
	live := liveCallerSaves(s, false)
	live = live.Subtract(backend.NewRegisterSet([]int{sp.ref}, nil))

	sp.begin()
	sp.saveLiveRegisters(s, live)
	m.move(regA0, core(sp.ref))
	sp.callRuntime(sp, runtime.QuickReadBarrierMark)
	m.move(core(sp.ref), regV0)
	sp.restoreLiveRegisters(live)
	sp.returnToFastPath()
}
