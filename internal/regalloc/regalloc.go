// Package regalloc implements a naive register allocator for the backend.
//
// Every value lives in a home stack slot for its whole lifetime. Registers
// only live within a single instruction: the inputs an instruction wants in
// registers are loaded by the parallel move right before it, and its output
// register is stored to the home slot by the parallel move right after it.
// Phis are resolved with home to home moves at the end of the predecessors.
//
// This keeps the allocator trivially correct and leaves the interesting work
// to the parallel move resolver and the slow paths, which see the same kind
// of LocationSummary a real allocator would produce.
package regalloc

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// Options configures Allocate.
type Options struct {
	// PreferCalleeSaves hands out callee-save registers first. This makes the
	// values of slow path instructions survive runtime calls without being
	// saved, at the cost of saving them in the prologue.
	PreferCalleeSaves bool
}

type allocator struct {
	cg   *backend.CodeGenerator
	g    *ir.Graph
	info *backend.RegisterInfo
	opts Options

	core, fpu []int
	pairs     [][2]int

	// order is the instructions in layout order, parallel moves excluded.
	order []*ir.Instruction
	// homes maps a value to the offset of its home slot in the home area.
	homes    map[*ir.Instruction]int
	homeSize int

	outgoingArgsSize int
	used             backend.RegisterSet
	needsSaveArea    bool
}

// Allocate resolves every LocationSummary of cg, lays out the frame and
// inserts the parallel moves. cg.BuildLocations must have succeeded.
func Allocate(cg *backend.CodeGenerator, opts Options) error {
	a := &allocator{
		cg:    cg,
		g:     cg.Graph(),
		info:  cg.Machine().RegisterInfo(),
		opts:  opts,
		homes: map[*ir.Instruction]int{},
	}
	a.core, a.fpu, a.pairs = a.preferenceOrder()
	for _, blk := range a.g.Blocks() {
		for _, instr := range blk.Instructions() {
			if instr.Opcode() != ir.OpParallelMove {
				a.order = append(a.order, instr)
			}
		}
	}

	if err := a.checkShape(); err != nil {
		return err
	}
	for _, instr := range a.order {
		if instr.IsEmittedAtUseSite() {
			continue
		}
		if err := a.assignRegisters(instr); err != nil {
			return err
		}
		a.assignHome(instr)
	}
	for _, blk := range a.g.Blocks() {
		for _, phi := range blk.Phis() {
			a.assignHome(phi)
		}
	}

	if a.outgoingArgsSize < a.info.WordSize {
		a.outgoingArgsSize = a.info.WordSize
	}
	err := cg.InitializeFrame(backend.FrameRequest{
		OutgoingArgsSize:      a.outgoingArgsSize,
		HomeAreaSize:          a.homeSize,
		UsedRegisters:         a.used,
		NeedsSlowPathSaveArea: a.needsSaveArea,
	})
	if err != nil {
		return err
	}

	a.assignValueLocations()
	for _, instr := range a.order {
		if !instr.IsEmittedAtUseSite() {
			a.insertMoves(instr)
		}
	}
	a.insertPhiMoves()
	return nil
}

func (a *allocator) preferenceOrder() (core, fpu []int, pairs [][2]int) {
	if !a.opts.PreferCalleeSaves {
		return a.info.AllocatableCore, a.info.AllocatableFpu, a.info.RegisterPairs
	}
	calleeSaves := a.info.CalleeSaves
	for _, first := range []bool{true, false} {
		for _, r := range a.info.AllocatableCore {
			if calleeSaves.ContainsCore(r) == first {
				core = append(core, r)
			}
		}
		for _, r := range a.info.AllocatableFpu {
			if calleeSaves.ContainsFpu(r) == first {
				fpu = append(fpu, r)
			}
		}
		for _, p := range a.info.RegisterPairs {
			if calleeSaves.ContainsCore(p[0]) == first {
				pairs = append(pairs, p)
			}
		}
	}
	return
}

// checkShape bails out on critical edges into blocks with phis: the phi
// moves have nowhere to go.
func (a *allocator) checkShape() error {
	for _, blk := range a.g.Blocks() {
		if len(blk.Phis()) == 0 {
			continue
		}
		for _, pred := range blk.Preds() {
			if len(pred.Succs()) != 1 {
				return backend.NewBailout(backend.BailoutPathologicalShape,
					"critical edge %s -> %s into phis", pred.Name(), blk.Name())
			}
		}
	}
	return nil
}

// conditionsAtUseSite returns the summaries of the conditions folded into instr.
func (a *allocator) conditionsAtUseSite(instr *ir.Instruction) (ret []*backend.LocationSummary) {
	for _, in := range instr.Inputs() {
		if in.IsEmittedAtUseSite() {
			ret = append(ret, a.cg.Summary(in))
		}
	}
	return
}

// assignRegisters resolves the register constraints of instr and of the
// conditions folded into it. Every register is distinct, except for
// PolicySameAsFirstInput outputs.
func (a *allocator) assignRegisters(instr *ir.Instruction) error {
	s := a.cg.Summary(instr)
	summaries := append(a.conditionsAtUseSite(instr), s)

	p := &registerPool{a: a}
	for _, cs := range summaries {
		for i := 0; i < cs.InputCount(); i++ {
			p.block(cs.InAt(i))
			a.recordOutgoingArg(cs.InAt(i))
		}
		for i := 0; i < cs.GetTempCount(); i++ {
			p.block(cs.GetTemp(i))
		}
		p.block(cs.Out())
	}

	for _, cs := range summaries {
		for i := 0; i < cs.InputCount(); i++ {
			loc := cs.InAt(i)
			if !loc.IsUnallocated() || loc.Policy() == backend.PolicyAny {
				continue
			}
			reg, err := p.take(loc.Policy(), cs.Instruction().InputAt(i).Type(), cs.Instruction())
			if err != nil {
				return err
			}
			cs.ResolveInAt(i, reg)
		}
	}
	for i := 0; i < s.GetTempCount(); i++ {
		loc := s.GetTemp(i)
		if !loc.IsUnallocated() {
			continue
		}
		typ := ir.TypeInt32
		if loc.Policy() == backend.PolicyRequiresFpuRegister {
			typ = ir.TypeFloat64
		}
		reg, err := p.take(loc.Policy(), typ, instr)
		if err != nil {
			return err
		}
		s.ResolveTempAt(i, reg)
	}
	if out := s.Out(); out.IsUnallocated() {
		switch out.Policy() {
		case backend.PolicyAny:
		case backend.PolicySameAsFirstInput:
			first := s.InAt(0)
			if !first.IsRegisterKind() {
				panic(fmt.Sprintf("BUG: %s: same as first input %s", instr, first))
			}
			s.ResolveOut(first)
		default:
			reg, err := p.take(out.Policy(), instr.Type(), instr)
			if err != nil {
				return err
			}
			s.ResolveOut(reg)
		}
	}
	a.used = a.used.Union(p.taken)

	if s.OnlyCallsOnSlowPath() {
		a.needsSaveArea = true
		var live, out backend.RegisterSet
		for i := 0; i < s.InputCount(); i++ {
			live.Add(s.InAt(i))
		}
		for i := 0; i < s.GetTempCount(); i++ {
			live.Add(s.GetTemp(i))
		}
		out.Add(s.Out())
		s.SetLiveRegisters(live.Subtract(out))
	}
	return nil
}

func (a *allocator) recordOutgoingArg(loc backend.Location) {
	if !loc.IsStackKind() {
		return
	}
	size := a.info.WordSize
	if loc.IsDoubleStackSlot() {
		size *= 2
	}
	if end := loc.StackIndex() + size; end > a.outgoingArgsSize {
		a.outgoingArgsSize = end
	}
}

// needsHome returns true if v is a value living in the home area.
func (a *allocator) needsHome(v *ir.Instruction) bool {
	switch {
	case v.Type() == ir.TypeVoid, v.IsConstant(), v.IsEmittedAtUseSite():
		return false
	case v.Opcode() == ir.OpCurrentMethod:
		return false
	case v.Opcode() == ir.OpParameterValue:
		_, onStack := a.info.ParameterStackOffset(v)
		return !onStack
	}
	return !a.cg.Summary(v).Out().IsConstant()
}

func (a *allocator) assignHome(v *ir.Instruction) {
	if !a.needsHome(v) {
		return
	}
	size := a.info.WordSize
	if v.Type().Is64Bit() {
		size *= 2
		a.homeSize = (a.homeSize + size - 1) &^ (size - 1)
	}
	a.homes[v] = a.homeSize
	a.homeSize += size
}

func stackLocation(offset int, typ ir.DataType) backend.Location {
	if typ.Is64Bit() {
		return backend.DoubleStackSlot(offset)
	}
	return backend.StackSlot(offset)
}

// assignValueLocations records where every value lives once the frame is known.
func (a *allocator) assignValueLocations() {
	frame := a.cg.Frame()
	set := func(v *ir.Instruction) {
		switch {
		case v.Type() == ir.TypeVoid, v.IsConstant(), v.IsEmittedAtUseSite():
			return
		case v.Opcode() == ir.OpCurrentMethod:
			// Stored by the frame entry.
			a.cg.SetValueLocation(v, backend.StackSlot(0))
		case v.Opcode() == ir.OpParameterValue && !a.needsHome(v):
			off, _ := a.info.ParameterStackOffset(v)
			a.cg.SetValueLocation(v, stackLocation(frame.Size+off, v.Type()))
		default:
			if out := a.cg.Summary(v).Out(); out.IsConstant() {
				a.cg.SetValueLocation(v, out)
				return
			}
			a.cg.SetValueLocation(v, stackLocation(frame.HomeAreaOffset+a.homes[v], v.Type()))
		}
	}
	for _, instr := range a.order {
		set(instr)
	}
	for _, blk := range a.g.Blocks() {
		for _, phi := range blk.Phis() {
			set(phi)
			s := a.cg.Summary(phi)
			for i := 0; i < s.InputCount(); i++ {
				if s.InAt(i).IsUnallocated() {
					s.ResolveInAt(i, a.cg.ValueLocation(phi.InputAt(i)))
				}
			}
			if s.Out().IsUnallocated() {
				s.ResolveOut(a.cg.ValueLocation(phi))
			}
		}
	}
}

func (a *allocator) parallelMoveBefore(instr *ir.Instruction) *backend.ParallelMove {
	return a.cg.ParallelMoveOf(a.g.InsertParallelMoveBefore(instr))
}

// addMove adds src -> dst to pm. A source written by pm is replaced by the
// source of that move, since every source is read before any destination is
// written.
func addMove(pm *backend.ParallelMove, src, dst backend.Location, v *ir.Instruction) {
	if src.Equals(dst) {
		return
	}
	for i := 0; i < pm.NumMoves(); i++ {
		if m := pm.MoveOperandsAt(i); m.Destination().Equals(src) {
			src = m.Source()
			break
		}
	}
	pm.AddMove(src, dst, v.Type(), v)
}

func (a *allocator) insertMoves(instr *ir.Instruction) {
	s := a.cg.Summary(instr)
	for i := 0; i < s.InputCount(); i++ {
		if loc := s.InAt(i); loc.IsUnallocated() {
			s.ResolveInAt(i, a.cg.ValueLocation(instr.InputAt(i)))
		}
	}
	if out := s.Out(); out.IsUnallocated() {
		s.ResolveOut(a.cg.ValueLocation(instr))
	}

	var pm *backend.ParallelMove
	for _, cs := range append(a.conditionsAtUseSite(instr), s) {
		for i := 0; i < cs.InputCount(); i++ {
			dst := cs.InAt(i)
			if dst.IsInvalid() || dst.IsConstant() {
				continue
			}
			v := cs.Instruction().InputAt(i)
			src := a.cg.ValueLocation(v)
			if src.Equals(dst) {
				continue
			}
			if pm == nil {
				pm = a.parallelMoveBefore(instr)
			}
			addMove(pm, src, dst, v)
		}
	}

	if out := s.Out(); out.IsRegisterKind() && instr.Opcode() != ir.OpCurrentMethod {
		if next := a.storeCursor(instr); next != nil {
			addMove(a.parallelMoveBefore(next), out, a.cg.ValueLocation(instr), instr)
		}
	}

	if instr.Env() != nil || s.CanCall() {
		a.markReferenceSlots(s, instr)
	}
}

// storeCursor returns the instruction before which the output of instr is
// stored. Parameters are stored together after the last of them, since their
// registers are live until then.
func (a *allocator) storeCursor(instr *ir.Instruction) *ir.Instruction {
	next := instr.Next()
	if instr.Opcode() != ir.OpParameterValue {
		return next
	}
	for next != nil && (next.Opcode() == ir.OpParameterValue || next.Opcode() == ir.OpParallelMove) {
		next = next.Next()
	}
	return next
}

// markReferenceSlots sets the stack mask bits of the home slots of the
// references instr uses or keeps alive in its environment.
func (a *allocator) markReferenceSlots(s *backend.LocationSummary, instr *ir.Instruction) {
	mark := func(v *ir.Instruction) {
		if v == nil || v.Type() != ir.TypeReference {
			return
		}
		if loc := a.cg.ValueLocation(v); loc.IsStackSlot() {
			s.SetStackBit(loc.StackIndex())
		}
	}
	if env := instr.Env(); env != nil {
		for _, v := range env.Values {
			mark(v)
		}
	}
	for _, v := range instr.Inputs() {
		mark(v)
	}
}

// insertPhiMoves copies the inputs of the phis into their homes at the end
// of each predecessor.
func (a *allocator) insertPhiMoves() {
	for _, blk := range a.g.Blocks() {
		phis := blk.Phis()
		if len(phis) == 0 {
			continue
		}
		for i, pred := range blk.Preds() {
			var pm *backend.ParallelMove
			for _, phi := range phis {
				src, dst := a.cg.ValueLocation(phi.InputAt(i)), a.cg.ValueLocation(phi)
				if src.Equals(dst) {
					continue
				}
				if pm == nil {
					pm = a.parallelMoveBefore(pred.Last())
				}
				addMove(pm, src, dst, phi)
			}
		}
	}
}

// registerPool hands out the registers of one instruction.
type registerPool struct {
	a     *allocator
	taken backend.RegisterSet
}

func (p *registerPool) block(loc backend.Location) { p.taken.Add(loc) }

func (p *registerPool) take(policy backend.Policy, typ ir.DataType, instr *ir.Instruction) (backend.Location, error) {
	switch policy {
	case backend.PolicyRequiresRegister:
		if typ.IsFloatingPoint() {
			panic(fmt.Sprintf("BUG: %s: core register for a %s value", instr, typ))
		}
		if typ.Is64Bit() {
			for _, pr := range p.a.pairs {
				if !p.taken.ContainsCore(pr[0]) && !p.taken.ContainsCore(pr[1]) {
					loc := backend.RegisterPairLocation(pr[0], pr[1])
					p.taken.Add(loc)
					return loc, nil
				}
			}
		} else {
			for _, r := range p.a.core {
				if !p.taken.ContainsCore(r) {
					loc := backend.RegisterLocation(r)
					p.taken.Add(loc)
					return loc, nil
				}
			}
		}
	case backend.PolicyRequiresFpuRegister:
		for _, r := range p.a.fpu {
			if !p.taken.ContainsFpu(r) {
				loc := backend.FpuRegisterLocation(r)
				p.taken.Add(loc)
				return loc, nil
			}
		}
	default:
		panic(fmt.Sprintf("BUG: %s: cannot take a register for policy %s", instr, policy))
	}
	return backend.NoLocation(), backend.NewBailout(backend.BailoutPathologicalShape, "out of registers at %s", instr)
}
