package ir

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Graph is the flow graph of one method. Blocks are kept in the order the
// code is laid out: the entry block first, the exit block (if any) last.
type Graph struct {
	name        string
	methodIndex uint32
	returnType  DataType
	paramTypes  []DataType
	numVRegs    int

	blocks        []*BasicBlock
	instrs        []*Instruction
	params        []*Instruction
	currentMethod *Instruction
	entry, exit   *BasicBlock
}

// Name returns the name of the method.
func (g *Graph) Name() string { return g.name }

// MethodIndex returns the dex method index of the compiled method.
func (g *Graph) MethodIndex() uint32 { return g.methodIndex }

// SetMethodIndex sets the dex method index of the compiled method.
func (g *Graph) SetMethodIndex(idx uint32) { g.methodIndex = idx }

// ReturnType returns the return type of the method.
func (g *Graph) ReturnType() DataType { return g.returnType }

// ParameterTypes returns the types of the parameters, the receiver included for instance methods.
func (g *Graph) ParameterTypes() []DataType { return g.paramTypes }

// Parameters returns the ParameterValue instructions, in parameter order.
func (g *Graph) Parameters() []*Instruction { return g.params }

// CurrentMethod returns the CurrentMethod instruction of the entry block.
func (g *Graph) CurrentMethod() *Instruction { return g.currentMethod }

// NumberOfVRegs returns the number of dex registers of the method.
func (g *Graph) NumberOfVRegs() int { return g.numVRegs }

// Blocks returns the blocks in layout order.
func (g *Graph) Blocks() []*BasicBlock { return g.blocks }

// EntryBlock returns the entry block.
func (g *Graph) EntryBlock() *BasicBlock { return g.entry }

// ExitBlock returns the exit block, or nil.
func (g *Graph) ExitBlock() *BasicBlock { return g.exit }

// Instruction returns the instruction with the given id.
func (g *Graph) Instruction(id int) *Instruction { return g.instrs[id] }

// NumberOfInstructions returns the number of allocated instructions, which
// bounds every instruction id.
func (g *Graph) NumberOfInstructions() int { return len(g.instrs) }

// HasLoops returns true if any block is a loop header.
func (g *Graph) HasLoops() bool {
	for _, b := range g.blocks {
		if b.loopHeader {
			return true
		}
	}
	return false
}

func (g *Graph) allocateInstruction() *Instruction {
	instr := &Instruction{id: len(g.instrs)}
	g.instrs = append(g.instrs, instr)
	return instr
}

func (g *Graph) allocateBlock() *BasicBlock {
	b := &BasicBlock{id: len(g.blocks), graph: g}
	g.blocks = append(g.blocks, b)
	return b
}

// InsertParallelMoveBefore inserts an empty ParallelMove right before instr
// and returns it. If a ParallelMove already precedes instr, that one is returned.
func (g *Graph) InsertParallelMoveBefore(instr *Instruction) *Instruction {
	blk := instr.blk
	for i, in := range blk.instrs {
		if in == instr {
			if i > 0 && blk.instrs[i-1].opcode == OpParallelMove {
				return blk.instrs[i-1]
			}
			break
		}
	}
	pm := g.allocateInstruction().AsParallelMove()
	pm.dexPC = instr.dexPC
	blk.InsertBefore(pm, instr)
	return pm
}

// computeLoops marks loop headers. A back edge is an edge to a block which
// is not after its source in layout order.
func (g *Graph) computeLoops() {
	for _, b := range g.blocks {
		b.loopHeader, b.backEdges = false, b.backEdges[:0]
	}
	for _, b := range g.blocks {
		for _, s := range b.succs {
			if s.id <= b.id {
				s.loopHeader = true
				s.backEdges = append(s.backEdges, b)
			}
		}
	}
}

// Validate checks the structural invariants of the graph and returns every
// violation found, combined.
func (g *Graph) Validate() (err error) {
	if g.entry == nil || len(g.blocks) == 0 || g.blocks[0] != g.entry {
		return fmt.Errorf("%s: entry block must be the first block", g.name)
	}
	for _, b := range g.blocks {
		err = multierr.Append(err, g.validateBlock(b))
	}
	return
}

func (g *Graph) validateBlock(b *BasicBlock) (err error) {
	if len(b.instrs) == 0 {
		return fmt.Errorf("%s: empty block", b.Name())
	}
	for _, s := range b.succs {
		if s.PredIndex(b) < 0 {
			err = multierr.Append(err, fmt.Errorf("%s: not a predecessor of its successor %s", b.Name(), s.Name()))
		}
	}
	for _, p := range b.preds {
		found := false
		for _, s := range p.succs {
			found = found || s == b
		}
		if !found {
			err = multierr.Append(err, fmt.Errorf("%s: not a successor of its predecessor %s", b.Name(), p.Name()))
		}
	}
	for _, phi := range b.phis {
		if len(phi.inputs) != len(b.preds) {
			err = multierr.Append(err, fmt.Errorf("%s: %s has %d inputs for %d predecessors",
				b.Name(), phi, len(phi.inputs), len(b.preds)))
		}
		for _, in := range phi.inputs {
			if in.typ.Kind() != phi.typ.Kind() {
				err = multierr.Append(err, fmt.Errorf("%s: %s has input v%d of type %s", b.Name(), phi, in.id, in.typ))
			}
		}
	}
	for i, instr := range b.instrs {
		last := i == len(b.instrs)-1
		if instr.opcode.IsControlFlow() != last {
			if last {
				err = multierr.Append(err, fmt.Errorf("%s: must end with a control flow instruction, but got %s", b.Name(), instr))
			} else {
				err = multierr.Append(err, fmt.Errorf("%s: control flow instruction %s in the middle of the block", b.Name(), instr))
			}
		}
		err = multierr.Append(err, g.validateInstruction(instr))
	}
	if want, ok := expectedSuccessors(b.Last()); ok && want != len(b.succs) {
		err = multierr.Append(err, fmt.Errorf("%s: %s expects %d successors, but got %d",
			b.Name(), b.Last().opcode, want, len(b.succs)))
	}
	return
}

func expectedSuccessors(last *Instruction) (int, bool) {
	switch last.opcode {
	case OpGoto:
		return 1, true
	case OpIf:
		return 2, true
	case OpPackedSwitch:
		_, n := last.PackedSwitchData()
		return int(n) + 1, true
	case OpExit:
		return 0, true
	}
	return 0, false
}

func (g *Graph) validateInstruction(instr *Instruction) (err error) {
	for _, in := range instr.inputs {
		if in.blk == nil || in.id >= len(g.instrs) || g.instrs[in.id] != in {
			err = multierr.Append(err, fmt.Errorf("%s: input v%d is not in the graph", instr, in.id))
		}
	}
	if instr.NeedsEnvironment() && instr.env == nil {
		err = multierr.Append(err, fmt.Errorf("%s: missing environment", instr))
	}
	switch op := instr.opcode; {
	case op == OpInvalid || op >= opcodeEnd:
		err = multierr.Append(err, fmt.Errorf("v%d: invalid opcode", instr.id))
	case op >= OpAdd && op <= OpRor && op != OpNeg && op != OpNot && op != OpBooleanNot:
		x, y := instr.BinaryData()
		switch op {
		case OpShl, OpShr, OpUShr, OpRor:
			if !y.typ.IsInt32Like() {
				err = multierr.Append(err, fmt.Errorf("%s: shift distance must be an int", instr))
			}
			if x.typ.Kind() != instr.typ.Kind() {
				err = multierr.Append(err, fmt.Errorf("%s: type mismatch", instr))
			}
		default:
			if x.typ.Kind() != instr.typ.Kind() || y.typ.Kind() != instr.typ.Kind() {
				err = multierr.Append(err, fmt.Errorf("%s: type mismatch", instr))
			}
		}
	case op.IsCondition(), op == OpCompare:
		x, y := instr.inputs[0], instr.inputs[1]
		if x.typ.Kind() != y.typ.Kind() {
			err = multierr.Append(err, fmt.Errorf("%s: comparing %s with %s", instr, x.typ, y.typ))
		}
	}
	if instr.IsEmittedAtUseSite() {
		if len(instr.users) != 1 || instr.NextDisregardingMoves() != instr.users[0] {
			err = multierr.Append(err, fmt.Errorf("%s: emitted at use site but not used by the next instruction", instr))
		}
	}
	return
}

// String returns the listing of the whole graph. It is stable, so it
// also serves as the fingerprint of the method.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(", g.name)
	for i, t := range g.paramTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
	fmt.Fprintf(&sb, ") %s vregs=%d\n", g.returnType, g.numVRegs)
	for _, b := range g.blocks {
		sb.WriteString(b.String())
	}
	return sb.String()
}
