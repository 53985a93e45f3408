package ir

import (
	"fmt"
	"math"
)

// Builder builds a Graph. It tracks the dex registers of the method so that
// instructions needing an environment get a snapshot of them at insertion.
//
//	b := NewBuilder("Main.add", TypeInt32, TypeInt32, TypeInt32)
//	blk := b.AllocateBlock()
//	b.SetCurrentBlock(blk)
//	sum := b.InsertInstruction(b.AllocateInstruction().AsBinary(OpAdd, TypeInt32, b.Parameter(0), b.Parameter(1)))
//	b.InsertInstruction(b.AllocateInstruction().AsReturn(sum))
//	g, err := b.Finish()
type Builder struct {
	g      *Graph
	cur    *BasicBlock
	dexPC  uint32
	locals []*Instruction

	consts map[constantKey]*Instruction
}

type constantKey struct {
	op   Opcode
	bits uint64
}

// NewBuilder returns a Builder for a method with the given signature. The
// entry block is created with CurrentMethod and one ParameterValue per parameter.
func NewBuilder(name string, ret DataType, params ...DataType) *Builder {
	g := &Graph{name: name, returnType: ret, paramTypes: params}
	b := &Builder{g: g, consts: map[constantKey]*Instruction{}}
	g.entry = g.allocateBlock()
	g.currentMethod = g.allocateInstruction().AsCurrentMethod()
	g.entry.AddInstruction(g.currentMethod)
	for i, t := range params {
		p := g.allocateInstruction().AsParameterValue(i, t)
		g.entry.AddInstruction(p)
		g.params = append(g.params, p)
	}
	b.cur = g.entry
	return b
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph { return b.g }

// EntryBlock returns the entry block.
func (b *Builder) EntryBlock() *BasicBlock { return b.g.entry }

// Parameter returns the idx-th ParameterValue.
func (b *Builder) Parameter(idx int) *Instruction { return b.g.params[idx] }

// CurrentMethod returns the CurrentMethod instruction.
func (b *Builder) CurrentMethod() *Instruction { return b.g.currentMethod }

// SetNumberOfVRegs sets the number of dex registers, all initially undefined.
func (b *Builder) SetNumberOfVRegs(n int) {
	b.g.numVRegs = n
	b.locals = make([]*Instruction, n)
}

// SetLocal records that the dex register reg holds v.
func (b *Builder) SetLocal(reg int, v *Instruction) { b.locals[reg] = v }

// Local returns the value of the dex register reg.
func (b *Builder) Local(reg int) *Instruction { return b.locals[reg] }

// SetDexPC sets the dex pc of the instructions inserted next.
func (b *Builder) SetDexPC(pc uint32) { b.dexPC = pc }

// AllocateBlock appends a new block to the layout order.
func (b *Builder) AllocateBlock() *BasicBlock { return b.g.allocateBlock() }

// SetCurrentBlock sets the block where instructions are inserted.
func (b *Builder) SetCurrentBlock(blk *BasicBlock) { b.cur = blk }

// CurrentBlock returns the block where instructions are inserted.
func (b *Builder) CurrentBlock() *BasicBlock { return b.cur }

// AllocateInstruction returns a fresh instruction to be initialized with one of the AsXxx methods.
func (b *Builder) AllocateInstruction() *Instruction { return b.g.allocateInstruction() }

// InsertInstruction appends instr to the current block and returns it.
func (b *Builder) InsertInstruction(instr *Instruction) *Instruction {
	if instr.opcode == OpInvalid {
		panic("BUG: inserting an uninitialized instruction")
	}
	if instr.opcode.IsConstant() {
		panic("BUG: constants must be created with the constant helpers")
	}
	instr.dexPC = b.dexPC
	if instr.NeedsEnvironment() {
		instr.env = b.snapshot()
	}
	if instr.opcode == OpPhi {
		b.cur.AddPhi(instr)
	} else {
		b.cur.AddInstruction(instr)
	}
	return instr
}

func (b *Builder) snapshot() *Environment {
	env := &Environment{Values: make([]*Instruction, len(b.locals)), DexPC: b.dexPC}
	copy(env.Values, b.locals)
	return env
}

// Connect adds the edge from -> to. For an If, connect the true successor first.
func (b *Builder) Connect(from, to *BasicBlock) { from.addSuccessor(to) }

func (b *Builder) constant(op Opcode, bits uint64, init func(*Instruction)) *Instruction {
	key := constantKey{op: op, bits: bits}
	if c, ok := b.consts[key]; ok {
		return c
	}
	c := b.g.allocateInstruction()
	init(c)
	// Constants live at the beginning of the entry block, after the parameters.
	entry := b.g.entry
	pos := 1 + len(b.g.params)
	c.blk = entry
	entry.instrs = append(entry.instrs, nil)
	copy(entry.instrs[pos+1:], entry.instrs[pos:])
	entry.instrs[pos] = c
	b.consts[key] = c
	return c
}

// IntConstant returns the unique IntConstant of value v.
func (b *Builder) IntConstant(v int32) *Instruction {
	return b.constant(OpIntConstant, uint64(uint32(v)), func(i *Instruction) { i.AsIntConstant(v) })
}

// LongConstant returns the unique LongConstant of value v.
func (b *Builder) LongConstant(v int64) *Instruction {
	return b.constant(OpLongConstant, uint64(v), func(i *Instruction) { i.AsLongConstant(v) })
}

// FloatConstant returns the unique FloatConstant with the bits of v.
func (b *Builder) FloatConstant(v float32) *Instruction {
	return b.constant(OpFloatConstant, uint64(math.Float32bits(v)), func(i *Instruction) { i.AsFloatConstant(v) })
}

// DoubleConstant returns the unique DoubleConstant with the bits of v.
func (b *Builder) DoubleConstant(v float64) *Instruction {
	return b.constant(OpDoubleConstant, math.Float64bits(v), func(i *Instruction) { i.AsDoubleConstant(v) })
}

// NullConstant returns the unique NullConstant.
func (b *Builder) NullConstant() *Instruction {
	return b.constant(OpNullConstant, 0, func(i *Instruction) { i.AsNullConstant() })
}

// Finish terminates the graph: the entry block jumps to the next block, an
// exit block is appended as the successor of every returning or throwing
// block, conditions used only by the branch right after them are marked as
// emitted at use site, and loops are computed. The graph is then validated.
func (b *Builder) Finish() (*Graph, error) {
	g := b.g
	if g.exit != nil {
		return nil, fmt.Errorf("%s: already finished", g.name)
	}
	if last := g.entry.Last(); last == nil || !last.opcode.IsControlFlow() {
		if len(g.blocks) < 2 {
			return nil, fmt.Errorf("%s: no block after the entry block", g.name)
		}
		g.entry.AddInstruction(g.allocateInstruction().AsGoto())
		g.entry.addSuccessor(g.blocks[1])
	}

	exit := g.allocateBlock()
	exit.AddInstruction(g.allocateInstruction().AsExit())
	g.exit = exit
	for _, blk := range g.blocks {
		last := blk.Last()
		if last == nil {
			continue
		}
		switch last.opcode {
		case OpReturn, OpReturnVoid, OpThrow:
			if len(blk.succs) == 0 {
				blk.addSuccessor(exit)
			}
		}
	}

	for _, blk := range g.blocks {
		for _, instr := range blk.instrs {
			if !instr.opcode.IsCondition() || len(instr.users) != 1 {
				continue
			}
			user := instr.users[0]
			if user.opcode != OpIf && user.opcode != OpSelect {
				continue
			}
			if user.opcode == OpSelect && user.inputs[2] != instr {
				continue
			}
			if instr.Next() == user {
				instr.MarkEmittedAtUseSite()
			}
		}
	}
	g.computeLoops()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
