package ir

import (
	"fmt"
	"strings"
)

// BasicBlock is a sequence of instructions ending with a control flow
// instruction. Phis are kept separately and conceptually execute at the
// entry of the block.
type BasicBlock struct {
	id     int
	graph  *Graph
	phis   []*Instruction
	instrs []*Instruction
	preds  []*BasicBlock
	succs  []*BasicBlock

	loopHeader bool
	backEdges  []*BasicBlock
}

// ID returns the index of this block in the graph's block order.
func (b *BasicBlock) ID() int { return b.id }

// Name returns the name of this block used in listings.
func (b *BasicBlock) Name() string { return fmt.Sprintf("blk%d", b.id) }

// Phis returns the phis of this block.
func (b *BasicBlock) Phis() []*Instruction { return b.phis }

// Instructions returns the instructions of this block, excluding phis.
func (b *BasicBlock) Instructions() []*Instruction { return b.instrs }

// Preds returns the predecessors of this block. The order matches the inputs of the phis.
func (b *BasicBlock) Preds() []*BasicBlock { return b.preds }

// Succs returns the successors of this block. For an If, the true successor is first.
func (b *BasicBlock) Succs() []*BasicBlock { return b.succs }

// PredIndex returns the position of pred in Preds, or -1.
func (b *BasicBlock) PredIndex(pred *BasicBlock) int {
	for i, p := range b.preds {
		if p == pred {
			return i
		}
	}
	return -1
}

// First returns the first non-phi instruction, or nil for an empty block.
func (b *BasicBlock) First() *Instruction {
	if len(b.instrs) == 0 {
		return nil
	}
	return b.instrs[0]
}

// Last returns the last instruction of this block, or nil for an empty block.
func (b *BasicBlock) Last() *Instruction {
	if len(b.instrs) == 0 {
		return nil
	}
	return b.instrs[len(b.instrs)-1]
}

// IsEntry returns true if this is the entry block of the graph.
func (b *BasicBlock) IsEntry() bool { return b.graph.entry == b }

// IsExit returns true if this is the exit block of the graph.
func (b *BasicBlock) IsExit() bool { return b.graph.exit == b }

// IsLoopHeader returns true if any back edge targets this block.
func (b *BasicBlock) IsLoopHeader() bool { return b.loopHeader }

// BackEdges returns the blocks jumping back to this loop header.
func (b *BasicBlock) BackEdges() []*BasicBlock { return b.backEdges }

// IsSingleGoto returns true for a block containing nothing but a Goto.
func (b *BasicBlock) IsSingleGoto() bool {
	return len(b.phis) == 0 && len(b.instrs) == 1 && b.instrs[0].opcode == OpGoto
}

// AddInstruction appends instr to this block.
func (b *BasicBlock) AddInstruction(instr *Instruction) {
	if instr.blk != nil {
		panic("BUG: instruction already in a block: " + instr.String())
	}
	instr.blk = b
	b.instrs = append(b.instrs, instr)
}

// AddPhi appends phi to the phis of this block.
func (b *BasicBlock) AddPhi(phi *Instruction) {
	if phi.opcode != OpPhi {
		panic("BUG: not a phi: " + phi.String())
	}
	phi.blk = b
	b.phis = append(b.phis, phi)
}

// InsertBefore inserts instr right before cursor, which must be in this block.
func (b *BasicBlock) InsertBefore(instr, cursor *Instruction) {
	for i, in := range b.instrs {
		if in != cursor {
			continue
		}
		instr.blk = b
		b.instrs = append(b.instrs, nil)
		copy(b.instrs[i+1:], b.instrs[i:])
		b.instrs[i] = instr
		return
	}
	panic("BUG: cursor not in block " + b.Name())
}

// insertFirst inserts instr at the beginning of the block.
func (b *BasicBlock) insertFirst(instr *Instruction) {
	instr.blk = b
	b.instrs = append([]*Instruction{instr}, b.instrs...)
}

func (b *BasicBlock) addSuccessor(succ *BasicBlock) {
	b.succs = append(b.succs, succ)
	succ.preds = append(succ.preds, b)
}

// String implements fmt.Stringer.
func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString(b.Name())
	if len(b.preds) > 0 {
		sb.WriteString(" <-- (")
		for i, p := range b.preds {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name())
		}
		sb.WriteString(")")
	}
	if b.loopHeader {
		sb.WriteString(" loop")
	}
	sb.WriteString(":\n")
	for _, phi := range b.phis {
		fmt.Fprintf(&sb, "\t%s\n", phi)
	}
	for _, in := range b.instrs {
		fmt.Fprintf(&sb, "\t%s\n", in)
	}
	if len(b.succs) > 0 {
		sb.WriteString("\t--> ")
		for i, s := range b.succs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.Name())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
