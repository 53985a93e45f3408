package backend

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/irgen/internal/ir"
)

// MoveOperands is one move of a ParallelMove.
type MoveOperands struct {
	source, destination Location
	typ                 ir.DataType
	// instr is the instruction whose value is moved, if any.
	instr *ir.Instruction
}

// NewMoveOperands returns a move of a value of type typ from src to dst.
func NewMoveOperands(src, dst Location, typ ir.DataType, instr *ir.Instruction) *MoveOperands {
	return &MoveOperands{source: src, destination: dst, typ: typ, instr: instr}
}

// Source returns the source location.
func (m *MoveOperands) Source() Location { return m.source }

// Destination returns the destination location.
func (m *MoveOperands) Destination() Location { return m.destination }

// Type returns the type of the moved value.
func (m *MoveOperands) Type() ir.DataType { return m.typ }

// Instruction returns the instruction whose value is moved, or nil.
func (m *MoveOperands) Instruction() *ir.Instruction { return m.instr }

// SetSource changes the source.
func (m *MoveOperands) SetSource(loc Location) { m.source = loc }

// SetDestination changes the destination.
func (m *MoveOperands) SetDestination(loc Location) { m.destination = loc }

// MarkPending clears the destination to mark the move as being resolved, and
// returns the destination.
func (m *MoveOperands) MarkPending() Location {
	if m.IsPending() {
		panic("BUG: move already pending")
	}
	d := m.destination
	m.destination = NoLocation()
	return d
}

// ClearPending restores the destination cleared by MarkPending.
func (m *MoveOperands) ClearPending(dst Location) {
	if !m.IsPending() {
		panic("BUG: move not pending")
	}
	m.destination = dst
}

// IsPending returns true between MarkPending and ClearPending.
func (m *MoveOperands) IsPending() bool {
	return m.destination.IsInvalid() && m.source.IsValid()
}

// IsRedundant returns true if the move does nothing.
func (m *MoveOperands) IsRedundant() bool {
	return m.IsEliminated() || m.source.Equals(m.destination)
}

// Eliminate marks the move as done.
func (m *MoveOperands) Eliminate() {
	m.source, m.destination = NoLocation(), NoLocation()
}

// IsEliminated returns true once the move is done.
func (m *MoveOperands) IsEliminated() bool {
	return m.source.IsInvalid()
}

// Blocks returns true if performing a move to loc would clobber the source of this move.
func (m *MoveOperands) Blocks(loc Location) bool {
	return !m.IsEliminated() && m.source.OverlapsWith(loc)
}

// String implements fmt.Stringer.
func (m *MoveOperands) String() string {
	return fmt.Sprintf("%s -> %s (%s)", m.source, m.destination, m.typ)
}

// ParallelMove is the set of moves of an ir.OpParallelMove instruction. All
// the sources are read before any destination is written.
type ParallelMove struct {
	moves []*MoveOperands
	live  RegisterSet
}

// SetLiveRegisters records the registers holding values across the move
// besides its own sources and destinations. They serve as scratch registers
// only after being spilled.
func (p *ParallelMove) SetLiveRegisters(live RegisterSet) { p.live = live }

// LiveRegisters returns the set given to SetLiveRegisters.
func (p *ParallelMove) LiveRegisters() RegisterSet { return p.live }

// AddMove appends a move. Destinations of the same parallel move never overlap.
func (p *ParallelMove) AddMove(src, dst Location, typ ir.DataType, instr *ir.Instruction) {
	if dst.IsConstant() || dst.IsInvalid() || dst.IsUnallocated() || src.IsInvalid() || src.IsUnallocated() {
		panic(fmt.Sprintf("BUG: invalid move %s -> %s", src, dst))
	}
	for _, m := range p.moves {
		if m.destination.OverlapsWith(dst) {
			panic(fmt.Sprintf("BUG: overlapping destination %s in %s", dst, p))
		}
	}
	p.moves = append(p.moves, NewMoveOperands(src, dst, typ, instr))
}

// NumMoves returns the number of moves.
func (p *ParallelMove) NumMoves() int { return len(p.moves) }

// MoveOperandsAt returns the i-th move.
func (p *ParallelMove) MoveOperandsAt(i int) *MoveOperands { return p.moves[i] }

// IsEmpty returns true if there is no move.
func (p *ParallelMove) IsEmpty() bool { return len(p.moves) == 0 }

// String implements fmt.Stringer.
func (p *ParallelMove) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, m := range p.moves {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.String())
	}
	sb.WriteString("}")
	return sb.String()
}
