package backend

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/ir"
)

// MoveEmitter is implemented by an architecture to let MoveResolver emit code.
type MoveEmitter interface {
	// EmitMove emits the code copying the value of type typ from src to dst.
	EmitMove(src, dst Location, typ ir.DataType)
	// EmitSwap emits the code exchanging the contents of a and b.
	EmitSwap(a, b Location, typ ir.DataType)
	// CanSwap returns true if EmitSwap supports exchanging a and b.
	CanSwap(a, b Location) bool
	// AllocateScratch returns a location able to receive the value of src,
	// overlapping none of the locations for which inUse returns true. The
	// registers in live hold values across the move and must be spilled
	// before use. If the architecture had to free a register by spilling it,
	// spilled is true: stack locations keep their meaning since the
	// architecture adjusts stack offsets while the spill is active.
	AllocateScratch(src Location, typ ir.DataType, inUse func(Location) bool, live RegisterSet) (scratch Location, spilled bool)
	// FreeScratch releases a location returned by AllocateScratch, restoring
	// the spilled register if any. Scratches are freed in reverse allocation order.
	FreeScratch(scratch Location, spilled bool)
}

// MoveResolverStats counts what the resolver emitted.
type MoveResolverStats struct {
	Moves, Swaps, ScratchAcquisitions, Spills int
}

// MoveResolver sequentializes parallel moves.
//
// Moves which are exactly each other's inverse are exchanged with one swap
// when the architecture supports it. The remaining moves are performed in
// dependency order: before a location is written, every move reading it is
// performed first. A cycle is broken by moving one source into a scratch
// location and finishing the broken move once its destination is free.
// Moves from constants are performed last.
type MoveResolver struct {
	emitter MoveEmitter
	moves   []*MoveOperands
	// pending holds the moves from a scratch location breaking a cycle.
	pending   []*MoveOperands
	scratches []resolverScratch
	all       []Location
	// live is the LiveRegisters of the parallel move being resolved.
	live  RegisterSet
	Stats MoveResolverStats
}

type resolverScratch struct {
	loc     Location
	spilled bool
}

// NewMoveResolver returns a MoveResolver emitting code with e.
func NewMoveResolver(e MoveEmitter) *MoveResolver {
	return &MoveResolver{emitter: e}
}

// EmitNativeCode emits the code of pm. pm itself is left untouched.
func (r *MoveResolver) EmitNativeCode(pm *ParallelMove) {
	r.live = pm.live
	r.buildInitialMoveList(pm)

	r.emitSwaps()

	for i, m := range r.moves {
		// Constants don't block other moves, and skipping them keeps their
		// register destinations available as scratches.
		if !m.IsEliminated() && !m.source.IsConstant() {
			r.performMove(i)
		}
	}

	// Register destinations first so that later moves of the same constant
	// copy the register instead of materializing the constant again.
	for _, m := range r.moves {
		if m.IsEliminated() || !m.destination.IsRegisterKind() {
			continue
		}
		src, dst := m.source, m.destination
		r.emit(src, dst, m.typ)
		m.Eliminate()
		r.updateMoveSource(src, dst)
	}
	for _, m := range r.moves {
		if !m.IsEliminated() {
			r.emit(m.source, m.destination, m.typ)
			m.Eliminate()
		}
	}

	if len(r.pending) != 0 {
		panic(fmt.Sprintf("BUG: %d pending moves left after resolving %s", len(r.pending), pm))
	}
	for i := len(r.scratches) - 1; i >= 0; i-- {
		s := r.scratches[i]
		r.emitter.FreeScratch(s.loc, s.spilled)
	}
	r.moves, r.scratches, r.all = r.moves[:0], r.scratches[:0], r.all[:0]
	r.live = RegisterSet{}
}

func (r *MoveResolver) buildInitialMoveList(pm *ParallelMove) {
	for _, m := range pm.moves {
		r.all = append(r.all, m.source, m.destination)
		if m.IsRedundant() {
			continue
		}
		r.moves = append(r.moves, NewMoveOperands(m.source, m.destination, m.typ, m.instr))
	}
}

func (r *MoveResolver) emit(src, dst Location, typ ir.DataType) {
	r.emitter.EmitMove(src, dst, typ)
	r.Stats.Moves++
}

// emitSwaps exchanges the pairs of moves a -> b, b -> a in one go.
func (r *MoveResolver) emitSwaps() {
	for i, m := range r.moves {
		if m.IsEliminated() || m.source.IsConstant() {
			continue
		}
		for j := i + 1; j < len(r.moves); j++ {
			o := r.moves[j]
			if o.IsEliminated() || !o.source.Equals(m.destination) || !o.destination.Equals(m.source) {
				continue
			}
			a, b := m.source, m.destination
			if !r.emitter.CanSwap(a, b) || !r.swappable(a, b) {
				break
			}
			r.emitter.EmitSwap(a, b, m.typ)
			r.Stats.Swaps++
			m.Eliminate()
			o.Eliminate()
			r.updateSourceOf(a, b)
			break
		}
	}
}

// swappable returns true if every other move reading a or b reads one of
// them entirely, or one of their halves, so that its source can be rewritten.
func (r *MoveResolver) swappable(a, b Location) bool {
	for _, m := range r.moves {
		if m.IsEliminated() {
			continue
		}
		src := m.source
		if !src.OverlapsWith(a) && !src.OverlapsWith(b) {
			continue
		}
		if _, ok := swappedSource(src, a, b); !ok {
			return false
		}
	}
	return true
}

func swappedSource(src, a, b Location) (Location, bool) {
	switch {
	case src.Equals(a):
		return b, true
	case src.Equals(b):
		return a, true
	}
	if hasHalves(a) && hasHalves(b) {
		switch {
		case src.Equals(a.Low()):
			return b.Low(), true
		case src.Equals(a.High()):
			return b.High(), true
		case src.Equals(b.Low()):
			return a.Low(), true
		case src.Equals(b.High()):
			return a.High(), true
		}
	}
	return NoLocation(), false
}

func hasHalves(l Location) bool {
	return l.IsPair() || l.IsDoubleStackSlot()
}

// updateSourceOf rewrites the sources of the remaining moves after a and b were swapped.
func (r *MoveResolver) updateSourceOf(a, b Location) {
	for _, m := range r.moves {
		if m.IsEliminated() {
			continue
		}
		if s, ok := swappedSource(m.source, a, b); ok {
			m.source = s
		}
	}
}

func (r *MoveResolver) performMove(index int) {
	move := r.moves[index]
	if move.IsRedundant() {
		move.Eliminate()
		return
	}

	// Depth-first: every other move reading the destination goes first.
	// Moves marked pending are up the recursion and form a cycle with this one.
	dst := move.MarkPending()
	for i, other := range r.moves {
		if other.Blocks(dst) && !other.IsPending() {
			r.performMove(i)
		}
	}
	move.ClearPending(dst)

	src, typ := move.source, move.typ
	if move.IsEliminated() {
		panic("BUG: move performed twice")
	}
	if r.isBlockedByMoves(dst) {
		// Cycle: park the source in a scratch location, and finish the move
		// once nothing reads dst anymore.
		scratch := r.scratchLocationFor(src, typ)
		r.emit(src, scratch, typ)
		move.Eliminate()
		r.pending = append(r.pending, NewMoveOperands(scratch, dst, typ, move.instr))
	} else {
		r.emit(src, dst, typ)
		move.Eliminate()
		r.updateMoveSource(src, dst)
	}

	for {
		i := r.unblockedPendingMove()
		if i < 0 {
			break
		}
		p := r.pending[i]
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		r.emit(p.source, p.destination, p.typ)
		r.updateMoveSource(p.source, p.destination)
	}
}

// isBlockedByMoves returns true if a move not yet performed reads loc.
func (r *MoveResolver) isBlockedByMoves(loc Location) bool {
	for _, m := range r.moves {
		if m.Blocks(loc) {
			return true
		}
	}
	for _, m := range r.pending {
		if m.Blocks(loc) {
			return true
		}
	}
	return false
}

func (r *MoveResolver) unblockedPendingMove() int {
	for i, m := range r.pending {
		if !r.isBlockedByMoves(m.destination) {
			return i
		}
	}
	return -1
}

// updateMoveSource makes the moves reading from read to instead. Both hold
// the same value at this point.
func (r *MoveResolver) updateMoveSource(from, to Location) {
	for _, m := range r.moves {
		if !m.IsEliminated() && !m.IsPending() && m.source.Equals(from) {
			m.source = to
		}
	}
}

// scratchLocationFor finds a location to hold src. Scratches acquired
// earlier and destinations not written yet are reused when nothing reads them.
func (r *MoveResolver) scratchLocationFor(src Location, typ ir.DataType) Location {
	kind := src.Kind()
	for _, s := range r.scratches {
		if s.loc.Kind() == kind && !r.isBlockedByMoves(s.loc) && !r.isPendingDestination(s.loc) {
			return s.loc
		}
	}
	for _, m := range r.moves {
		d := m.destination
		if d.Kind() == kind && !r.isBlockedByMoves(d) && !r.isPendingDestination(d) {
			return d
		}
	}

	inUse := func(l Location) bool {
		for _, a := range r.all {
			if a.OverlapsWith(l) || l.OverlapsWith(a) {
				return true
			}
		}
		for _, s := range r.scratches {
			if s.loc.OverlapsWith(l) {
				return true
			}
		}
		return false
	}
	loc, spilled := r.emitter.AllocateScratch(src, typ, inUse, r.live)
	if !loc.IsValid() {
		panic("BUG: no scratch location for " + src.String())
	}
	r.scratches = append(r.scratches, resolverScratch{loc: loc, spilled: spilled})
	r.Stats.ScratchAcquisitions++
	if spilled {
		r.Stats.Spills++
	}
	return loc
}

func (r *MoveResolver) isPendingDestination(l Location) bool {
	for _, m := range r.pending {
		if m.destination.OverlapsWith(l) {
			return true
		}
	}
	return false
}
