package emulator

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/runtime"
)

// SetGcMarking sets the flag of the thread telling whether the concurrent
// copying collector is marking, which enables the read barriers.
func (e *Emulator) SetGcMarking(marking bool) {
	e.mem.put32(threadAddress+runtime.ThreadIsGcMarkingOffset, b2u(marking))
}

// SetGray sets or clears the gray bit of the lock word of obj.
func (e *Emulator) SetGray(obj uint32, gray bool) error {
	if !e.isObject(obj) {
		return fmt.Errorf("%#x is not an object", obj)
	}
	lw := e.mem.u32(obj + runtime.ObjectLockWordOffset)
	if gray {
		lw |= runtime.LockWordGrayBit
	} else {
		lw &^= runtime.LockWordGrayBit
	}
	e.mem.put32(obj+runtime.ObjectLockWordOffset, lw)
	return nil
}

// IsGray returns true if the gray bit of obj is set.
func (e *Emulator) IsGray(obj uint32) bool {
	return e.isObject(obj) && e.mem.u32(obj+runtime.ObjectLockWordOffset)&runtime.LockWordGrayBit != 0
}

// Forward makes the read barrier return to for references to from, as if
// the collector had moved from.
func (e *Emulator) Forward(from, to uint32) error {
	if !e.isObject(from) || !e.isObject(to) {
		return fmt.Errorf("cannot forward %#x to %#x", from, to)
	}
	e.forwarding[from] = to
	return nil
}

// mark is the ReadBarrierMark entrypoint: the reference is forwarded to its
// to-space copy, which is left black.
func (e *Emulator) mark(ref uint32) uint32 {
	e.Stats.Marks++
	if to, ok := e.forwarding[ref]; ok {
		ref = to
	}
	if e.isObject(ref) {
		_ = e.SetGray(ref, false)
	}
	return ref
}

func cardOf(addr uint32) uint32 { return cardTableBase + addr>>runtime.CardShift }

func (e *Emulator) markCard(obj uint32) { e.mem.put8(cardOf(obj), runtime.CardDirty) }

// IsCardDirty returns true if the card of the object at addr is dirty.
func (e *Emulator) IsCardDirty(addr uint32) bool {
	return e.mem.u8(cardOf(addr)) == runtime.CardDirty
}

// ClearCards cleans the card table.
func (e *Emulator) ClearCards() {
	start := cardOf(heapAddress)
	end := cardOf(memorySize - 1)
	for a := start; a <= end; a++ {
		e.mem.put8(a, 0)
	}
}

// RequestSuspend sets the suspend request flag of the thread, which makes the
// next suspend check call TestSuspend.
func (e *Emulator) RequestSuspend() {
	flags := e.mem.u32(threadAddress + runtime.ThreadFlagsOffset)
	e.mem.put32(threadAddress+runtime.ThreadFlagsOffset, flags|runtime.ThreadFlagSuspendRequest)
}

// SuspendRequested returns true while the suspend request is pending.
func (e *Emulator) SuspendRequested() bool {
	return e.mem.u32(threadAddress+runtime.ThreadFlagsOffset)&runtime.ThreadFlagSuspendRequest != 0
}

// LockCount returns how many times the monitor of obj is held.
func (e *Emulator) LockCount(obj uint32) int { return e.locks[obj] }

// ReadUint32 reads the word at addr.
func (e *Emulator) ReadUint32(addr uint32) (uint32, error) {
	v, err := e.read(addr, 4)
	return uint32(v), err
}

// ReadUint64 reads the doubleword at addr.
func (e *Emulator) ReadUint64(addr uint32) (uint64, error) {
	return e.read(addr, 8)
}

// WriteUint32 writes the word at addr.
func (e *Emulator) WriteUint32(addr, v uint32) error {
	return e.write(addr, 4, uint64(v))
}

// WriteUint64 writes the doubleword at addr.
func (e *Emulator) WriteUint64(addr uint32, v uint64) error {
	return e.write(addr, 8, v)
}

func (e *Emulator) read(addr, size uint32) (uint64, error) {
	v, err := e.load(addr, size)
	if err != nil {
		return 0, fmt.Errorf("reading %d bytes at %#x: invalid address", size, addr)
	}
	return v, nil
}

func (e *Emulator) write(addr, size uint32, v uint64) error {
	if err := e.store(addr, size, v); err != nil {
		return fmt.Errorf("writing %d bytes at %#x: invalid address", size, addr)
	}
	return nil
}
