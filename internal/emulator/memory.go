package emulator

import (
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/irgen/internal/runtime"
)

// Layout of the emulated address space.
//
//	0x000000  null page, faults
//	0x010000  Thread
//	0x020000  .bss entries
//	0x028000  JIT root tables
//	0x030000  card table
//	0x080000  entrypoint traps, one word each, and the halt address
//	0x100000  code
//	0x400000  heap
//	          stack guard, faults
//	          stack, growing down from stackTop
const (
	memorySize = 16 << 20

	threadAddress    = 0x10000
	bssAddress       = 0x20000
	bssEnd           = 0x28000
	rootsAddress     = 0x28000
	rootsEnd         = 0x30000
	cardTableAddress = 0x30000
	// cardTableBase is biased so that its low byte is the dirty card value.
	cardTableBase = cardTableAddress + runtime.CardDirty
	trapAddress   = 0x80000
	trapEnd       = 0x81000
	haltAddress   = trapAddress + 0x800
	codeAddress   = 0x100000
	codeEnd       = 0x400000
	heapAddress   = 0x400000
	stackTop      = memorySize - 0x1000
)

func trapOf(e runtime.QuickEntrypoint) uint32 { return trapAddress + 4*uint32(e) }

// faultKind tells why a memory access faulted.
type faultKind byte

const (
	faultNone faultKind = iota
	// faultNullPage is an access to the null page.
	faultNullPage
	// faultStackGuard is an access to the guard region below the stack.
	faultStackGuard
	// faultInvalid is an access outside of the memory or misaligned.
	faultInvalid
)

// Fault is an access to memory which the runtime does not turn into an
// exception: a wild or misaligned access, or a fault without a stack map.
type Fault struct {
	Address uint32
	PC      uint32
	Reason  string
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("fault at pc %#x accessing %#x: %s", f.PC, f.Address, f.Reason)
}

type memory struct {
	buf []byte
	// guard is the lowest address of the stack guard; stackLimit is its end.
	guard, stackLimit uint32
}

func newMemory(stackSize uint32) *memory {
	limit := stackTop - stackSize
	return &memory{
		buf:        make([]byte, memorySize),
		guard:      limit - runtime.StackOverflowReservedBytes,
		stackLimit: limit,
	}
}

// check returns the kind of fault an access of size bytes at addr raises.
//
// 8-byte accesses only need to be word aligned: doubles passed on the stack
// are at word aligned slots.
func (m *memory) check(addr, size uint32) faultKind {
	align := size
	if align > 4 {
		align = 4
	}
	switch {
	case addr%align != 0:
		return faultInvalid
	case addr < runtime.NullPageSize:
		return faultNullPage
	case uint64(addr)+uint64(size) > memorySize:
		return faultInvalid
	case addr+size > m.guard && addr < m.stackLimit:
		return faultStackGuard
	}
	return faultNone
}

func (m *memory) u8(addr uint32) uint8   { return m.buf[addr] }
func (m *memory) u16(addr uint32) uint16 { return binary.LittleEndian.Uint16(m.buf[addr:]) }
func (m *memory) u32(addr uint32) uint32 { return binary.LittleEndian.Uint32(m.buf[addr:]) }
func (m *memory) u64(addr uint32) uint64 { return binary.LittleEndian.Uint64(m.buf[addr:]) }

func (m *memory) put8(addr uint32, v uint8)   { m.buf[addr] = v }
func (m *memory) put16(addr uint32, v uint16) { binary.LittleEndian.PutUint16(m.buf[addr:], v) }
func (m *memory) put32(addr uint32, v uint32) { binary.LittleEndian.PutUint32(m.buf[addr:], v) }
func (m *memory) put64(addr uint32, v uint64) { binary.LittleEndian.PutUint64(m.buf[addr:], v) }
