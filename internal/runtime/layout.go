// Package runtime holds the contract between generated code and the managed
// runtime: the layout of objects, classes, methods and threads, the quick
// entrypoint table, the garbage collector's barrier constants, and the linker
// applying the patches of compiled methods.
package runtime

import "github.com/tetratelabs/irgen/internal/ir"

// Object layout. Every object starts with its class and its lock word, and
// arrays follow with their length and elements.
const (
	ObjectClassOffset    = 0
	ObjectLockWordOffset = 4
	ObjectHeaderSize     = 8
	ArrayLengthOffset    = 8
	arrayDataOffset      = 12
	arrayWideDataOffset  = 16
)

// ArrayDataOffset returns the offset of the first element of an array of
// componentType. Elements of 8 bytes are 8-byte aligned.
func ArrayDataOffset(componentType ir.DataType) int32 {
	if componentType.Size() == 8 {
		return arrayWideDataOffset
	}
	return arrayDataOffset
}

// Class layout.
const (
	ClassComponentTypeOffset = 8
	ClassSuperClassOffset    = 12
	ClassStatusOffset        = 16
	ClassObjectSizeOffset    = 20
	ClassPrimitiveTypeOffset = 24
	ClassImtOffset           = 28
	ClassAccessFlagsOffset   = 32
	ClassVTableLengthOffset  = 40
	ClassVTableOffset        = 48
)

// VTableEntryOffset returns the offset in a class of the index-th vtable entry.
func VTableEntryOffset(index uint32) int64 { return ClassVTableOffset + 4*int64(index) }

// ImtSize is the number of entries of an interface method table. Interface
// methods are assigned the entry of their IMT index modulo ImtSize.
const ImtSize = 43

// ImtEntryOffset returns the offset in an interface method table of the entry for imtIndex.
func ImtEntryOffset(imtIndex uint32) int64 { return 4 * int64(imtIndex%ImtSize) }

// ClassStatus is the initialization state of a class, ordered.
type ClassStatus uint32

const (
	ClassStatusNotReady     ClassStatus = 0
	ClassStatusResolved     ClassStatus = 8
	ClassStatusVerified     ClassStatus = 11
	ClassStatusInitializing ClassStatus = 13
	ClassStatusInitialized  ClassStatus = 14
)

// PrimitiveType is the value at ClassPrimitiveTypeOffset. Classes of objects
// and arrays of references have PrimitiveNot.
type PrimitiveType uint32

const (
	PrimitiveNot PrimitiveType = iota
	PrimitiveBoolean
	PrimitiveByte
	PrimitiveChar
	PrimitiveShort
	PrimitiveInt
	PrimitiveLong
	PrimitiveFloat
	PrimitiveDouble
)

// ArtMethod layout.
const (
	ArtMethodDeclaringClassOffset = 0
	ArtMethodAccessFlagsOffset    = 4
	ArtMethodMethodIndexOffset    = 8
	ArtMethodEntryPointOffset     = 12
	ArtMethodSize                 = 16
)

// Thread layout. The thread register points at this structure.
const (
	ThreadFlagsOffset       = 0
	ThreadCardTableOffset   = 4
	ThreadIsGcMarkingOffset = 8
	ThreadExceptionOffset   = 12
	ThreadStackEndOffset    = 16
	ThreadSelfOffset        = 20
	ThreadEntrypointsOffset = 64
)

// Thread flags polled by suspend checks.
const (
	ThreadFlagSuspendRequest    = 1 << 0
	ThreadFlagCheckpointRequest = 1 << 1
)

// Garbage collector barrier constants.
const (
	// LockWordGrayBit is set in the lock word of objects the concurrent
	// copying collector has not finished scanning.
	LockWordGrayBit = 1 << 28
	// CardShift is log2 of the number of heap bytes covered by one card.
	CardShift = 10
	// CardDirty is the value of a dirty card. The biased card table base is
	// chosen so that its low byte is CardDirty, which lets the code store the
	// base register itself.
	CardDirty = 0x70
)

// Memory protection constants.
const (
	// NullPageSize is the size of the unmapped region at address zero. Any
	// access to an object at an offset below it faults when the object is null.
	NullPageSize = 4096
	// StackOverflowReservedBytes is the size of the protected region at the
	// end of the stack, touched by the implicit stack overflow check.
	StackOverflowReservedBytes = 8192
)

// CanDoImplicitNullCheckOn returns true if an access at offset of a null
// object is guaranteed to fault.
func CanDoImplicitNullCheckOn(offset int64) bool { return offset >= 0 && offset < NullPageSize }
