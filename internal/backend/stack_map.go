package backend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tetratelabs/irgen/internal/leb128"
)

// StackMapKind tells why a stack map was recorded.
type StackMapKind byte

const (
	// StackMapDefault is recorded at runtime calls of the fast path.
	StackMapDefault StackMapKind = iota
	// StackMapOSR marks a loop header where on-stack replacement may enter.
	StackMapOSR
	// StackMapImplicitNullCheck is recorded at a memory access which faults on null.
	StackMapImplicitNullCheck
	// StackMapCall is recorded right after a call to another method.
	StackMapCall
	// StackMapSlowPath is recorded at runtime calls of slow paths.
	StackMapSlowPath
)

// String implements fmt.Stringer.
func (k StackMapKind) String() string {
	switch k {
	case StackMapDefault:
		return "default"
	case StackMapOSR:
		return "osr"
	case StackMapImplicitNullCheck:
		return "implicit-null-check"
	case StackMapCall:
		return "call"
	case StackMapSlowPath:
		return "slow-path"
	}
	return "invalid"
}

// DexRegisterKind is where a dex register lives at a stack map.
type DexRegisterKind byte

const (
	DexRegisterNone DexRegisterKind = iota
	DexRegisterInStack
	DexRegisterInRegister
	DexRegisterInRegisterHigh
	DexRegisterInFpuRegister
	DexRegisterInFpuRegisterHigh
	DexRegisterConstant
)

// DexRegisterLocation is the location of one dex register. Value is a stack
// offset, a register number or the 32-bit constant depending on Kind.
type DexRegisterLocation struct {
	Kind  DexRegisterKind
	Value int32
}

// String implements fmt.Stringer.
func (l DexRegisterLocation) String() string {
	switch l.Kind {
	case DexRegisterInStack:
		return fmt.Sprintf("sp+%d", l.Value)
	case DexRegisterInRegister:
		return fmt.Sprintf("r%d", l.Value)
	case DexRegisterInRegisterHigh:
		return fmt.Sprintf("r%d(hi)", l.Value)
	case DexRegisterInFpuRegister:
		return fmt.Sprintf("f%d", l.Value)
	case DexRegisterInFpuRegisterHigh:
		return fmt.Sprintf("f%d(hi)", l.Value)
	case DexRegisterConstant:
		return fmt.Sprintf("#%d", l.Value)
	}
	return "-"
}

// StackMap maps a native pc to the state the runtime needs there.
type StackMap struct {
	NativePC uint32
	DexPC    uint32
	Kind     StackMapKind
	// RegisterMask has a bit set for each core register holding a reference.
	RegisterMask uint32
	// StackMask has a bit set for each 4-byte stack slot holding a reference.
	StackMask    BitVector
	DexRegisters []DexRegisterLocation

	pos CodePosition
}

// StackMapStream collects the stack maps of one method.
type StackMapStream struct {
	entries  []StackMap
	inEntry  bool
	resolved bool
}

// NewStackMapStream returns an empty stream.
func NewStackMapStream() *StackMapStream { return &StackMapStream{} }

// BeginStackMapEntry starts a new entry at pos. Dex registers are added with
// AddDexRegister until EndStackMapEntry.
func (s *StackMapStream) BeginStackMapEntry(pos CodePosition, dexPC uint32, kind StackMapKind, registerMask uint32, stackMask BitVector) {
	if s.inEntry {
		panic("BUG: nested stack map entry")
	}
	s.inEntry = true
	s.entries = append(s.entries, StackMap{
		pos:          pos,
		DexPC:        dexPC,
		Kind:         kind,
		RegisterMask: registerMask,
		StackMask:    stackMask.Clone(),
	})
}

// AddDexRegister appends the location of the next dex register.
func (s *StackMapStream) AddDexRegister(loc DexRegisterLocation) {
	if !s.inEntry {
		panic("BUG: dex register outside of a stack map entry")
	}
	e := &s.entries[len(s.entries)-1]
	e.DexRegisters = append(e.DexRegisters, loc)
}

// EndStackMapEntry closes the current entry.
func (s *StackMapStream) EndStackMapEntry() {
	if !s.inEntry {
		panic("BUG: no stack map entry to end")
	}
	s.inEntry = false
}

// Len returns the number of entries.
func (s *StackMapStream) Len() int { return len(s.entries) }

// Resolve computes the native pc of every entry. Must be called once the code
// is assembled.
func (s *StackMapStream) Resolve() {
	if s.inEntry {
		panic("BUG: stack map entry left open")
	}
	for i := range s.entries {
		s.entries[i].NativePC = s.entries[i].pos.Offset()
	}
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].NativePC < s.entries[j].NativePC })
	s.resolved = true
}

// Entries returns the resolved entries sorted by native pc.
func (s *StackMapStream) Entries() []StackMap {
	if !s.resolved {
		panic("BUG: stack maps are not resolved")
	}
	return s.entries
}

// Lookup returns the entry recorded at nativePC.
func (s *StackMapStream) Lookup(nativePC uint32) (StackMap, bool) {
	return LookupStackMap(s.Entries(), nativePC)
}

// LookupStackMap finds the entry at nativePC in entries sorted by native pc.
func LookupStackMap(entries []StackMap, nativePC uint32) (StackMap, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].NativePC >= nativePC })
	if i < len(entries) && entries[i].NativePC == nativePC {
		return entries[i], true
	}
	return StackMap{}, false
}

// Encode serializes the resolved entries with LEB128 numbers.
func (s *StackMapStream) Encode() []byte {
	return EncodeStackMaps(s.Entries())
}

// EncodeStackMaps serializes entries, see DecodeStackMaps.
func EncodeStackMaps(entries []StackMap) []byte {
	buf := leb128.AppendUint64(nil, uint64(len(entries)))
	for i := range entries {
		e := &entries[i]
		buf = leb128.AppendUint64(buf, uint64(e.NativePC))
		buf = leb128.AppendUint64(buf, uint64(e.DexPC))
		buf = append(buf, byte(e.Kind))
		buf = leb128.AppendUint64(buf, uint64(e.RegisterMask))
		buf = leb128.AppendUint64(buf, uint64(len(e.StackMask)))
		for _, w := range e.StackMask {
			buf = leb128.AppendUint64(buf, uint64(w))
		}
		buf = leb128.AppendUint64(buf, uint64(len(e.DexRegisters)))
		for _, r := range e.DexRegisters {
			buf = append(buf, byte(r.Kind))
			buf = leb128.AppendInt64(buf, int64(r.Value))
		}
	}
	return buf
}

var errTruncatedStackMaps = errors.New("truncated stack maps")

type stackMapReader struct {
	buf []byte
	err error
}

func (r *stackMapReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, n, err := leb128.LoadUint32(r.buf)
	if err != nil {
		r.err = err
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *stackMapReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, n, err := leb128.LoadInt32(r.buf)
	if err != nil {
		r.err = err
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *stackMapReader) u8() byte {
	if r.err != nil {
		return 0
	}
	if len(r.buf) == 0 {
		r.err = errTruncatedStackMaps
		return 0
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

// DecodeStackMaps parses the output of EncodeStackMaps.
func DecodeStackMaps(buf []byte) ([]StackMap, error) {
	r := &stackMapReader{buf: buf}
	n := r.u32()
	if r.err == nil && uint64(n) > uint64(len(buf)) {
		return nil, errTruncatedStackMaps
	}
	entries := make([]StackMap, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		var e StackMap
		e.NativePC = r.u32()
		e.DexPC = r.u32()
		e.Kind = StackMapKind(r.u8())
		e.RegisterMask = r.u32()
		words := r.u32()
		for j := uint32(0); j < words && r.err == nil; j++ {
			e.StackMask = append(e.StackMask, r.u32())
		}
		regs := r.u32()
		for j := uint32(0); j < regs && r.err == nil; j++ {
			kind := DexRegisterKind(r.u8())
			e.DexRegisters = append(e.DexRegisters, DexRegisterLocation{Kind: kind, Value: r.i32()})
		}
		entries = append(entries, e)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding stack maps: %w", r.err)
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("decoding stack maps: %d trailing bytes", len(r.buf))
	}
	return entries, nil
}
