// Package emulator executes MIPS32r2 code generated by the backend.
//
// An Emulator is a single thread in a small runtime: a flat little-endian
// memory holding the Thread, a heap of classes, strings and objects, the
// .bss entries and JIT root tables the generated code links against, and a
// stack. Quick entrypoints are implemented in Go: the entrypoint table of the
// Thread points at trap addresses, and reaching one runs the entrypoint and
// returns to ra. Faults in the null page and in the stack guard are turned
// into exceptions through the stack maps of the faulting method, the way the
// fault handler of a real runtime does.
package emulator

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// Options configures New.
type Options struct {
	// StackSize is the size of the stack, guard excluded. Defaults to 64 KiB.
	StackSize uint32
	// MaxSteps bounds the number of instructions a Call executes. Defaults to
	// ten million.
	MaxSteps int
	// VerifyStackMaps checks at every runtime call with a stack map that the
	// registers and stack slots it marks hold null or an object.
	VerifyStackMaps bool
	Logger          *zap.Logger
}

// Stats counts what the executed code did.
type Stats struct {
	Steps int
	// Calls counts the calls of each quick entrypoint.
	Calls [runtime.NumQuickEntrypoints]int
	// Marks counts the references marked by the read barrier.
	Marks int
}

// Emulator is a MIPS32r2 core with its runtime. It is not safe for concurrent use.
type Emulator struct {
	opts   Options
	logger *zap.Logger
	mem    *memory
	cpu    cpu

	heapTop  uint32
	bssTop   uint32
	rootsTop uint32
	codeTop  uint32

	objects        map[uint32]uint32
	classes        map[uint32]*Class
	classByAddress map[uint32]*Class
	stringClass    *Class
	strings        map[uint32]uint32
	methods        map[uint32]*Method
	installed      []*Method
	bss            map[runtime.Symbol]uint32
	forwarding     map[uint32]uint32
	locks          map[uint32]int

	Stats Stats
}

// stringTypeIndex is the type index of the class of strings.
const stringTypeIndex = ^uint32(0)

// New returns an Emulator with an empty heap.
func New(opts Options) *Emulator {
	if opts.StackSize == 0 {
		opts.StackSize = 64 << 10
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = 10_000_000
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emulator{
		opts:           opts,
		logger:         logger,
		mem:            newMemory(opts.StackSize),
		heapTop:        heapAddress,
		bssTop:         bssAddress,
		rootsTop:       rootsAddress,
		codeTop:        codeAddress,
		objects:        map[uint32]uint32{},
		classes:        map[uint32]*Class{},
		classByAddress: map[uint32]*Class{},
		strings:        map[uint32]uint32{},
		methods:        map[uint32]*Method{},
		bss:            map[runtime.Symbol]uint32{},
		forwarding:     map[uint32]uint32{},
		locks:          map[uint32]int{},
	}

	m := e.mem
	m.put32(threadAddress+runtime.ThreadCardTableOffset, cardTableBase)
	m.put32(threadAddress+runtime.ThreadStackEndOffset, m.stackLimit)
	m.put32(threadAddress+runtime.ThreadSelfOffset, threadAddress)
	for ep := runtime.QuickEntrypoint(0); int(ep) < runtime.NumQuickEntrypoints; ep++ {
		m.put32(threadAddress+uint32(ep.Offset()), trapOf(ep))
	}

	var err error
	e.stringClass, err = e.DefineClass(ClassSpec{
		TypeIndex:  stringTypeIndex,
		Descriptor: "Ljava/lang/String;",
		Status:     runtime.ClassStatusInitialized,
	})
	if err != nil {
		panic("BUG: " + err.Error())
	}
	return e
}

// Method is a method known to the runtime: its ArtMethod, and its code once installed.
type Method struct {
	Index          uint32
	Name           string
	ParamTypes     []ir.DataType
	ReturnType     ir.DataType
	DeclaringClass *Class

	address   uint32
	code      uint32
	size      uint32
	stackMaps []backend.StackMap
}

// Address returns the address of the ArtMethod of m.
func (m *Method) Address() uint32 { return m.address }

// CodeAddress returns where the code of m is installed, or zero.
func (m *Method) CodeAddress() uint32 { return m.code }

// DefineMethod allocates the ArtMethod of a method, resolvable by index.
// Calling it before its code is installed is an error.
func (e *Emulator) DefineMethod(index uint32, name string, params []ir.DataType, ret ir.DataType, declaringClass *Class) (*Method, error) {
	if _, ok := e.methods[index]; ok {
		return nil, fmt.Errorf("method index %d already defined", index)
	}
	addr, err := e.allocate(runtime.ArtMethodSize)
	if err != nil {
		return nil, err
	}
	m := &Method{Index: index, Name: name, ParamTypes: params, ReturnType: ret, DeclaringClass: declaringClass, address: addr}
	if declaringClass != nil {
		e.mem.put32(addr+runtime.ArtMethodDeclaringClassOffset, declaringClass.Address)
	}
	e.mem.put32(addr+runtime.ArtMethodMethodIndexOffset, index)
	e.methods[index] = m
	return m, nil
}

// CompiledCode is the output of the backend for one method.
type CompiledCode struct {
	Code          []byte
	StackMaps     []backend.StackMap
	LinkerPatches []backend.LinkerPatch
	JitRoots      []backend.JitRoot
	JitPatches    []backend.JitPatch
}

// Install copies the code of m into memory, links it and makes it the entry
// point of m.
func (e *Emulator) Install(m *Method, c CompiledCode) error {
	if m.code != 0 {
		return fmt.Errorf("%s is already installed", m.Name)
	}
	addr := e.codeTop
	size := uint32(len(c.Code))
	if uint64(addr)+uint64(size) > codeEnd {
		return errors.New("out of code space")
	}
	code := append([]byte(nil), c.Code...)
	if err := runtime.Link(code, addr, c.LinkerPatches, e); err != nil {
		return fmt.Errorf("linking %s: %w", m.Name, err)
	}
	if len(c.JitRoots) > 0 {
		table, err := e.rootTable(c.JitRoots)
		if err != nil {
			return fmt.Errorf("JIT roots of %s: %w", m.Name, err)
		}
		if err := backend.EmitJitRootPatches(code, c.JitPatches, table); err != nil {
			return fmt.Errorf("JIT roots of %s: %w", m.Name, err)
		}
	}
	copy(e.mem.buf[addr:], code)
	e.codeTop = (addr + size + 15) &^ 15

	m.code, m.size = addr, size
	m.stackMaps = c.StackMaps
	e.mem.put32(m.address+runtime.ArtMethodEntryPointOffset, addr)
	e.installed = append(e.installed, m)
	e.logger.Debug("method installed",
		zap.String("method", m.Name), zap.Uint32("address", addr), zap.Uint32("size", size))
	return nil
}

// Resolve implements runtime.SymbolResolver.
//
// .bss entries are shared by every method. Type and string entries start out
// null and are filled by the resolution slow paths; method entries are filled
// eagerly as the code calls through them without a check.
func (e *Emulator) Resolve(sym runtime.Symbol) (uint32, error) {
	switch sym.Kind {
	case backend.PatchMethodRelative:
		m, ok := e.methods[sym.Target]
		if !ok {
			return 0, fmt.Errorf("method index %d is not defined", sym.Target)
		}
		return m.address, nil
	case backend.PatchTypeRelative:
		c, ok := e.classes[sym.Target]
		if !ok {
			return 0, fmt.Errorf("type index %d is not defined", sym.Target)
		}
		return c.Address, nil
	case backend.PatchStringRelative:
		s, ok := e.strings[sym.Target]
		if !ok {
			return 0, fmt.Errorf("string index %d is not defined", sym.Target)
		}
		return s, nil
	}

	if addr, ok := e.bss[sym]; ok {
		return addr, nil
	}
	if e.bssTop+4 > bssEnd {
		return 0, errors.New("out of .bss entries")
	}
	addr := e.bssTop
	e.bssTop += 4
	if sym.Kind == backend.PatchMethodBss {
		m, ok := e.methods[sym.Target]
		if !ok {
			return 0, fmt.Errorf("method index %d is not defined", sym.Target)
		}
		e.mem.put32(addr, m.address)
	}
	e.bss[sym] = addr
	return addr, nil
}

// BssEntry returns the value of the .bss entry of sym, if linked.
func (e *Emulator) BssEntry(sym runtime.Symbol) (uint32, bool) {
	addr, ok := e.bss[sym]
	if !ok {
		return 0, false
	}
	return e.mem.u32(addr), true
}

// rootTable allocates and fills the JIT root table of roots.
func (e *Emulator) rootTable(roots []backend.JitRoot) (uint32, error) {
	table := e.rootsTop
	if table+4*uint32(len(roots)) > rootsEnd {
		return 0, errors.New("out of JIT root space")
	}
	for i, root := range roots {
		var addr uint32
		switch root.Kind {
		case backend.RootClass:
			c, ok := e.classes[root.Index]
			if !ok {
				return 0, fmt.Errorf("type index %d is not defined", root.Index)
			}
			addr = c.Address
		case backend.RootString:
			s, ok := e.strings[root.Index]
			if !ok {
				return 0, fmt.Errorf("string index %d is not defined", root.Index)
			}
			addr = s
		}
		e.mem.put32(table+4*uint32(i), addr)
	}
	e.rootsTop += 4 * uint32(len(roots))
	return table, nil
}

// methodAt returns the installed method whose code contains pc.
func (e *Emulator) methodAt(pc uint32) (*Method, bool) {
	i := sort.Search(len(e.installed), func(i int) bool { return e.installed[i].code+e.installed[i].size > pc })
	if i < len(e.installed) && e.installed[i].code <= pc {
		return e.installed[i], true
	}
	return nil, false
}

// stackMapAt returns the method containing pc and its stack map at pc.
func (e *Emulator) stackMapAt(pc uint32) (*Method, backend.StackMap, bool) {
	m, ok := e.methodAt(pc)
	if !ok {
		return nil, backend.StackMap{}, false
	}
	sm, ok := backend.LookupStackMap(m.stackMaps, pc-m.code)
	return m, sm, ok
}

// stackMapAtReturn is stackMapAt for the return address ra of a call, which
// is the end of the code when the call is the last instruction of a method.
func (e *Emulator) stackMapAtReturn(ra uint32) (*Method, backend.StackMap, bool) {
	m, ok := e.methodAt(ra - 1)
	if !ok {
		return nil, backend.StackMap{}, false
	}
	sm, ok := backend.LookupStackMap(m.stackMaps, ra-m.code)
	return m, sm, ok
}
