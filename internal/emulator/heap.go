package emulator

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/runtime"
)

// ClassSpec describes a class to define with Emulator.DefineClass.
type ClassSpec struct {
	TypeIndex  uint32
	Descriptor string
	Super      *Class
	// Component is the component type of array classes.
	Component *Class
	// Interfaces lists the interfaces the class implements directly.
	Interfaces []*Class
	Interface  bool
	Primitive  runtime.PrimitiveType
	// ObjectSize is the size of instances, header included.
	ObjectSize   uint32
	VTableLength uint32
	Status       runtime.ClassStatus
}

// Class is a class object in the emulated heap.
type Class struct {
	ClassSpec
	Address uint32
	// imt is the address of the interface method table.
	imt uint32
}

// IsArray returns true for array classes.
func (c *Class) IsArray() bool { return c.Component != nil }

func (c *Class) String() string { return c.Descriptor }

// elementSize returns the size of the elements of an array class.
func (c *Class) elementSize() uint32 {
	switch c.Component.Primitive {
	case runtime.PrimitiveBoolean, runtime.PrimitiveByte:
		return 1
	case runtime.PrimitiveChar, runtime.PrimitiveShort:
		return 2
	case runtime.PrimitiveLong, runtime.PrimitiveDouble:
		return 8
	}
	return 4
}

func (c *Class) dataOffset() uint32 {
	if c.elementSize() == 8 {
		return 16
	}
	return 12
}

// Class object fields following the vtable.
const classHeaderSize = runtime.ClassVTableOffset

// DefineClass allocates the class object of spec and makes it resolvable by
// its type index.
func (e *Emulator) DefineClass(spec ClassSpec) (*Class, error) {
	if _, ok := e.classes[spec.TypeIndex]; ok {
		return nil, fmt.Errorf("type index %d already defined", spec.TypeIndex)
	}
	if spec.ObjectSize == 0 {
		spec.ObjectSize = runtime.ObjectHeaderSize
	}
	addr, err := e.allocate(classHeaderSize + 4*spec.VTableLength)
	if err != nil {
		return nil, err
	}
	imt, err := e.allocate(4 * runtime.ImtSize)
	if err != nil {
		return nil, err
	}
	c := &Class{ClassSpec: spec, Address: addr, imt: imt}
	m := e.mem
	if spec.Component != nil {
		m.put32(addr+runtime.ClassComponentTypeOffset, spec.Component.Address)
	}
	if spec.Super != nil {
		m.put32(addr+runtime.ClassSuperClassOffset, spec.Super.Address)
	}
	m.put32(addr+runtime.ClassStatusOffset, uint32(spec.Status))
	m.put32(addr+runtime.ClassObjectSizeOffset, spec.ObjectSize)
	m.put16(addr+runtime.ClassPrimitiveTypeOffset, uint16(spec.Primitive))
	m.put32(addr+runtime.ClassImtOffset, imt)
	m.put32(addr+runtime.ClassVTableLengthOffset, spec.VTableLength)

	e.classes[spec.TypeIndex] = c
	e.classByAddress[addr] = c
	return c, nil
}

// SetVTableEntry makes m the index-th virtual method of c.
func (e *Emulator) SetVTableEntry(c *Class, index uint32, m *Method) error {
	if index >= c.VTableLength {
		return fmt.Errorf("vtable index %d out of %s's %d entries", index, c, c.VTableLength)
	}
	e.mem.put32(c.Address+uint32(runtime.VTableEntryOffset(index)), m.address)
	return nil
}

// SetImtEntry makes m the method of c called through the IMT slot of imtIndex.
func (e *Emulator) SetImtEntry(c *Class, imtIndex uint32, m *Method) {
	e.mem.put32(c.imt+uint32(runtime.ImtEntryOffset(imtIndex)), m.address)
}

// ClassStatus returns the status of c in memory.
func (e *Emulator) ClassStatus(c *Class) runtime.ClassStatus {
	return runtime.ClassStatus(e.mem.u32(c.Address + runtime.ClassStatusOffset))
}

// allocate returns size zeroed bytes of the heap.
func (e *Emulator) allocate(size uint32) (uint32, error) {
	addr := e.heapTop
	end := uint64(addr) + uint64(size+7)&^7
	if end > uint64(e.mem.guard) {
		return 0, fmt.Errorf("out of memory allocating %d bytes", size)
	}
	e.heapTop = uint32(end)
	e.objects[addr] = size
	return addr, nil
}

// NewObject allocates an instance of c.
func (e *Emulator) NewObject(c *Class) (uint32, error) {
	if c.IsArray() {
		return 0, fmt.Errorf("%s is an array class", c)
	}
	addr, err := e.allocate(c.ObjectSize)
	if err != nil {
		return 0, err
	}
	e.mem.put32(addr+runtime.ObjectClassOffset, c.Address)
	return addr, nil
}

// NewArray allocates an array of the array class c.
func (e *Emulator) NewArray(c *Class, length int32) (uint32, error) {
	if !c.IsArray() {
		return 0, fmt.Errorf("%s is not an array class", c)
	}
	if length < 0 {
		return 0, fmt.Errorf("negative array length %d", length)
	}
	addr, err := e.allocate(c.dataOffset() + uint32(length)*c.elementSize())
	if err != nil {
		return 0, err
	}
	e.mem.put32(addr+runtime.ObjectClassOffset, c.Address)
	e.mem.put32(addr+runtime.ArrayLengthOffset, uint32(length))
	return addr, nil
}

// ArrayElement returns the address of the element index of the array at arr.
func (e *Emulator) ArrayElement(arr uint32, index int32) (uint32, error) {
	c, err := e.ClassOf(arr)
	if err != nil {
		return 0, err
	}
	if !c.IsArray() {
		return 0, fmt.Errorf("%#x is not an array", arr)
	}
	if n := int32(e.mem.u32(arr + runtime.ArrayLengthOffset)); index < 0 || index >= n {
		return 0, fmt.Errorf("index %d out of bounds for length %d", index, n)
	}
	return arr + c.dataOffset() + uint32(index)*c.elementSize(), nil
}

// isObject returns true if addr is the start of an allocation.
func (e *Emulator) isObject(addr uint32) bool {
	_, ok := e.objects[addr]
	return ok
}

// ClassOf returns the class of the object at obj.
func (e *Emulator) ClassOf(obj uint32) (*Class, error) {
	if !e.isObject(obj) {
		return nil, fmt.Errorf("%#x is not an object", obj)
	}
	c, ok := e.classByAddress[e.mem.u32(obj+runtime.ObjectClassOffset)]
	if !ok {
		return nil, fmt.Errorf("object %#x has no class", obj)
	}
	return c, nil
}

// isAssignable returns true if instances of from are instances of to.
func isAssignable(from, to *Class) bool {
	if from == to {
		return true
	}
	if to.IsArray() {
		if !from.IsArray() {
			return false
		}
		fc, tc := from.Component, to.Component
		if fc.Primitive != runtime.PrimitiveNot || tc.Primitive != runtime.PrimitiveNot {
			return fc == tc
		}
		return isAssignable(fc, tc)
	}
	for c := from; c != nil; c = c.Super {
		if c == to {
			return true
		}
		for _, i := range c.Interfaces {
			if isAssignable(i, to) {
				return true
			}
		}
	}
	// Arrays are instances of the root class.
	return from.IsArray() && to.Super == nil && !to.Interface && to.Primitive == runtime.PrimitiveNot
}

// DefineString allocates a string object with the given value, resolvable
// by index.
func (e *Emulator) DefineString(index uint32, value string) (uint32, error) {
	if _, ok := e.strings[index]; ok {
		return 0, fmt.Errorf("string index %d already defined", index)
	}
	addr, err := e.allocate(stringDataOffset + uint32(len(value)))
	if err != nil {
		return 0, err
	}
	e.mem.put32(addr+runtime.ObjectClassOffset, e.stringClass.Address)
	e.mem.put32(addr+runtime.ArrayLengthOffset, uint32(len(value)))
	copy(e.mem.buf[addr+stringDataOffset:], value)
	e.strings[index] = addr
	return addr, nil
}

// Strings hold their length and their bytes after the object header.
const stringDataOffset = 12

// StringValue returns the value of the string object at addr.
func (e *Emulator) StringValue(addr uint32) (string, error) {
	c, err := e.ClassOf(addr)
	if err != nil {
		return "", err
	}
	if c != e.stringClass {
		return "", fmt.Errorf("%#x is a %s", addr, c)
	}
	n := e.mem.u32(addr + runtime.ArrayLengthOffset)
	start := addr + stringDataOffset
	return string(e.mem.buf[start : start+n]), nil
}
