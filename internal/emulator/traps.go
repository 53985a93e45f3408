package emulator

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// Registers of the runtime calling convention.
const (
	regV0  = 2
	regV1  = 3
	regA0  = 4
	regA1  = 5
	regA2  = 6
	regA3  = 7
	regF0  = 0
	regF12 = 12
	regF14 = 14
)

// resultKind is where an entrypoint returns its result.
type resultKind byte

const (
	resultNone resultKind = iota
	resultCore
	resultPair
	resultFpu
)

func resultOf(ep runtime.QuickEntrypoint) resultKind {
	switch ep {
	case runtime.QuickAllocObject, runtime.QuickAllocArray, runtime.QuickInitializeType,
		runtime.QuickInitializeStaticStorage, runtime.QuickResolveString, runtime.QuickInstanceOf,
		runtime.QuickF2iz, runtime.QuickD2iz, runtime.QuickReadBarrierMark:
		return resultCore
	case runtime.QuickLdiv, runtime.QuickLmod, runtime.QuickF2l, runtime.QuickD2l:
		return resultPair
	case runtime.QuickFmodf, runtime.QuickFmod, runtime.QuickL2f, runtime.QuickL2d:
		return resultFpu
	}
	return resultNone
}

// trap runs the entrypoint ep called from the return address in ra.
func (e *Emulator) trap(ep runtime.QuickEntrypoint) error {
	c := &e.cpu
	ra := c.regs[regRA]
	if int(ep) >= runtime.NumQuickEntrypoints {
		return &Fault{Address: c.pc, PC: ra - 8, Reason: "call into the trap area"}
	}
	e.Stats.Calls[ep]++
	e.logger.Debug("runtime call", zap.Stringer("entrypoint", ep), zap.Uint32("return_address", ra))

	var m *Method
	var sm backend.StackMap
	if ep.NeedsStackMap() {
		var ok bool
		m, sm, ok = e.stackMapAtReturn(ra)
		if !ok {
			return fmt.Errorf("%s called at %#x without a stack map", ep, ra)
		}
		if e.opts.VerifyStackMaps && !ep.IsFatal() {
			if err := e.verifyStackMap(m, sm); err != nil {
				return err
			}
		}
	}
	throw := func(kind ExceptionKind) error {
		return &ThrownException{Kind: kind, Method: m.Name, DexPC: sm.DexPC, StackMap: sm}
	}

	if ep == runtime.QuickInvokeStaticTrampoline {
		callee, ok := e.methods[c.regs[regA0]]
		if !ok || callee.code == 0 {
			return fmt.Errorf("%s: method index %d is not installed", ep, c.regs[regA0])
		}
		// Tail call with the arguments in place; the callee returns to the caller.
		c.regs[regA0] = callee.address
		c.jump(callee.code)
		return nil
	}

	a0, a1, a2, a3 := c.regs[regA0], c.regs[regA1], c.regs[regA2], c.regs[regA3]
	switch ep {
	case runtime.QuickAllocObject:
		cls, ok := e.classByAddress[a0]
		if !ok {
			return fmt.Errorf("%s: %#x is not a class", ep, a0)
		}
		obj, err := e.NewObject(cls)
		if err != nil {
			return err
		}
		c.regs[regV0] = obj
	case runtime.QuickAllocArray:
		cls, ok := e.classByAddress[a0]
		if !ok {
			return fmt.Errorf("%s: %#x is not a class", ep, a0)
		}
		if int32(a1) < 0 {
			return throw(NegativeArraySizeException)
		}
		arr, err := e.NewArray(cls, int32(a1))
		if err != nil {
			return err
		}
		c.regs[regV0] = arr
	case runtime.QuickInitializeType, runtime.QuickInitializeStaticStorage:
		cls, ok := e.classes[a0]
		if !ok {
			return fmt.Errorf("%s: type index %d is not defined", ep, a0)
		}
		if ep == runtime.QuickInitializeStaticStorage {
			e.mem.put32(cls.Address+runtime.ClassStatusOffset, uint32(runtime.ClassStatusInitialized))
		}
		c.regs[regV0] = cls.Address
	case runtime.QuickResolveString:
		s, ok := e.strings[a0]
		if !ok {
			return fmt.Errorf("%s: string index %d is not defined", ep, a0)
		}
		c.regs[regV0] = s
	case runtime.QuickThrowNullPointer:
		return throw(NullPointerException)
	case runtime.QuickThrowArrayBounds:
		return throw(ArrayIndexOutOfBoundsException)
	case runtime.QuickThrowDivZero:
		return throw(ArithmeticException)
	case runtime.QuickThrowStackOverflow:
		return throw(StackOverflowError)
	case runtime.QuickDeoptimize:
		return throw(Deoptimization)
	case runtime.QuickDeliverException:
		if a0 == 0 {
			return throw(NullPointerException)
		}
		cls, err := e.ClassOf(a0)
		if err != nil {
			return fmt.Errorf("%s: %w", ep, err)
		}
		t := throw(ExceptionKind(cls.Descriptor)).(*ThrownException)
		t.Object = a0
		return t
	case runtime.QuickCheckInstanceOf, runtime.QuickInstanceOf:
		ok, err := e.instanceOf(a0, a1)
		if err != nil {
			return fmt.Errorf("%s: %w", ep, err)
		}
		if ep == runtime.QuickInstanceOf {
			c.regs[regV0] = b2u(ok)
		} else if !ok {
			return throw(ClassCastException)
		}
	case runtime.QuickAputObject:
		if exc, err := e.aputObject(a0, int32(a1), a2); err != nil {
			return fmt.Errorf("%s: %w", ep, err)
		} else if exc != "" {
			return throw(exc)
		}
	case runtime.QuickTestSuspend:
		e.mem.put32(threadAddress+runtime.ThreadFlagsOffset, 0)
	case runtime.QuickLockObject, runtime.QuickUnlockObject:
		if a0 == 0 {
			return throw(NullPointerException)
		}
		if ep == runtime.QuickLockObject {
			e.locks[a0]++
		} else if e.locks[a0] == 0 {
			return throw(IllegalMonitorStateException)
		} else {
			e.locks[a0]--
		}
	case runtime.QuickLdiv, runtime.QuickLmod:
		x, y := int64(uint64(a0)|uint64(a1)<<32), int64(uint64(a2)|uint64(a3)<<32)
		if y == 0 {
			return throw(ArithmeticException)
		}
		v := x / y
		if ep == runtime.QuickLmod {
			v = x % y
		}
		c.regs[regV0], c.regs[regV1] = uint32(v), uint32(uint64(v)>>32)
	case runtime.QuickFmodf:
		x, y := c.single(regF12), c.single(regF14)
		c.setSingle(regF0, float32(math.Mod(float64(x), float64(y))))
	case runtime.QuickFmod:
		c.setDouble(regF0, math.Mod(c.double(regF12), c.double(regF14)))
	case runtime.QuickF2iz:
		c.regs[regV0] = uint32(javaToInt32(float64(c.single(regF12))))
	case runtime.QuickD2iz:
		c.regs[regV0] = uint32(javaToInt32(c.double(regF12)))
	case runtime.QuickF2l, runtime.QuickD2l:
		x := c.double(regF12)
		if ep == runtime.QuickF2l {
			x = float64(c.single(regF12))
		}
		v := uint64(javaToInt64(x))
		c.regs[regV0], c.regs[regV1] = uint32(v), uint32(v>>32)
	case runtime.QuickL2f:
		c.setSingle(regF0, float32(int64(uint64(a0)|uint64(a1)<<32)))
	case runtime.QuickL2d:
		c.setDouble(regF0, float64(int64(uint64(a0)|uint64(a1)<<32)))
	case runtime.QuickReadBarrierMark:
		c.regs[regV0] = e.mark(a0)
	default:
		panic("BUG: unhandled entrypoint " + ep.String())
	}

	if !ep.IsSaveEverything() {
		e.clobberCallerSaves(resultOf(ep))
	}
	c.jump(ra)
	return nil
}

// clobberCallerSaves overwrites the registers a runtime call may clobber,
// except the ones holding the result.
func (e *Emulator) clobberCallerSaves(result resultKind) {
	c := &e.cpu
	for r := uint32(1); r < 26; r++ {
		if r >= 16 && r < 24 {
			continue
		}
		switch {
		case r == regV0 && result != resultNone && result != resultFpu:
		case r == regV1 && result == resultPair:
		default:
			c.regs[r] = 0xdead0000 | r
		}
	}
	for r := uint32(0); r < 32; r++ {
		if r >= 20 && r < 30 || r == regF0 && result == resultFpu {
			continue
		}
		c.fpr[r] = 0xdeadbeef00000000 | uint64(r)
	}
}

func (e *Emulator) instanceOf(obj, class uint32) (bool, error) {
	if obj == 0 {
		return false, nil
	}
	to, ok := e.classByAddress[class]
	if !ok {
		return false, fmt.Errorf("%#x is not a class", class)
	}
	from, err := e.ClassOf(obj)
	if err != nil {
		return false, err
	}
	return isAssignable(from, to), nil
}

// aputObject stores value to array[index], returning the exception to throw
// if the store is not allowed.
func (e *Emulator) aputObject(array uint32, index int32, value uint32) (ExceptionKind, error) {
	if array == 0 {
		return NullPointerException, nil
	}
	arrayClass, err := e.ClassOf(array)
	if err != nil {
		return "", err
	}
	if !arrayClass.IsArray() {
		return "", fmt.Errorf("%#x is not an array", array)
	}
	if n := int32(e.mem.u32(array + runtime.ArrayLengthOffset)); index < 0 || index >= n {
		return ArrayIndexOutOfBoundsException, nil
	}
	if value != 0 {
		ok, err := e.instanceOf(value, arrayClass.Component.Address)
		if err != nil {
			return "", err
		}
		if !ok {
			return ArrayStoreException, nil
		}
	}
	addr, err := e.ArrayElement(array, index)
	if err != nil {
		return "", err
	}
	e.mem.put32(addr, value)
	if value != 0 {
		e.markCard(array)
	}
	return "", nil
}

// javaToInt32 converts x with the saturating semantics of Java.
func javaToInt32(x float64) int32 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32:
		return math.MinInt32
	}
	return int32(x)
}

// javaToInt64 converts x with the saturating semantics of Java.
func javaToInt64(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(x)
}
