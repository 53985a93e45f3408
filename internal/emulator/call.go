package emulator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// ExceptionKind is the descriptor of the class of a thrown exception.
type ExceptionKind string

const (
	NullPointerException           ExceptionKind = "Ljava/lang/NullPointerException;"
	ArrayIndexOutOfBoundsException ExceptionKind = "Ljava/lang/ArrayIndexOutOfBoundsException;"
	ArithmeticException            ExceptionKind = "Ljava/lang/ArithmeticException;"
	StackOverflowError             ExceptionKind = "Ljava/lang/StackOverflowError;"
	ClassCastException             ExceptionKind = "Ljava/lang/ClassCastException;"
	ArrayStoreException            ExceptionKind = "Ljava/lang/ArrayStoreException;"
	NegativeArraySizeException     ExceptionKind = "Ljava/lang/NegativeArraySizeException;"
	IllegalMonitorStateException   ExceptionKind = "Ljava/lang/IllegalMonitorStateException;"
	// Deoptimization is not an exception: the method asked to continue in the interpreter.
	Deoptimization ExceptionKind = "deoptimization"
)

// ThrownException is returned by Call when the code throws. The exception
// unwinds out of the emulated code: there are no catch handlers.
type ThrownException struct {
	Kind ExceptionKind
	// Method is the method throwing, and DexPC the pc of its stack map at the throw.
	Method string
	DexPC  uint32
	// StackMap is the stack map of the throwing call or faulting instruction.
	StackMap backend.StackMap
	// Object is the delivered exception object, if any.
	Object uint32
}

// Error implements error.
func (t *ThrownException) Error() string {
	return fmt.Sprintf("%s thrown in %s at dex pc %d", t.Kind, t.Method, t.DexPC)
}

// callee-save registers checked to be preserved by Call.
var (
	calleeSaveCore = []uint32{16, 18, 19, 20, 21, 22, 23, 28, 30}
	calleeSaveFpu  = []uint32{20, 22, 24, 26, 28}
)

const (
	regSP = 29
	regRA = 31
	regTR = 17
)

func calleeSaveValue(r uint32) uint32 { return 0x5a5a0000 | r }

// Call calls m with args, the bit patterns of the arguments: the low 32 bits
// for 32-bit values and float32 bits for floats. It returns the bit pattern
// of the result.
func (e *Emulator) Call(m *Method, args ...uint64) (uint64, error) {
	if len(args) != len(m.ParamTypes) {
		return 0, fmt.Errorf("%s takes %d arguments, got %d", m.Name, len(m.ParamTypes), len(args))
	}
	if m.code == 0 {
		return 0, fmt.Errorf("%s is not installed", m.Name)
	}

	c := &e.cpu
	*c = cpu{}
	for _, r := range calleeSaveCore {
		c.regs[r] = calleeSaveValue(r)
	}
	for _, r := range calleeSaveFpu {
		c.fpr[r] = uint64(calleeSaveValue(r)) << 16
	}
	c.regs[regTR] = threadAddress
	c.regs[regRA] = haltAddress
	c.regs[4] = m.address

	placement := placeManagedArgs(m.ParamTypes)
	sp := (stackTop - 4 - 4*uint32(placement.stackWords)) &^ 15
	c.regs[regSP] = sp
	for i, a := range placement.args {
		v := args[i]
		switch {
		case a.stack:
			if m.ParamTypes[i].Is64Bit() {
				e.mem.put64(sp+a.offset, v)
			} else {
				e.mem.put32(sp+a.offset, uint32(v))
			}
		case a.fpu:
			if m.ParamTypes[i] == ir.TypeFloat32 {
				c.setLow(a.reg, uint32(v))
			} else {
				c.fpr[a.reg] = v
			}
		case m.ParamTypes[i].Is64Bit():
			c.regs[a.reg], c.regs[a.reg+1] = uint32(v), uint32(v>>32)
		default:
			c.regs[a.reg] = uint32(v)
		}
	}

	c.jump(m.code)
	if err := e.run(); err != nil {
		return 0, err
	}

	if c.regs[regSP] != sp {
		return 0, fmt.Errorf("sp is %#x after return, want %#x", c.regs[regSP], sp)
	}
	for _, r := range calleeSaveCore {
		if c.regs[r] != calleeSaveValue(r) {
			return 0, fmt.Errorf("callee-save r%d is not preserved: %#x", r, c.regs[r])
		}
	}
	if c.regs[regTR] != threadAddress {
		return 0, fmt.Errorf("thread register is not preserved: %#x", c.regs[regTR])
	}
	for _, r := range calleeSaveFpu {
		if c.fpr[r] != uint64(calleeSaveValue(r))<<16 {
			return 0, fmt.Errorf("callee-save f%d is not preserved: %#x", r, c.fpr[r])
		}
	}

	switch t := m.ReturnType; {
	case t == ir.TypeVoid:
		return 0, nil
	case t == ir.TypeFloat32:
		return c.fpr[0] & 0xffffffff, nil
	case t == ir.TypeFloat64:
		return c.fpr[0], nil
	case t == ir.TypeInt64:
		return uint64(c.regs[2]) | uint64(c.regs[3])<<32, nil
	}
	return uint64(c.regs[2]), nil
}

type argPlacement struct {
	stack, fpu bool
	// reg is the register, or the first of the pair.
	reg uint32
	// offset is the offset from the caller's sp of stack arguments.
	offset uint32
}

type managedPlacement struct {
	args       []argPlacement
	stackWords int
}

// placeManagedArgs places arguments the way compiled code calls methods:
// core arguments in a1-a3, a long in (a2, a3) only, floating point arguments
// in f8-f18, and every argument reserving its words on the stack after the
// ArtMethod* slot.
func placeManagedArgs(types []ir.DataType) (p managedPlacement) {
	gp, fp := 0, 0
	coreArgs := []uint32{5, 6, 7}
	fpuArgs := []uint32{8, 10, 12, 14, 16, 18}
	for _, t := range types {
		words := 1
		if t.Is64Bit() {
			words = 2
		}
		a := argPlacement{offset: 4 + 4*uint32(p.stackWords)}
		p.stackWords += words
		switch {
		case t.IsFloatingPoint() && fp < len(fpuArgs):
			a.fpu, a.reg = true, fpuArgs[fp]
			fp++
		case t.IsFloatingPoint():
			a.stack = true
		case t.Is64Bit():
			if gp <= 1 {
				a.reg = 6
			} else {
				a.stack = true
			}
			gp = len(coreArgs)
		case gp < len(coreArgs):
			a.reg = coreArgs[gp]
			gp++
		default:
			a.stack = true
		}
		p.args = append(p.args, a)
	}
	return
}

func (e *Emulator) run() error {
	c := &e.cpu
	for steps := 0; ; steps++ {
		if steps >= e.opts.MaxSteps {
			return fmt.Errorf("step limit of %d exceeded at pc %#x", e.opts.MaxSteps, c.pc)
		}
		e.Stats.Steps++
		pc := c.pc
		if pc >= trapAddress && pc < trapEnd {
			if pc == haltAddress {
				return nil
			}
			if err := e.trap(runtime.QuickEntrypoint((pc - trapAddress) / 4)); err != nil {
				return err
			}
			continue
		}
		if pc < codeAddress || pc >= e.codeTop || pc%4 != 0 {
			return &Fault{Address: pc, PC: pc, Reason: "bad instruction fetch"}
		}
		w := e.mem.u32(pc)
		c.pc, c.npc = c.npc, c.npc+4
		if err := e.exec(pc, w); err != nil {
			var af *accessFault
			if errors.As(err, &af) {
				return e.handleFault(pc, af)
			}
			return err
		}
	}
}

// handleFault throws the exception of an implicit check faulting at pc.
func (e *Emulator) handleFault(pc uint32, af *accessFault) error {
	fault := &Fault{Address: af.addr, PC: pc}
	m, sm, ok := e.stackMapAt(pc)
	switch {
	case af.kind == faultInvalid:
		fault.Reason = "invalid access"
		return fault
	case !ok:
		fault.Reason = "no stack map at the faulting pc"
		return fault
	}
	e.logger.Debug("implicit check fault", zap.String("method", m.Name), zap.Uint32("pc", pc), zap.Uint32("address", af.addr))
	kind := StackOverflowError
	if af.kind == faultNullPage {
		if sm.Kind != backend.StackMapImplicitNullCheck {
			fault.Reason = "null page access at a " + sm.Kind.String() + " stack map"
			return fault
		}
		kind = NullPointerException
	}
	return &ThrownException{Kind: kind, Method: m.Name, DexPC: sm.DexPC, StackMap: sm}
}

// verifyStackMap checks the references sm marks in the current frame.
func (e *Emulator) verifyStackMap(m *Method, sm backend.StackMap) error {
	c := &e.cpu
	isRef := func(v uint32) bool {
		if v == 0 || e.isObject(v) {
			return true
		}
		_, ok := e.classByAddress[v]
		return ok
	}
	for r := uint32(0); r < 32; r++ {
		if sm.RegisterMask&(1<<r) != 0 && !isRef(c.regs[r]) {
			return fmt.Errorf("%s: stack map at %#x marks r%d holding %#x", m.Name, sm.NativePC, r, c.regs[r])
		}
	}
	sp := c.regs[regSP]
	for i := 0; i < sm.StackMask.NumBits(); i++ {
		if !sm.StackMask.IsSet(i) {
			continue
		}
		v := e.mem.u32(sp + 4*uint32(i))
		if !isRef(v) {
			return fmt.Errorf("%s: stack map at %#x marks sp+%d holding %#x", m.Name, sm.NativePC, 4*i, v)
		}
	}
	return nil
}
