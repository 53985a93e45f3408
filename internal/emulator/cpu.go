package emulator

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// cpu is the state of a MIPS32r2 core with a 64-bit FPU (FR=1): every FPU
// register holds a double, or a single in its low word.
type cpu struct {
	regs   [32]uint32
	fpr    [32]uint64
	hi, lo uint32
	fcc    bool
	// pc is the address of the next instruction, npc the one after it. A
	// taken branch sets npc, so that its delay slot runs first.
	pc, npc uint32
}

func (c *cpu) jump(target uint32) { c.pc, c.npc = target, target+4 }

func (c *cpu) single(r uint32) float32 { return math.Float32frombits(uint32(c.fpr[r])) }

func (c *cpu) setSingle(r uint32, v float32) { c.setLow(r, math.Float32bits(v)) }

func (c *cpu) setLow(r, v uint32) { c.fpr[r] = c.fpr[r]&^0xffffffff | uint64(v) }

func (c *cpu) double(r uint32) float64 { return math.Float64frombits(c.fpr[r]) }

func (c *cpu) setDouble(r uint32, v float64) { c.fpr[r] = math.Float64bits(v) }

// accessFault is a faulting memory access of the instruction being executed.
type accessFault struct {
	kind faultKind
	addr uint32
}

func (f *accessFault) Error() string { return fmt.Sprintf("access fault at %#x", f.addr) }

func illegal(pc, w uint32) error { return fmt.Errorf("illegal instruction %08x at %#x", w, pc) }

func (e *Emulator) load(addr, size uint32) (uint64, error) {
	if k := e.mem.check(addr, size); k != faultNone {
		return 0, &accessFault{kind: k, addr: addr}
	}
	switch size {
	case 1:
		return uint64(e.mem.u8(addr)), nil
	case 2:
		return uint64(e.mem.u16(addr)), nil
	case 4:
		return uint64(e.mem.u32(addr)), nil
	}
	return e.mem.u64(addr), nil
}

func (e *Emulator) store(addr, size uint32, v uint64) error {
	if k := e.mem.check(addr, size); k != faultNone {
		return &accessFault{kind: k, addr: addr}
	}
	switch size {
	case 1:
		e.mem.put8(addr, uint8(v))
	case 2:
		e.mem.put16(addr, uint16(v))
	case 4:
		e.mem.put32(addr, uint32(v))
	default:
		e.mem.put64(addr, v)
	}
	return nil
}

// exec executes the instruction w at pc. c.pc and c.npc have already been
// advanced past it.
func (e *Emulator) exec(pc, w uint32) error {
	c := &e.cpu
	r := &c.regs
	op, rs, rt, rd, sa, funct := w>>26, w>>21&31, w>>16&31, w>>11&31, w>>6&31, w&63
	imm := uint32(int32(int16(w)))
	branch := func(taken bool) {
		if taken {
			c.npc = pc + 4 + imm<<2
		}
	}

	switch op {
	case 0x00:
		switch funct {
		case 0x00:
			r[rd] = r[rt] << sa
		case 0x02:
			if rs == 1 {
				r[rd] = bits.RotateLeft32(r[rt], -int(sa))
			} else {
				r[rd] = r[rt] >> sa
			}
		case 0x03:
			r[rd] = uint32(int32(r[rt]) >> sa)
		case 0x04:
			r[rd] = r[rt] << (r[rs] & 31)
		case 0x06:
			if sa == 1 {
				r[rd] = bits.RotateLeft32(r[rt], -int(r[rs]&31))
			} else {
				r[rd] = r[rt] >> (r[rs] & 31)
			}
		case 0x07:
			r[rd] = uint32(int32(r[rt]) >> (r[rs] & 31))
		case 0x08:
			c.npc = r[rs]
		case 0x09:
			target := r[rs]
			r[rd] = pc + 8
			c.npc = target
		case 0x0a:
			if r[rt] == 0 {
				r[rd] = r[rs]
			}
		case 0x0b:
			if r[rt] != 0 {
				r[rd] = r[rs]
			}
		case 0x0f:
		case 0x10:
			r[rd] = c.hi
		case 0x12:
			r[rd] = c.lo
		case 0x18:
			p := uint64(int64(int32(r[rs])) * int64(int32(r[rt])))
			c.hi, c.lo = uint32(p>>32), uint32(p)
		case 0x19:
			p := uint64(r[rs]) * uint64(r[rt])
			c.hi, c.lo = uint32(p>>32), uint32(p)
		case 0x1a:
			// The result of a division by zero is unpredictable.
			if x, y := int32(r[rs]), int32(r[rt]); y != 0 {
				c.lo, c.hi = uint32(x/y), uint32(x%y)
			}
		case 0x1b:
			if x, y := r[rs], r[rt]; y != 0 {
				c.lo, c.hi = x/y, x%y
			}
		case 0x21:
			r[rd] = r[rs] + r[rt]
		case 0x23:
			r[rd] = r[rs] - r[rt]
		case 0x24:
			r[rd] = r[rs] & r[rt]
		case 0x25:
			r[rd] = r[rs] | r[rt]
		case 0x26:
			r[rd] = r[rs] ^ r[rt]
		case 0x27:
			r[rd] = ^(r[rs] | r[rt])
		case 0x2a:
			r[rd] = b2u(int32(r[rs]) < int32(r[rt]))
		case 0x2b:
			r[rd] = b2u(r[rs] < r[rt])
		default:
			return illegal(pc, w)
		}
	case 0x01:
		switch rt {
		case 0x00:
			branch(int32(r[rs]) < 0)
		case 0x01:
			branch(int32(r[rs]) >= 0)
		case 0x10:
			// The link is written even when the branch is not taken, which
			// makes "bltzal zero" a pc read.
			taken := int32(r[rs]) < 0
			r[31] = pc + 8
			branch(taken)
		case 0x11:
			taken := int32(r[rs]) >= 0
			r[31] = pc + 8
			branch(taken)
		default:
			return illegal(pc, w)
		}
	case 0x04:
		branch(r[rs] == r[rt])
	case 0x05:
		branch(r[rs] != r[rt])
	case 0x06:
		branch(int32(r[rs]) <= 0)
	case 0x07:
		branch(int32(r[rs]) > 0)
	case 0x09:
		r[rt] = r[rs] + imm
	case 0x0a:
		r[rt] = b2u(int32(r[rs]) < int32(imm))
	case 0x0b:
		r[rt] = b2u(r[rs] < imm)
	case 0x0c:
		r[rt] = r[rs] & (w & 0xffff)
	case 0x0d:
		r[rt] = r[rs] | (w & 0xffff)
	case 0x0e:
		r[rt] = r[rs] ^ (w & 0xffff)
	case 0x0f:
		r[rt] = (w & 0xffff) << 16
	case 0x11:
		switch rs {
		case 0x00:
			r[rt] = uint32(c.fpr[rd])
		case 0x03:
			r[rt] = uint32(c.fpr[rd] >> 32)
		case 0x04:
			c.setLow(rd, r[rt])
		case 0x07:
			c.fpr[rd] = c.fpr[rd]&0xffffffff | uint64(r[rt])<<32
		case 0x08:
			branch(c.fcc == (rt&1 == 1))
		case 0x10, 0x11, 0x14:
			if err := c.fpu(rs, rt, rd, sa, funct); err != nil {
				return illegal(pc, w)
			}
		default:
			return illegal(pc, w)
		}
	case 0x1c:
		switch funct {
		case 0x02:
			r[rd] = r[rs] * r[rt]
		case 0x20:
			r[rd] = uint32(bits.LeadingZeros32(r[rs]))
		default:
			return illegal(pc, w)
		}
	case 0x1f:
		switch {
		case funct == 0x20 && sa == 0x10:
			r[rd] = uint32(int32(int8(r[rt])))
		case funct == 0x20 && sa == 0x18:
			r[rd] = uint32(int32(int16(r[rt])))
		default:
			return illegal(pc, w)
		}
	case 0x20, 0x21, 0x23, 0x24, 0x25, 0x31, 0x35:
		v, err := e.load(r[rs]+imm, accessSize(op))
		if err != nil {
			return err
		}
		switch op {
		case 0x20:
			r[rt] = uint32(int32(int8(v)))
		case 0x21:
			r[rt] = uint32(int32(int16(v)))
		case 0x31:
			c.setLow(rt, uint32(v))
		case 0x35:
			c.fpr[rt] = v
		default:
			r[rt] = uint32(v)
		}
	case 0x28, 0x29, 0x2b:
		if err := e.store(r[rs]+imm, accessSize(op), uint64(r[rt])); err != nil {
			return err
		}
	case 0x39:
		if err := e.store(r[rs]+imm, 4, c.fpr[rt]&0xffffffff); err != nil {
			return err
		}
	case 0x3d:
		if err := e.store(r[rs]+imm, 8, c.fpr[rt]); err != nil {
			return err
		}
	default:
		return illegal(pc, w)
	}
	r[0] = 0
	return nil
}

func accessSize(op uint32) uint32 {
	switch op {
	case 0x20, 0x24, 0x28:
		return 1
	case 0x21, 0x25, 0x29:
		return 2
	case 0x35, 0x3d:
		return 8
	}
	return 4
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

const (
	fmtS = 0x10
	fmtD = 0x11
	fmtW = 0x14
)

var errIllegal = errors.New("illegal")

// fpu executes a COP1 instruction of the given format, with ft, fs and fd in
// the rt, rd and sa fields.
func (c *cpu) fpu(format, ft, fs, fd, funct uint32) error {
	switch {
	case funct <= 3 && format == fmtS:
		x, y := c.single(fs), c.single(ft)
		var v float32
		switch funct {
		case 0:
			v = x + y
		case 1:
			v = x - y
		case 2:
			v = x * y
		default:
			v = x / y
		}
		c.setSingle(fd, v)
	case funct <= 3 && format == fmtD:
		x, y := c.double(fs), c.double(ft)
		var v float64
		switch funct {
		case 0:
			v = x + y
		case 1:
			v = x - y
		case 2:
			v = x * y
		default:
			v = x / y
		}
		c.setDouble(fd, v)
	case funct == 0x06 && format == fmtS:
		c.setLow(fd, uint32(c.fpr[fs]))
	case funct == 0x06 && format == fmtD:
		c.fpr[fd] = c.fpr[fs]
	case funct == 0x07 && format == fmtS:
		c.setLow(fd, uint32(c.fpr[fs])^1<<31)
	case funct == 0x07 && format == fmtD:
		c.fpr[fd] = c.fpr[fs] ^ 1<<63
	case funct == 0x20 && format == fmtD:
		c.setSingle(fd, float32(c.double(fs)))
	case funct == 0x20 && format == fmtW:
		c.setSingle(fd, float32(int32(c.fpr[fs])))
	case funct == 0x21 && format == fmtS:
		c.setDouble(fd, float64(c.single(fs)))
	case funct == 0x21 && format == fmtW:
		c.setDouble(fd, float64(int32(c.fpr[fs])))
	case funct == 0x0d && (format == fmtS || format == fmtD):
		x := c.double(fs)
		if format == fmtS {
			x = float64(c.single(fs))
		}
		c.setLow(fd, truncW(x))
	case funct&0x30 == 0x30 && (format == fmtS || format == fmtD):
		x, y := c.double(fs), c.double(ft)
		if format == fmtS {
			x, y = float64(c.single(fs)), float64(c.single(ft))
		}
		unordered := math.IsNaN(x) || math.IsNaN(y)
		cond := funct & 7
		c.fcc = cond&1 != 0 && unordered || cond&2 != 0 && x == y || cond&4 != 0 && x < y
	default:
		return errIllegal
	}
	return nil
}

// truncW truncates x to a word, with the default result 2^31-1 of the FPU
// for NaNs and values out of range.
func truncW(x float64) uint32 {
	if math.IsNaN(x) || x >= 1<<31 || x <= -(1<<31)-1 {
		return math.MaxInt32
	}
	return uint32(int32(x))
}
