// Package leb128 implements the variable length integer encodings used by the
// stack map and call frame information tables.
package leb128

import (
	"errors"
)

const maxVarintLen32 = 5

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errShort      = errors.New("unexpected end of input")
)

// AppendInt64 appends the LEB128 encoding of the signed value to buf.
func AppendInt64(buf []byte, value int64) []byte {
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & 0x7f)
		// Extract the sign bit.
		s := uint8(value & 0x40)
		value >>= 7
		// Signed values are done once the remaining bits are all copies of the sign bit.
		if (value != -1 || s == 0) && (value != 0 || s != 0) {
			b |= 0x80
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}
	return buf
}

// AppendUint64 appends the LEB128 encoding of the unsigned value to buf.
func AppendUint64(buf []byte, value uint64) []byte {
	for {
		b := uint8(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			return buf
		}
	}
}

// LoadUint32 decodes an unsigned 32-bit value from the head of buf, returning
// the number of bytes consumed.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	var s uint32
	for i := 0; i < maxVarintLen32; i++ {
		if i >= len(buf) {
			return 0, 0, errShort
		}
		b := buf[i]
		if b < 0x80 {
			// Unused bits must be all zero.
			if i == maxVarintLen32-1 && (b&0xf0) > 0 {
				return 0, 0, errOverflow32
			}
			return ret | uint32(b)<<s, uint64(i) + 1, nil
		}
		ret |= (uint32(b) & 0x7f) << s
		s += 7
	}
	return 0, 0, errOverflow32
}

// LoadInt32 decodes a signed 32-bit value from the head of buf, returning the
// number of bytes consumed.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, errShort
		}
		b = buf[bytesRead]
		ret |= (int32(b) & 0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			if shift < 32 && (b&0x40) != 0 {
				ret |= ^0 << shift
			}
			if bytesRead > maxVarintLen32 {
				return 0, 0, errOverflow32
			} else if unused := b & 0b00110000; bytesRead == maxVarintLen32 && ret < 0 && unused != 0b00110000 {
				return 0, 0, errOverflow32
			} else if bytesRead == maxVarintLen32 && ret >= 0 && unused != 0x00 {
				return 0, 0, errOverflow32
			}
			return
		}
	}
}
