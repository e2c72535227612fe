package field

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Fixed widths of the scalar encodings.
const (
	Size8  = 1
	Size16 = 2
	Size32 = 4
	Size64 = 8
)

var (
	ErrShortBuffer   = errors.New("field: short buffer")
	ErrInvalidOffset = errors.New("field: invalid offset")
)

func check(buf []byte, off, width int) error {
	if off < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, off)
	}
	if width > len(buf)-off {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, width, off, len(buf))
	}
	return nil
}

// Unchecked writers. Callers own the bounds guarantee.

func putUint16(buf []byte, off int, v uint16) int {
	binary.BigEndian.PutUint16(buf[off:], v)
	return Size16
}

func putUint32(buf []byte, off int, v uint32) int {
	binary.BigEndian.PutUint32(buf[off:], v)
	return Size32
}

func putUint64(buf []byte, off int, v uint64) int {
	binary.BigEndian.PutUint64(buf[off:], v)
	return Size64
}

// PutUint8 writes v at off and returns the bytes written.
func PutUint8(buf []byte, off int, v uint8) (int, error) {
	if err := check(buf, off, Size8); err != nil {
		return 0, err
	}
	buf[off] = v
	return Size8, nil
}

func PutInt8(buf []byte, off int, v int8) (int, error) {
	return PutUint8(buf, off, uint8(v))
}

// PutUint16 writes v big-endian at off.
func PutUint16(buf []byte, off int, v uint16) (int, error) {
	if err := check(buf, off, Size16); err != nil {
		return 0, err
	}
	return putUint16(buf, off, v), nil
}

func PutInt16(buf []byte, off int, v int16) (int, error) {
	return PutUint16(buf, off, uint16(v))
}

// PutUint32 writes v big-endian at off.
func PutUint32(buf []byte, off int, v uint32) (int, error) {
	if err := check(buf, off, Size32); err != nil {
		return 0, err
	}
	return putUint32(buf, off, v), nil
}

func PutInt32(buf []byte, off int, v int32) (int, error) {
	return PutUint32(buf, off, uint32(v))
}

// PutUint64 writes v big-endian at off.
func PutUint64(buf []byte, off int, v uint64) (int, error) {
	if err := check(buf, off, Size64); err != nil {
		return 0, err
	}
	return putUint64(buf, off, v), nil
}

func PutInt64(buf []byte, off int, v int64) (int, error) {
	return PutUint64(buf, off, uint64(v))
}

// PutFloat32 writes the IEEE-754 bit pattern of v big-endian at off.
func PutFloat32(buf []byte, off int, v float32) (int, error) {
	return PutUint32(buf, off, math.Float32bits(v))
}

// PutFloat64 writes the IEEE-754 bit pattern of v big-endian at off.
func PutFloat64(buf []byte, off int, v float64) (int, error) {
	return PutUint64(buf, off, math.Float64bits(v))
}

// PutBytes copies src verbatim at off and returns len(src).
func PutBytes(buf []byte, off int, src []byte) (int, error) {
	if err := check(buf, off, len(src)); err != nil {
		return 0, err
	}
	return copy(buf[off:], src), nil
}

// PutString writes s as a fixed-width char array of n bytes with no
// terminator. Shorter strings are NUL padded; longer ones are truncated.
func PutString(buf []byte, off int, s string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative width %d", ErrShortBuffer, n)
	}
	if err := check(buf, off, n); err != nil {
		return 0, err
	}
	c := copy(buf[off:off+n], s)
	clear(buf[off+c : off+n])
	return n, nil
}

func Uint8(buf []byte, off int) (uint8, error) {
	if err := check(buf, off, Size8); err != nil {
		return 0, err
	}
	return buf[off], nil
}

func Int8(buf []byte, off int) (int8, error) {
	v, err := Uint8(buf, off)
	return int8(v), err
}

// Uint16 reads a big-endian uint16 at off.
func Uint16(buf []byte, off int) (uint16, error) {
	if err := check(buf, off, Size16); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[off:]), nil
}

func Int16(buf []byte, off int) (int16, error) {
	v, err := Uint16(buf, off)
	return int16(v), err
}

// Uint32 reads a big-endian uint32 at off.
func Uint32(buf []byte, off int) (uint32, error) {
	if err := check(buf, off, Size32); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[off:]), nil
}

func Int32(buf []byte, off int) (int32, error) {
	v, err := Uint32(buf, off)
	return int32(v), err
}

// Uint64 reads a big-endian uint64 at off.
func Uint64(buf []byte, off int) (uint64, error) {
	if err := check(buf, off, Size64); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[off:]), nil
}

func Int64(buf []byte, off int) (int64, error) {
	v, err := Uint64(buf, off)
	return int64(v), err
}

func Float32(buf []byte, off int) (float32, error) {
	v, err := Uint32(buf, off)
	return math.Float32frombits(v), err
}

func Float64(buf []byte, off int) (float64, error) {
	v, err := Uint64(buf, off)
	return math.Float64frombits(v), err
}

// Bytes returns a copy of the n bytes at off.
func Bytes(buf []byte, off, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative width %d", ErrShortBuffer, n)
	}
	if err := check(buf, off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[off:off+n])
	return out, nil
}

// String reads an n byte char array at off, stopping at the first NUL.
func String(buf []byte, off, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: negative width %d", ErrShortBuffer, n)
	}
	if err := check(buf, off, n); err != nil {
		return "", err
	}
	raw := buf[off : off+n]
	for i, c := range raw {
		if c == 0 {
			return string(raw[:i]), nil
		}
	}
	return string(raw), nil
}
