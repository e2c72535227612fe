// Package checksum owns the running 16-bit frame checksum.
//
// The accumulator is CRC-16/MCRF4XX (the X.25 CCITT variant seeded with
// 0xFFFF). Frame parser and finalizer must seed and accumulate over the
// same byte range to agree.
package checksum

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_MCRF4XX)

// State is the running accumulator register.
type State struct {
	reg uint16
}

// Seed returns a freshly initialized accumulator.
func Seed() State {
	return State{reg: crc16.Init(table)}
}

// Accumulate folds one byte into s.
func Accumulate(s State, c byte) State {
	var b [1]byte
	b[0] = c
	return State{reg: crc16.Update(s.reg, b[:], table)}
}

// AccumulateBytes folds p into s in order.
func AccumulateBytes(s State, p []byte) State {
	return State{reg: crc16.Update(s.reg, p, table)}
}

// Value returns the checksum for everything accumulated so far.
func (s State) Value() uint16 {
	return crc16.Complete(s.reg, table)
}

// Bytes splits Value into the low and high wire bytes.
func (s State) Bytes() (low, high byte) {
	v := s.Value()
	return byte(v & 0xff), byte(v >> 8)
}

// Calculate returns the checksum of p from a fresh seed.
func Calculate(p []byte) uint16 {
	return AccumulateBytes(Seed(), p).Value()
}

// Join reassembles a checksum from its wire bytes.
func Join(low, high byte) uint16 {
	return uint16(low) | uint16(high)<<8
}
