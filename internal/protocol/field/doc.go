// Package field owns payload scalar encoding.
//
// Ownership boundary:
// - fixed-width integer and float packing at explicit offsets
// - raw char/byte arrays with no terminator
// - running-offset Writer/Reader cursors for message packers
//
// Multi-byte scalars are big-endian. Every exported put/get is bounds
// checked against the destination slice; the caller still decides the
// layout.
package field
