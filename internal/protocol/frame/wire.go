package frame

import (
	"fmt"
	"io"
)

// WireLength is the full transmit size of m including the start marker.
func WireLength(m *Message) int {
	return int(m.Length) + NonPayloadLen
}

// AppendFrame appends the wire image of m to dst.
func AppendFrame(dst []byte, m *Message) []byte {
	dst = append(dst, StartMarker, m.Length, m.Sequence, m.SystemID, m.ComponentID, m.Kind)
	dst = append(dst, m.Body()...)
	return append(dst, m.ChecksumLow, m.ChecksumHigh)
}

// Frame returns the transmit buffer for m. len(result) == WireLength(m).
func Frame(m *Message) []byte {
	return AppendFrame(make([]byte, 0, WireLength(m)), m)
}

// Encode writes the wire image of m into buf and returns the bytes used.
func Encode(buf []byte, m *Message) (int, error) {
	n := WireLength(m)
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(buf))
	}
	AppendFrame(buf[:0], m)
	return n, nil
}

// WriteFrame writes the wire image of m to w in a single Write.
func WriteFrame(w io.Writer, m *Message) error {
	var buf [MaxFrameLen]byte
	n, err := Encode(buf[:], m)
	if err != nil {
		return err
	}
	_, err = w.Write(buf[:n])
	return err
}

// ByteSender transmits a single byte, e.g. a UART data register write.
type ByteSender interface {
	SendByte(c byte) error
}

type ByteSenderFunc func(c byte) error

func (f ByteSenderFunc) SendByte(c byte) error { return f(c) }

// Send emits m one byte at a time in wire order. It stops at the first
// sender error; bytes already sent are not retracted.
func Send(s ByteSender, m *Message) error {
	header := [HeaderLen]byte{StartMarker, m.Length, m.Sequence, m.SystemID, m.ComponentID, m.Kind}
	for _, c := range header {
		if err := s.SendByte(c); err != nil {
			return err
		}
	}
	for _, c := range m.Body() {
		if err := s.SendByte(c); err != nil {
			return err
		}
	}
	if err := s.SendByte(m.ChecksumLow); err != nil {
		return err
	}
	return s.SendByte(m.ChecksumHigh)
}

// SendString emits s raw, without framing or checksum.
func SendString(sender ByteSender, s string) error {
	for i := 0; i < len(s); i++ {
		if err := sender.SendByte(s[i]); err != nil {
			return err
		}
	}
	return nil
}
