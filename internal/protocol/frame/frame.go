package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/edgelink/internal/protocol/checksum"
)

const (
	// StartMarker opens every frame on the wire.
	StartMarker byte = 0x55

	// CoreHeaderLen counts length, sequence, system id, component id and kind.
	CoreHeaderLen = 5
	// HeaderLen is the core header plus the start marker.
	HeaderLen     = CoreHeaderLen + 1
	ChecksumLen   = 2
	NonPayloadLen = HeaderLen + ChecksumLen
	// NonStartLen is every non-payload byte except the start marker.
	NonStartLen   = NonPayloadLen - 1
	MaxPayloadLen = 255
	MaxFrameLen   = MaxPayloadLen + NonPayloadLen
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortBuffer     = errors.New("frame: short buffer")
)

// Message is one protocol frame: header, payload and checksum bytes.
// Length must match the payload bytes written before Finalize; the
// checksum bytes are only meaningful after Finalize or a validated parse.
type Message struct {
	Length       uint8
	Sequence     uint8
	SystemID     uint8
	ComponentID  uint8
	Kind         uint8
	Payload      [MaxPayloadLen]byte
	ChecksumLow  uint8
	ChecksumHigh uint8
}

// Body returns the logical payload, sized by Length.
func (m *Message) Body() []byte {
	return m.Payload[:m.Length]
}

// SetPayload copies p into the payload buffer and stamps Length.
func (m *Message) SetPayload(p []byte) error {
	if len(p) > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p))
	}
	n := copy(m.Payload[:], p)
	clear(m.Payload[n:])
	m.Length = uint8(n)
	return nil
}

// Checksum returns the stored checksum bytes as one value.
func (m *Message) Checksum() uint16 {
	return checksum.Join(m.ChecksumLow, m.ChecksumHigh)
}

// ComputeChecksum accumulates the core header and payload, excluding the
// start marker, exactly as the parser does.
func (m *Message) ComputeChecksum() checksum.State {
	s := checksum.Seed()
	s = checksum.Accumulate(s, m.Length)
	s = checksum.Accumulate(s, m.Sequence)
	s = checksum.Accumulate(s, m.SystemID)
	s = checksum.Accumulate(s, m.ComponentID)
	s = checksum.Accumulate(s, m.Kind)
	return checksum.AccumulateBytes(s, m.Body())
}

// Valid reports whether the stored checksum bytes match the contents.
func (m *Message) Valid() bool {
	lo, hi := m.ComputeChecksum().Bytes()
	return lo == m.ChecksumLow && hi == m.ChecksumHigh
}

func (m *Message) String() string {
	return fmt.Sprintf(
		"kind=%d seq=%d sys=%d comp=%d len=%d ck=%#04x",
		m.Kind, m.Sequence, m.SystemID, m.ComponentID, m.Length, m.Checksum(),
	)
}
