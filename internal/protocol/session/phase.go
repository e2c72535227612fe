package session

import "fmt"

// Phase is the parser position within the current frame.
type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseIdle
	PhaseGotStart
	PhaseGotLength
	PhaseGotSequence
	PhaseGotSystemID
	PhaseGotComponentID
	PhaseGotKind
	PhaseGotPayload
	PhaseGotChecksumLow
)

var phaseNames = [...]string{
	PhaseUninitialized:  "uninitialized",
	PhaseIdle:           "idle",
	PhaseGotStart:       "got_start",
	PhaseGotLength:      "got_length",
	PhaseGotSequence:    "got_sequence",
	PhaseGotSystemID:    "got_system_id",
	PhaseGotComponentID: "got_component_id",
	PhaseGotKind:        "got_kind",
	PhaseGotPayload:     "got_payload",
	PhaseGotChecksumLow: "got_checksum_low",
}

func (p Phase) String() string {
	if p.valid() {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func (p Phase) valid() bool {
	return p <= PhaseGotChecksumLow
}

// inFrame reports whether a start marker has been seen and the frame is
// not yet complete.
func (p Phase) inFrame() bool {
	return p >= PhaseGotStart && p <= PhaseGotChecksumLow
}
