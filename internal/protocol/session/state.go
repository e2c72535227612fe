package session

import (
	"sync/atomic"

	"github.com/danmuck/edgelink/internal/protocol/checksum"
	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// State is the receive state for one channel.
type State struct {
	phase  Phase
	crc    checksum.State
	msg    frame.Message
	index  uint8
	resync bool

	lastSeq  atomic.Uint32
	success  atomic.Uint64
	drops    atomic.Uint64
	errors   atomic.Uint64
	overruns atomic.Uint64
}

// NewState returns a fresh channel state. With resync set, a start marker
// seen mid-frame aborts the frame as an overrun instead of being taken as
// data.
func NewState(resync bool) *State {
	return &State{resync: resync}
}

// Phase returns the current parser position.
func (s *State) Phase() Phase { return s.phase }

// Initialize resets s only when it was never used or holds an invalid
// phase. Calling it on a live channel is a no-op.
func (s *State) Initialize() {
	if s.phase == PhaseUninitialized || !s.phase.valid() {
		s.Reset()
	}
}

// Reset clears parse progress and all counters.
func (s *State) Reset() {
	s.phase = PhaseUninitialized
	s.crc = checksum.Seed()
	s.msg = frame.Message{}
	s.index = 0
	s.lastSeq.Store(0)
	s.success.Store(0)
	s.drops.Store(0)
	s.errors.Store(0)
	s.overruns.Store(0)
}

// Stats returns a snapshot of the counters.
func (s *State) Stats() Stats {
	return Stats{
		SuccessCount: s.success.Load(),
		DropCount:    s.drops.Load(),
		ErrorCount:   s.errors.Load(),
		OverrunCount: s.overruns.Load(),
		NextSequence: uint8(s.lastSeq.Load()) + 1,
	}
}

// Feed consumes one byte and reports what it did.
func (s *State) Feed(c byte) Result {
	if s.resync && c == frame.StartMarker && s.phase.inFrame() && !s.expectsChecksum(c) {
		s.overruns.Add(1)
		s.errors.Add(1)
		s.begin()
		return s.reject(ReasonOverrun)
	}

	switch s.phase {
	case PhaseGotStart:
		s.msg.Length = c
		s.index = 0
		s.fold(c, PhaseGotLength)
	case PhaseGotLength:
		s.msg.Sequence = c
		s.fold(c, PhaseGotSequence)
	case PhaseGotSequence:
		s.msg.SystemID = c
		s.fold(c, PhaseGotSystemID)
	case PhaseGotSystemID:
		s.msg.ComponentID = c
		s.fold(c, PhaseGotComponentID)
	case PhaseGotComponentID:
		s.msg.Kind = c
		if s.msg.Length == 0 {
			s.fold(c, PhaseGotPayload)
		} else {
			s.fold(c, PhaseGotKind)
		}
	case PhaseGotKind:
		s.msg.Payload[s.index] = c
		s.index++
		if s.index == s.msg.Length {
			s.fold(c, PhaseGotPayload)
		} else {
			s.fold(c, PhaseGotKind)
		}
	case PhaseGotPayload:
		low, _ := s.crc.Bytes()
		if c != low {
			s.errors.Add(1)
			s.phase = PhaseIdle
			return s.reject(ReasonChecksumLow)
		}
		s.phase = PhaseGotChecksumLow
	case PhaseGotChecksumLow:
		low, high := s.crc.Bytes()
		if c != high {
			s.errors.Add(1)
			s.phase = PhaseIdle
			return s.reject(ReasonChecksumHigh)
		}
		s.msg.ChecksumLow, s.msg.ChecksumHigh = low, high
		s.phase = PhaseIdle
		return s.receive()
	default:
		// idle, uninitialized, or a corrupted phase: hunt for a start marker
		if !s.phase.valid() {
			s.phase = PhaseIdle
		}
		if c == frame.StartMarker {
			s.begin()
		}
	}
	return Result{Outcome: Pending, Stats: s.Stats()}
}

func (s *State) begin() {
	s.crc = checksum.Seed()
	s.index = 0
	s.phase = PhaseGotStart
}

func (s *State) fold(c byte, next Phase) {
	s.crc = checksum.Accumulate(s.crc, c)
	s.phase = next
}

// expectsChecksum reports whether c is the checksum byte the current phase
// is waiting for.
func (s *State) expectsChecksum(c byte) bool {
	low, high := s.crc.Bytes()
	switch s.phase {
	case PhaseGotPayload:
		return c == low
	case PhaseGotChecksumLow:
		return c == high
	}
	return false
}

func (s *State) reject(r Reason) Result {
	return Result{Outcome: Rejected, Reason: r, Stats: s.Stats()}
}

func (s *State) receive() Result {
	seq := s.msg.Sequence
	var gap uint8
	if s.success.Load() > 0 {
		last := uint8(s.lastSeq.Load())
		if seq != last {
			gap = seq - last - 1
		}
	}
	s.drops.Add(uint64(gap))
	s.lastSeq.Store(uint32(seq))
	s.success.Add(1)

	m := s.msg
	clear(m.Payload[m.Length:])
	return Result{Outcome: Received, Message: &m, Dropped: gap, Stats: s.Stats()}
}
