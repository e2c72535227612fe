package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/edgelink/internal/protocol/frame"
)

var (
	ErrChecksum = errors.New("session: checksum mismatch")
	ErrOverrun  = errors.New("session: frame overrun")
)

// Outcome classifies what one consumed byte did to the channel.
type Outcome uint8

const (
	Pending Outcome = iota
	Received
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Received:
		return "received"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Reason names why a frame was rejected.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonChecksumLow
	ReasonChecksumHigh
	ReasonOverrun
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonChecksumLow:
		return "checksum_low"
	case ReasonChecksumHigh:
		return "checksum_high"
	case ReasonOverrun:
		return "overrun"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Stats are the per-channel counters observed after a byte.
// NextSequence is the sequence expected next, one past the last received.
type Stats struct {
	SuccessCount uint64 `json:"success_count"`
	DropCount    uint64 `json:"drop_count"`
	ErrorCount   uint64 `json:"error_count"`
	OverrunCount uint64 `json:"overrun_count"`
	NextSequence uint8  `json:"next_sequence"`
}

// Result is returned for every byte fed to a channel.
type Result struct {
	Outcome Outcome
	Reason  Reason
	// Message is a private copy, set only when Outcome is Received.
	Message *frame.Message
	// Dropped is the sequence gap charged by this message.
	Dropped uint8
	Stats   Stats
}

func (r Result) Received() bool { return r.Outcome == Received }

// Err describes a rejection. It is nil unless Outcome is Rejected.
func (r Result) Err() error {
	if r.Outcome != Rejected {
		return nil
	}
	return &FrameError{Reason: r.Reason}
}

// FrameError wraps ErrChecksum or ErrOverrun with the failing reason.
type FrameError struct {
	Reason Reason
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v (%s)", e.Unwrap(), e.Reason)
}

func (e *FrameError) Unwrap() error {
	if e.Reason == ReasonOverrun {
		return ErrOverrun
	}
	return ErrChecksum
}
