package frame

import "fmt"

// SequenceScope selects how outgoing sequence numbers are shared.
type SequenceScope int

const (
	// ScopeGlobal shares one counter across every Finalize call, matching
	// what deployed peers expect on the wire.
	ScopeGlobal SequenceScope = iota
	// ScopeComponent keeps one counter per (system id, component id).
	ScopeComponent
)

func (s SequenceScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeComponent:
		return "component"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseSequenceScope maps a config value to a scope.
func ParseSequenceScope(raw string) (SequenceScope, error) {
	switch raw {
	case "", "global":
		return ScopeGlobal, nil
	case "component":
		return ScopeComponent, nil
	default:
		return ScopeGlobal, fmt.Errorf("frame: unknown sequence scope %q", raw)
	}
}

type componentKey struct {
	system    uint8
	component uint8
}

// Finalizer stamps outgoing messages. It is not safe for concurrent use;
// callers sharing one Finalizer must serialize Finalize.
type Finalizer struct {
	scope  SequenceScope
	global uint8
	byComp map[componentKey]uint8
}

func NewFinalizer(scope SequenceScope) *Finalizer {
	return &Finalizer{
		scope:  scope,
		byComp: make(map[componentKey]uint8),
	}
}

func (f *Finalizer) Scope() SequenceScope { return f.scope }

// Next returns the sequence the next Finalize for (systemID, componentID)
// would assign, without consuming it.
func (f *Finalizer) Next(systemID, componentID uint8) uint8 {
	if f.scope == ScopeComponent {
		return f.byComp[componentKey{systemID, componentID}]
	}
	return f.global
}

// Finalize stamps length, ids and the next sequence into m, computes the
// checksum and returns the wire length excluding the start marker.
func (f *Finalizer) Finalize(m *Message, systemID, componentID, length uint8) uint16 {
	m.Length = length
	m.SystemID = systemID
	m.ComponentID = componentID
	m.Sequence = f.take(systemID, componentID)

	m.ChecksumLow, m.ChecksumHigh = m.ComputeChecksum().Bytes()
	return uint16(length) + NonStartLen
}

func (f *Finalizer) take(systemID, componentID uint8) uint8 {
	if f.scope == ScopeComponent {
		key := componentKey{systemID, componentID}
		seq := f.byComp[key]
		f.byComp[key] = seq + 1
		return seq
	}
	seq := f.global
	f.global++
	return seq
}
