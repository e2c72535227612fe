package link

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// Identity is the system and component stamped on outgoing frames.
type Identity struct {
	SystemID    uint8
	ComponentID uint8
}

// Link is the send side of a stream. Send is safe for concurrent use; the
// finalizer and the writer are serialized under one lock so sequence order
// matches wire order.
type Link struct {
	mu           sync.Mutex
	w            io.Writer
	fin          *frame.Finalizer
	id           Identity
	writeTimeout time.Duration
}

// New returns a Link writing to w. A nil finalizer gets a global-scope one.
func New(w io.Writer, fin *frame.Finalizer, id Identity) *Link {
	if fin == nil {
		fin = frame.NewFinalizer(frame.ScopeGlobal)
	}
	return &Link{w: w, fin: fin, id: id}
}

// WithWriteTimeout sets a per-frame write deadline when the writer is a
// net.Conn.
func (l *Link) WithWriteTimeout(d time.Duration) *Link {
	l.writeTimeout = d
	return l
}

func (l *Link) Identity() Identity { return l.id }

// Send finalizes a message of the given kind and writes it. The returned
// message carries the stamped sequence and checksum.
func (l *Link) Send(kind uint8, payload []byte) (*frame.Message, error) {
	m := &frame.Message{Kind: kind}
	if err := m.SetPayload(payload); err != nil {
		return nil, err
	}
	if err := l.SendMessage(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SendMessage finalizes m using its current Length and Kind, then writes it.
func (l *Link) SendMessage(m *frame.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fin.Finalize(m, l.id.SystemID, l.id.ComponentID, m.Length)
	if conn, ok := l.w.(net.Conn); ok && l.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	if err := frame.WriteFrame(l.w, m); err != nil {
		return err
	}
	observability.RecordFrameSent()
	return nil
}
