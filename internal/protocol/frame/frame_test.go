package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/edgelink/internal/protocol/checksum"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestFinalizeStampsHeaderAndChecksum(t *testing.T) {
	testlog.Start(t)
	f := NewFinalizer(ScopeGlobal)
	var m Message
	m.Kind = 30
	copy(m.Payload[:], []byte{1, 2, 3, 4})

	n := f.Finalize(&m, 7, 200, 4)
	if n != 4+NonStartLen {
		t.Fatalf("unexpected wire length: %d", n)
	}
	if m.Length != 4 || m.SystemID != 7 || m.ComponentID != 200 || m.Sequence != 0 {
		t.Fatalf("header not stamped: %s", m.String())
	}
	want := checksum.Calculate([]byte{4, 0, 7, 200, 30, 1, 2, 3, 4})
	if m.Checksum() != want {
		t.Fatalf("checksum mismatch: got=%#04x want=%#04x", m.Checksum(), want)
	}
	if m.ChecksumLow != byte(want) || m.ChecksumHigh != byte(want>>8) {
		t.Fatalf("checksum byte order: lo=%#02x hi=%#02x", m.ChecksumLow, m.ChecksumHigh)
	}
	if !m.Valid() {
		t.Fatalf("finalized message must validate")
	}
}

func TestFinalizeGlobalSequenceWraps(t *testing.T) {
	testlog.Start(t)
	f := NewFinalizer(ScopeGlobal)
	var m Message
	for i := 0; i < 256; i++ {
		f.Finalize(&m, uint8(i%3), uint8(i%5), 0)
		if m.Sequence != uint8(i) {
			t.Fatalf("call %d got sequence %d", i, m.Sequence)
		}
	}
	f.Finalize(&m, 1, 1, 0)
	if m.Sequence != 0 {
		t.Fatalf("expected wrap to 0, got %d", m.Sequence)
	}
}

func TestFinalizeComponentScopeIsIndependent(t *testing.T) {
	testlog.Start(t)
	f := NewFinalizer(ScopeComponent)
	var a, b Message
	f.Finalize(&a, 1, 1, 0)
	f.Finalize(&a, 1, 1, 0)
	f.Finalize(&b, 1, 2, 0)
	if a.Sequence != 1 || b.Sequence != 0 {
		t.Fatalf("per-component counters leaked: a=%d b=%d", a.Sequence, b.Sequence)
	}
	if f.Next(1, 1) != 2 || f.Next(9, 9) != 0 {
		t.Fatalf("unexpected next: %d %d", f.Next(1, 1), f.Next(9, 9))
	}
}

func TestFrameLayout(t *testing.T) {
	testlog.Start(t)
	var m Message
	m.Kind = 0x21
	if err := m.SetPayload([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("set payload: %v", err)
	}
	NewFinalizer(ScopeGlobal).Finalize(&m, 1, 2, m.Length)

	got := Frame(&m)
	want := []byte{StartMarker, 2, 0, 1, 2, 0x21, 0xAA, 0xBB, m.ChecksumLow, m.ChecksumHigh}
	if !bytes.Equal(got, want) {
		t.Fatalf("layout mismatch:\n got=% x\nwant=% x", got, want)
	}
	if WireLength(&m) != len(got) || len(got) != int(m.Length)+8 {
		t.Fatalf("wire length mismatch: %d vs %d", WireLength(&m), len(got))
	}
}

func TestZeroLengthFrame(t *testing.T) {
	testlog.Start(t)
	var m Message
	m.Kind = 0
	n := NewFinalizer(ScopeGlobal).Finalize(&m, 1, 1, 0)
	if n != NonStartLen {
		t.Fatalf("unexpected wire length: %d", n)
	}
	if got := Frame(&m); len(got) != NonPayloadLen {
		t.Fatalf("zero-length frame should be %d bytes, got %d", NonPayloadLen, len(got))
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	testlog.Start(t)
	var m Message
	_ = m.SetPayload([]byte("abc"))
	buf := make([]byte, WireLength(&m)-1)
	if _, err := Encode(buf, &m); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	buf = make([]byte, 64)
	n, err := Encode(buf, &m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(buf[:n], Frame(&m)) {
		t.Fatalf("Encode and Frame disagree")
	}
}

func TestSetPayloadTooLarge(t *testing.T) {
	testlog.Start(t)
	var m Message
	if err := m.SetPayload(make([]byte, MaxPayloadLen+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if err := m.SetPayload(make([]byte, MaxPayloadLen)); err != nil {
		t.Fatalf("max payload rejected: %v", err)
	}
	if m.Length != MaxPayloadLen {
		t.Fatalf("unexpected length: %d", m.Length)
	}
}

func TestWriteFrameAndSendAgree(t *testing.T) {
	testlog.Start(t)
	var m Message
	m.Kind = 9
	_ = m.SetPayload([]byte("hello"))
	NewFinalizer(ScopeGlobal).Finalize(&m, 3, 4, m.Length)

	var buffered bytes.Buffer
	if err := WriteFrame(&buffered, &m); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var streamed []byte
	err := Send(ByteSenderFunc(func(c byte) error {
		streamed = append(streamed, c)
		return nil
	}), &m)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(buffered.Bytes(), streamed) {
		t.Fatalf("buffered and incremental paths differ:\n% x\n% x", buffered.Bytes(), streamed)
	}
}

func TestSendStopsOnError(t *testing.T) {
	testlog.Start(t)
	var m Message
	_ = m.SetPayload([]byte{1, 2, 3})
	boom := errors.New("uart busy")
	sent := 0
	err := Send(ByteSenderFunc(func(byte) error {
		if sent == 7 {
			return boom
		}
		sent++
		return nil
	}), &m)
	if !errors.Is(err, boom) {
		t.Fatalf("expected sender error, got %v", err)
	}
	if sent != 7 {
		t.Fatalf("sent %d bytes before failing", sent)
	}
}

func TestParseSequenceScope(t *testing.T) {
	testlog.Start(t)
	for raw, want := range map[string]SequenceScope{"": ScopeGlobal, "global": ScopeGlobal, "component": ScopeComponent} {
		got, err := ParseSequenceScope(raw)
		if err != nil || got != want {
			t.Fatalf("parse %q got=%v err=%v", raw, got, err)
		}
	}
	if _, err := ParseSequenceScope("channel"); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}
