package link

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/protocol/frame"
	"github.com/danmuck/edgelink/internal/protocol/session"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := cfg.Delay(1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := cfg.Delay(2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := cfg.Delay(3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := cfg.Delay(6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
	if got := cfg.Delay(10000, nil); got != 5*time.Second {
		t.Fatalf("attempt10000 got=%v", got)
	}
	if got := (BackoffConfig{Multiplier: 2}).Delay(4, nil); got != 0 {
		t.Fatalf("zero initial delay got=%v", got)
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Backoff
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got := cfg.Delay(3, rng)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ReadBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected buffer size error")
	}
	cfg = DefaultConfig()
	cfg.WriteTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestLinkSendThenPump(t *testing.T) {
	testlog.Start(t)
	var wire bytes.Buffer
	l := New(&wire, nil, Identity{SystemID: 3, ComponentID: 4})
	for i := 0; i < 3; i++ {
		if _, err := l.Send(uint8(10+i), []byte{byte(i), frame.StartMarker}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	var got []*frame.Message
	recv := NewReceiver(session.NewParser[string](), HandlerFunc(func(_ *Peer, m *frame.Message) {
		got = append(got, m)
	}), Config{ReadBufferSize: 5}, zerolog.Nop())
	if err := recv.Pump(context.Background(), &wire, &Peer{Channel: "buf"}); err != nil {
		t.Fatalf("pump: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, m := range got {
		if m.Sequence != uint8(i) || m.Kind != uint8(10+i) || m.SystemID != 3 || m.ComponentID != 4 {
			t.Fatalf("message %d: %s", i, m.String())
		}
	}
	st, _ := recv.Parser().Stats("buf")
	if st.SuccessCount != 3 || st.DropCount != 0 || st.NextSequence != 3 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	testlog.Start(t)
	l := New(&bytes.Buffer{}, nil, Identity{})
	if _, err := l.Send(1, make([]byte, frame.MaxPayloadLen+1)); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected payload error, got %v", err)
	}
}

func TestConcurrentSendKeepsWireOrder(t *testing.T) {
	testlog.Start(t)
	var wire bytes.Buffer
	l := New(&wire, nil, Identity{SystemID: 1, ComponentID: 1})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, _ = l.Send(1, []byte{byte(i)})
			}
		}()
	}
	wg.Wait()

	p := session.NewParser[int]()
	var seqs []uint8
	p.Parse(0, wire.Bytes(), func(m *frame.Message) { seqs = append(seqs, m.Sequence) })
	if len(seqs) != 100 {
		t.Fatalf("parsed %d frames", len(seqs))
	}
	for i, s := range seqs {
		if s != uint8(i) {
			t.Fatalf("frame %d has sequence %d", i, s)
		}
	}
}

type received struct {
	channel string
	msg     *frame.Message
}

func startServer(t *testing.T, h Handler) (*Server, string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := DefaultConfig()
	recv := NewReceiver(session.NewParser[string](), h, cfg, zerolog.Nop())
	srv := NewServer(recv, Identity{SystemID: 250, ComponentID: 1}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	return srv, ln.Addr().String(), func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("server did not stop")
		}
	}
}

func TestServerParsesEachConnectionAsChannel(t *testing.T) {
	testlog.Start(t)
	msgs := make(chan received, 8)
	srv, addr, stop := startServer(t, HandlerFunc(func(p *Peer, m *frame.Message) {
		msgs <- received{channel: p.Channel, msg: m}
		// echo back so the client sees the server identity
		_, _ = p.Link.Send(m.Kind, m.Body())
	}))
	defer stop()

	d := NewDialer(DefaultConfig(), Identity{SystemID: 7, ComponentID: 2}, nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Link.Send(42, []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case r := <-msgs:
		if r.channel != conn.LocalAddr().String() {
			t.Fatalf("channel=%q local=%q", r.channel, conn.LocalAddr().String())
		}
		if r.msg.Kind != 42 || string(r.msg.Body()) != "hello" || r.msg.SystemID != 7 {
			t.Fatalf("unexpected message: %s", r.msg.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not receive frame")
	}

	echo := make(chan *frame.Message, 1)
	recv := NewReceiver(session.NewParser[string](), HandlerFunc(func(_ *Peer, m *frame.Message) {
		echo <- m
	}), DefaultConfig(), zerolog.Nop())
	go func() { _ = recv.Pump(ctx, conn, conn.Peer) }()

	select {
	case m := <-echo:
		if m.SystemID != 250 || m.Kind != 42 || string(m.Body()) != "hello" {
			t.Fatalf("unexpected echo: %s", m.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not receive echo")
	}
	if srv.Active() != 1 {
		t.Fatalf("active=%d", srv.Active())
	}
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	d := NewDialer(cfg, Identity{}, nil, zerolog.Nop())
	if _, err := d.Dial(context.Background(), addr); err == nil {
		t.Fatalf("expected dial failure")
	}
}

func TestDialStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: time.Hour}
	d := NewDialer(cfg, Identity{}, nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := d.Dial(ctx, addr); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

var errAcceptFailed = errors.New("accept failed")

type failingListener struct {
	net.Listener
}

func (failingListener) Accept() (net.Conn, error) { return nil, errAcceptFailed }

func TestServeReturnsAcceptErrorWithoutLeakingWatcher(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	recv := NewReceiver(session.NewParser[string](), nil, DefaultConfig(), zerolog.Nop())
	srv := NewServer(recv, Identity{}, nil, zerolog.Nop())

	before := runtime.NumGoroutine()
	// never canceled: the watcher must still exit when Serve returns
	if err := srv.Serve(context.Background(), failingListener{ln}); !errors.Is(err, errAcceptFailed) {
		t.Fatalf("expected accept error, got %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines before=%d after=%d", before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
