package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// Server accepts TCP streams and parses each one as its own channel, keyed
// by remote address.
type Server struct {
	recv   *Receiver
	newFin func() *frame.Finalizer
	id     Identity
	log    zerolog.Logger

	active  atomic.Int64
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
}

// NewServer builds a server around recv. newFin supplies the finalizer for
// each connection's reply link; nil means a global-scope finalizer per
// connection.
func NewServer(recv *Receiver, id Identity, newFin func() *frame.Finalizer, log zerolog.Logger) *Server {
	if newFin == nil {
		newFin = func() *frame.Finalizer { return frame.NewFinalizer(frame.ScopeGlobal) }
	}
	return &Server{
		recv:   recv,
		newFin: newFin,
		id:     id,
		log:    log,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Active returns the number of connected channels.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("link listening")
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln until ctx is done. It closes ln and all
// open connections on return and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()
	defer ln.Close()
	defer s.closeAllConns()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer s.untrackConn(conn)

	peer := &Peer{
		Channel: conn.RemoteAddr().String(),
		Link:    New(conn, s.newFin(), s.id).WithWriteTimeout(s.recv.cfg.WriteTimeout),
	}
	parser := s.recv.Parser()
	parser.Reset(peer.Channel)
	defer parser.Remove(peer.Channel)

	observability.ChannelOpened()
	active := s.active.Add(1)
	s.log.Info().Str("channel", peer.Channel).Int64("active", active).Msg("channel connected")
	defer func() {
		observability.ChannelClosed()
		remaining := s.active.Add(-1)
		st, _ := parser.Stats(peer.Channel)
		s.log.Info().
			Str("channel", peer.Channel).
			Int64("active", remaining).
			Uint64("received", st.SuccessCount).
			Uint64("dropped", st.DropCount).
			Uint64("errors", st.ErrorCount).
			Msg("channel disconnected")
	}()

	if err := s.recv.Pump(ctx, conn, peer); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn().Str("channel", peer.Channel).Err(err).Msg("channel read failed")
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
