package link

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// Conn is a dialed stream with its send side attached.
type Conn struct {
	net.Conn
	*Peer
}

// Dialer connects to a link server, retrying with backoff.
type Dialer struct {
	cfg Config
	id  Identity
	fin *frame.Finalizer
	rng *rand.Rand
	log zerolog.Logger
}

// NewDialer returns a Dialer. The finalizer is shared by every connection
// it makes so sequence numbers continue across reconnects.
func NewDialer(cfg Config, id Identity, fin *frame.Finalizer, log zerolog.Logger) *Dialer {
	if fin == nil {
		fin = frame.NewFinalizer(frame.ScopeGlobal)
	}
	return &Dialer{
		cfg: cfg,
		id:  id,
		fin: fin,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log,
	}
}

// Dial connects to addr. It retries until it succeeds, ctx is done, or
// MaxConnectAttempts is exhausted.
func (d *Dialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	nd := net.Dialer{Timeout: d.cfg.ConnectTimeout}
	for attempt := 1; ; attempt++ {
		raw, err := nd.DialContext(ctx, "tcp", addr)
		if err == nil {
			d.log.Info().Str("addr", addr).Int("attempt", attempt).Msg("link connected")
			peer := &Peer{
				Channel: raw.RemoteAddr().String(),
				Link:    New(raw, d.fin, d.id).WithWriteTimeout(d.cfg.WriteTimeout),
			}
			return &Conn{Conn: raw, Peer: peer}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if d.cfg.MaxConnectAttempts > 0 && attempt >= d.cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("link: dial %s after %d attempts: %w", addr, attempt, err)
		}
		d.log.Warn().Str("addr", addr).Int("attempt", attempt).Err(err).Msg("link dial failed")
		if err := d.cfg.Backoff.wait(ctx, attempt, d.rng); err != nil {
			return nil, err
		}
	}
}
