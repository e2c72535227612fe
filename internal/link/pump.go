package link

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol/frame"
	"github.com/danmuck/edgelink/internal/protocol/session"
)

// Peer is one connected channel. Link is nil for read-only streams.
type Peer struct {
	Channel string
	Link    *Link
}

// Handler receives every message that passes validation on a channel.
type Handler interface {
	HandleMessage(p *Peer, m *frame.Message)
}

type HandlerFunc func(p *Peer, m *frame.Message)

func (f HandlerFunc) HandleMessage(p *Peer, m *frame.Message) { f(p, m) }

// Receiver drives bytes from streams into a shared parser.
type Receiver struct {
	parser  *session.Parser[string]
	handler Handler
	cfg     Config
	log     zerolog.Logger
}

func NewReceiver(parser *session.Parser[string], h Handler, cfg Config, log zerolog.Logger) *Receiver {
	if h == nil {
		h = HandlerFunc(func(*Peer, *frame.Message) {})
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	return &Receiver{parser: parser, handler: h, cfg: cfg, log: log}
}

func (r *Receiver) Parser() *session.Parser[string] { return r.parser }

// Pump reads src until EOF, an error, or ctx is done, feeding the peer's
// channel. EOF returns nil. A blocked read is only interrupted when src is
// closed by the caller.
func (r *Receiver) Pump(ctx context.Context, src io.Reader, p *Peer) error {
	state := r.parser.Channel(p.Channel)
	state.Initialize()
	conn, _ := src.(net.Conn)
	buf := make([]byte, r.cfg.ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if conn != nil && r.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
		}
		n, err := src.Read(buf)
		if n > 0 {
			observability.RecordBytesRead(n)
			r.feed(p, buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Debug().Str("channel", p.Channel).Msg("stream closed")
				return nil
			}
			return err
		}
	}
}

func (r *Receiver) feed(p *Peer, data []byte) {
	for _, c := range data {
		res := r.parser.ParseByte(p.Channel, c)
		switch res.Outcome {
		case session.Received:
			observability.RecordFrameReceived(res.Dropped)
			r.handler.HandleMessage(p, res.Message)
		case session.Rejected:
			observability.RecordFrameError(res.Reason.String())
		}
	}
}
