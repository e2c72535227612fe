package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/protocol/frame"
)

type options struct {
	log    zerolog.Logger
	resync bool
}

// Option configures a Parser.
type Option func(*options)

// WithLogger sets the logger used for rejected frames and sequence gaps.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStartResync makes every channel treat a start marker inside a frame
// as an overrun and restart on it.
func WithStartResync() Option {
	return func(o *options) { o.resync = true }
}

// Parser holds one State per channel key. The registry is safe for
// concurrent use; each channel must be fed by one goroutine at a time.
type Parser[K comparable] struct {
	mu       sync.RWMutex
	channels map[K]*State
	opts     options
}

func NewParser[K comparable](opts ...Option) *Parser[K] {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser[K]{channels: make(map[K]*State), opts: o}
}

// Channel returns the state for ch, creating it on first use.
func (p *Parser[K]) Channel(ch K) *State {
	p.mu.RLock()
	s, ok := p.channels[ch]
	p.mu.RUnlock()
	if ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.channels[ch]; ok {
		return s
	}
	s = NewState(p.opts.resync)
	p.channels[ch] = s
	return s
}

func (p *Parser[K]) Initialize(ch K) { p.Channel(ch).Initialize() }

func (p *Parser[K]) Reset(ch K) { p.Channel(ch).Reset() }

// Remove forgets ch. A later use starts from a fresh state.
func (p *Parser[K]) Remove(ch K) {
	p.mu.Lock()
	delete(p.channels, ch)
	p.mu.Unlock()
}

// Len returns the number of tracked channels.
func (p *Parser[K]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}

// ParseByte feeds one byte to ch.
func (p *Parser[K]) ParseByte(ch K, c byte) Result {
	return p.feed(ch, p.Channel(ch), c)
}

// Parse feeds data to ch in order, calling fn for every completed message,
// and returns the counters after the last byte.
func (p *Parser[K]) Parse(ch K, data []byte, fn func(*frame.Message)) Stats {
	s := p.Channel(ch)
	for _, c := range data {
		res := p.feed(ch, s, c)
		if res.Outcome == Received && fn != nil {
			fn(res.Message)
		}
	}
	return s.Stats()
}

// Stats returns the counters for ch, if it is tracked.
func (p *Parser[K]) Stats(ch K) (Stats, bool) {
	p.mu.RLock()
	s, ok := p.channels[ch]
	p.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return s.Stats(), true
}

// Snapshot returns the counters of every tracked channel.
func (p *Parser[K]) Snapshot() map[K]Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[K]Stats, len(p.channels))
	for k, s := range p.channels {
		out[k] = s.Stats()
	}
	return out
}

func (p *Parser[K]) feed(ch K, s *State, c byte) Result {
	res := s.Feed(c)
	switch res.Outcome {
	case Rejected:
		p.opts.log.Debug().
			Interface("channel", ch).
			Str("reason", res.Reason.String()).
			Uint64("errors", res.Stats.ErrorCount).
			Msg("frame rejected")
	case Received:
		if res.Dropped > 0 {
			p.opts.log.Debug().
				Interface("channel", ch).
				Uint8("sequence", res.Message.Sequence).
				Uint8("dropped", res.Dropped).
				Msg("sequence gap")
		}
	}
	return res
}
