package link

import (
	"errors"
	"time"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines stream transport defaults.
type Config struct {
	ConnectTimeout time.Duration
	// ReadTimeout is the idle limit between reads. Zero waits forever.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ReadBufferSize is how many bytes one read hands to the parser.
	ReadBufferSize int
	// MaxConnectAttempts bounds dial retries. Zero retries until canceled.
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        0,
		WriteTimeout:       5 * time.Second,
		ReadBufferSize:     512,
		MaxConnectAttempts: 0,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) Validate() error {
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("link: timeouts must not be negative")
	}
	if c.ReadBufferSize <= 0 {
		return errors.New("link: read buffer size must be positive")
	}
	if c.MaxConnectAttempts < 0 {
		return errors.New("link: max connect attempts must not be negative")
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		return errors.New("link: backoff delays must not be negative")
	}
	return nil
}
