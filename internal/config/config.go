package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// Config is the resolved runtime configuration for linkctl.
type Config struct {
	SystemID      uint8
	ComponentID   uint8
	SequenceScope frame.SequenceScope
	StartResync   bool
	ListenAddr    string
	DialAddr      string
	MonitorAddr   string
	CorsOrigins   []string
	LogLevel      string
	Link          link.Config
}

func Default() Config {
	return Config{
		SystemID:      1,
		ComponentID:   1,
		SequenceScope: frame.ScopeGlobal,
		ListenAddr:    ":14550",
		DialAddr:      "127.0.0.1:14550",
		MonitorAddr:   ":9550",
		CorsOrigins:   []string{"http://localhost:3000"},
		LogLevel:      "info",
		Link:          link.DefaultConfig(),
	}
}

// fileConfig mirrors the on-disk TOML layout. Only keys present in the file
// override defaults.
type fileConfig struct {
	SystemID      int      `toml:"system_id"`
	ComponentID   int      `toml:"component_id"`
	SequenceScope string   `toml:"sequence_scope"`
	StartResync   bool     `toml:"start_resync"`
	ListenAddr    string   `toml:"listen_addr"`
	DialAddr      string   `toml:"dial_addr"`
	MonitorAddr   string   `toml:"monitor_addr"`
	CorsOrigins   []string `toml:"cors_origins"`
	LogLevel      string   `toml:"log_level"`
	Link          fileLink `toml:"link"`
}

type fileLink struct {
	ConnectTimeout     string      `toml:"connect_timeout"`
	ReadTimeout        string      `toml:"read_timeout"`
	WriteTimeout       string      `toml:"write_timeout"`
	ReadBufferSize     int         `toml:"read_buffer_size"`
	MaxConnectAttempts int         `toml:"max_connect_attempts"`
	Backoff            fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("system_id") {
		id, err := byteID("system_id", raw.SystemID)
		if err != nil {
			return Config{}, err
		}
		cfg.SystemID = id
	}
	if meta.IsDefined("component_id") {
		id, err := byteID("component_id", raw.ComponentID)
		if err != nil {
			return Config{}, err
		}
		cfg.ComponentID = id
	}
	if meta.IsDefined("sequence_scope") {
		scope, err := frame.ParseSequenceScope(raw.SequenceScope)
		if err != nil {
			return Config{}, err
		}
		cfg.SequenceScope = scope
	}
	if meta.IsDefined("start_resync") {
		cfg.StartResync = raw.StartResync
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("dial_addr") {
		cfg.DialAddr = strings.TrimSpace(raw.DialAddr)
	}
	if meta.IsDefined("monitor_addr") {
		cfg.MonitorAddr = strings.TrimSpace(raw.MonitorAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"link", "connect_timeout"}, raw.Link.ConnectTimeout, &cfg.Link.ConnectTimeout},
		{[]string{"link", "read_timeout"}, raw.Link.ReadTimeout, &cfg.Link.ReadTimeout},
		{[]string{"link", "write_timeout"}, raw.Link.WriteTimeout, &cfg.Link.WriteTimeout},
		{[]string{"link", "backoff", "initial_delay"}, raw.Link.Backoff.InitialDelay, &cfg.Link.Backoff.InitialDelay},
		{[]string{"link", "backoff", "max_delay"}, raw.Link.Backoff.MaxDelay, &cfg.Link.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}
	if meta.IsDefined("link", "read_buffer_size") {
		cfg.Link.ReadBufferSize = raw.Link.ReadBufferSize
	}
	if meta.IsDefined("link", "max_connect_attempts") {
		cfg.Link.MaxConnectAttempts = raw.Link.MaxConnectAttempts
	}
	if meta.IsDefined("link", "backoff", "multiplier") {
		cfg.Link.Backoff.Multiplier = raw.Link.Backoff.Multiplier
	}
	if meta.IsDefined("link", "backoff", "jitter") {
		cfg.Link.Backoff.Jitter = raw.Link.Backoff.Jitter
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" && strings.TrimSpace(c.DialAddr) == "" {
		return errors.New("config requires listen_addr or dial_addr")
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("config log_level unknown: %q", c.LogLevel)
		}
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("config link invalid: %w", err)
	}
	return nil
}

func byteID(key string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("config %s out of range 0..255: %d", key, v)
	}
	return uint8(v), nil
}
