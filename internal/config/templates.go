package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template returns a commented starter config.
func Template() string {
	return linkTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(linkTemplate), 0o600)
}

// Render encodes c in the same layout Load reads.
func Render(c Config) ([]byte, error) {
	out := fileConfig{
		SystemID:      int(c.SystemID),
		ComponentID:   int(c.ComponentID),
		SequenceScope: c.SequenceScope.String(),
		StartResync:   c.StartResync,
		ListenAddr:    c.ListenAddr,
		DialAddr:      c.DialAddr,
		MonitorAddr:   c.MonitorAddr,
		CorsOrigins:   c.CorsOrigins,
		LogLevel:      c.LogLevel,
		Link: fileLink{
			ConnectTimeout:     c.Link.ConnectTimeout.String(),
			ReadTimeout:        c.Link.ReadTimeout.String(),
			WriteTimeout:       c.Link.WriteTimeout.String(),
			ReadBufferSize:     c.Link.ReadBufferSize,
			MaxConnectAttempts: c.Link.MaxConnectAttempts,
			Backoff: fileBackoff{
				InitialDelay: c.Link.Backoff.InitialDelay.String(),
				Multiplier:   c.Link.Backoff.Multiplier,
				MaxDelay:     c.Link.Backoff.MaxDelay.String(),
				Jitter:       c.Link.Backoff.Jitter,
			},
		},
	}
	return toml.Marshal(out)
}

const linkTemplate = `# identity stamped on every outgoing frame
system_id = 1
component_id = 1

# "global" shares one sequence counter across all sources,
# "component" keeps one per (system_id, component_id)
sequence_scope = "global"

# treat a start marker inside a frame as an overrun
start_resync = false

listen_addr = ":14550"
dial_addr = "127.0.0.1:14550"
monitor_addr = ":9550"
cors_origins = ["http://localhost:3000"]
log_level = "info"

[link]
connect_timeout = "5s"
read_timeout = "0s"
write_timeout = "5s"
read_buffer_size = 512
max_connect_attempts = 0

[link.backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true
`
