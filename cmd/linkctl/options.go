package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/protocol/frame"
)

// options holds the persistent flag values shared by every subcommand.
type options struct {
	configPath  string
	logLevel    string
	systemID    uint8
	componentID uint8
	scope       string
	startResync bool
	listenAddr  string
	dialAddr    string
	monitorAddr string
}

func (o *options) bind(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVarP(&o.configPath, "config", "c", "", "path to a TOML config file")
	fs.StringVar(&o.logLevel, "log-level", def.LogLevel, "log level (trace, debug, info, warn, error, off)")
	fs.Uint8Var(&o.systemID, "system-id", def.SystemID, "system id stamped on sent frames")
	fs.Uint8Var(&o.componentID, "component-id", def.ComponentID, "component id stamped on sent frames")
	fs.StringVar(&o.scope, "sequence-scope", def.SequenceScope.String(), "sequence counter scope (global, component)")
	fs.BoolVar(&o.startResync, "start-resync", def.StartResync, "abort a frame when a start marker appears inside it")
	fs.StringVar(&o.listenAddr, "listen", def.ListenAddr, "link listen address")
	fs.StringVar(&o.dialAddr, "dial", def.DialAddr, "link address to connect to")
	fs.StringVar(&o.monitorAddr, "monitor", def.MonitorAddr, "monitor HTTP address, empty to disable")
}

// resolve loads the config file, if any, then applies the environment and
// flags the user set explicitly. Precedence: defaults < file < env < flags.
func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	} else if path := os.Getenv("EDGELINK_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if changed["log-level"] {
		cfg.LogLevel = o.logLevel
	} else if raw := os.Getenv(logging.EnvLogLevel); raw != "" {
		if _, ok := logging.ParseLevel(raw); ok {
			cfg.LogLevel = raw
		}
	}
	if changed["system-id"] {
		cfg.SystemID = o.systemID
	}
	if changed["component-id"] {
		cfg.ComponentID = o.componentID
	}
	if changed["sequence-scope"] {
		scope, err := frame.ParseSequenceScope(o.scope)
		if err != nil {
			return config.Config{}, err
		}
		cfg.SequenceScope = scope
	}
	if changed["start-resync"] {
		cfg.StartResync = o.startResync
	}
	if changed["listen"] {
		cfg.ListenAddr = o.listenAddr
	}
	if changed["dial"] {
		cfg.DialAddr = o.dialAddr
	}
	if changed["monitor"] {
		cfg.MonitorAddr = o.monitorAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
