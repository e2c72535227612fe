package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/logging"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Frame, parse, send and receive telemetry link traffic",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	root.AddCommand(
		newEncodeCmd(opts),
		newDecodeCmd(opts),
		newServeCmd(opts),
		newDialCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// setup resolves configuration and installs the logger for a subcommand.
func setup(cmd *cobra.Command, opts *options) (config.Config, zerolog.Logger, error) {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	logging.ConfigureRuntime()
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg, logging.Component("linkctl"), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "linkctl: %v\n", err)
		os.Exit(1)
	}
}
