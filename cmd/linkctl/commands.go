package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/monitor"
	"github.com/danmuck/edgelink/internal/protocol/frame"
	"github.com/danmuck/edgelink/internal/protocol/session"
)

func identity(cfg config.Config) link.Identity {
	return link.Identity{SystemID: cfg.SystemID, ComponentID: cfg.ComponentID}
}

func parserOptions(cfg config.Config, log zerolog.Logger) []session.Option {
	opts := []session.Option{session.WithLogger(log)}
	if cfg.StartResync {
		opts = append(opts, session.WithStartResync())
	}
	return opts
}

func newEncodeCmd(opts *options) *cobra.Command {
	var (
		kind    uint8
		payload string
		count   int
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Finalize payloads into frames and print them as hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			body, err := decodeHex(payload)
			if err != nil {
				return err
			}
			l := link.New(hexLines{cmd.OutOrStdout()}, frame.NewFinalizer(cfg.SequenceScope), identity(cfg))
			for i := 0; i < count; i++ {
				if _, err := l.Send(kind, body); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint8Var(&kind, "kind", 0, "message kind")
	cmd.Flags().StringVar(&payload, "payload", "", "payload as hex")
	cmd.Flags().IntVar(&count, "count", 1, "number of frames, each with the next sequence")
	return cmd
}

// hexLines writes each frame as one line of hex.
type hexLines struct{ w io.Writer }

func (h hexLines) Write(p []byte) (int, error) {
	if _, err := fmt.Fprintln(h.w, hex.EncodeToString(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func newDecodeCmd(opts *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Parse frames from hex (default) or raw bytes and print them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			src := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			data, err := io.ReadAll(src)
			if err != nil {
				return err
			}
			if !raw {
				if data, err = decodeHex(string(data)); err != nil {
					return err
				}
			}
			return decodeStream(cmd.OutOrStdout(), data, session.NewParser[string](parserOptions(cfg, log)...))
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "input is raw bytes instead of hex")
	return cmd
}

func decodeStream(out io.Writer, data []byte, p *session.Parser[string]) error {
	const ch = "input"
	st := p.Parse(ch, data, func(m *frame.Message) {
		fmt.Fprintf(out, "%s payload=%s\n", m.String(), hex.EncodeToString(m.Body()))
	})
	_, err := fmt.Fprintf(out, "received=%d dropped=%d errors=%d overruns=%d next_seq=%d\n",
		st.SuccessCount, st.DropCount, st.ErrorCount, st.OverrunCount, st.NextSequence)
	return err
}

func newServeCmd(opts *options) *cobra.Command {
	var echo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept link connections and parse each as a channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			parser := session.NewParser[string](parserOptions(cfg, log)...)
			recv := link.NewReceiver(parser, link.HandlerFunc(func(p *link.Peer, m *frame.Message) {
				log.Info().Str("channel", p.Channel).Str("frame", m.String()).Msg("frame received")
				if echo {
					if _, err := p.Link.Send(m.Kind, m.Body()); err != nil {
						log.Warn().Str("channel", p.Channel).Err(err).Msg("echo failed")
					}
				}
			}), cfg.Link, log)
			newFin := func() *frame.Finalizer { return frame.NewFinalizer(cfg.SequenceScope) }
			srv := link.NewServer(recv, identity(cfg), newFin, log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(ctx, cfg.ListenAddr) })
			if strings.TrimSpace(cfg.MonitorAddr) != "" {
				mon := monitor.New("linkctl", parser, nil, cfg.CorsOrigins, log)
				g.Go(func() error { return mon.Run(ctx, cfg.MonitorAddr) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "send every received frame back with this node's identity")
	return cmd
}

func newDialCmd(opts *options) *cobra.Command {
	var (
		kind     uint8
		payload  string
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a link server and send frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			body, err := decodeHex(payload)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d := link.NewDialer(cfg.Link, identity(cfg), frame.NewFinalizer(cfg.SequenceScope), log)
			conn, err := d.Dial(ctx, cfg.DialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()

			parser := session.NewParser[string](parserOptions(cfg, log)...)
			recv := link.NewReceiver(parser, link.HandlerFunc(func(p *link.Peer, m *frame.Message) {
				log.Info().Str("channel", p.Channel).Str("frame", m.String()).Msg("reply received")
			}), cfg.Link, log)
			go func() { _ = recv.Pump(ctx, conn, conn.Peer) }()

			return sendEvery(ctx, func() (*frame.Message, error) {
				return conn.Link.Send(kind, body)
			}, count, interval, log)
		},
	}
	cmd.Flags().Uint8Var(&kind, "kind", 0, "message kind")
	cmd.Flags().StringVar(&payload, "payload", "", "payload as hex")
	cmd.Flags().IntVar(&count, "count", 1, "frames to send, 0 sends until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between frames")
	return cmd
}

// sendEvery calls send count times, or until ctx ends when count is 0,
// waiting interval between frames. It returns right after the last frame.
func sendEvery(ctx context.Context, send func() (*frame.Message, error), count int, interval time.Duration, log zerolog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive: %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for sent := 0; count <= 0 || sent < count; sent++ {
		if sent > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		m, err := send()
		if err != nil {
			return err
		}
		log.Debug().Str("frame", m.String()).Msg("frame sent")
	}
	return nil
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or inspect configuration",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a starter config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after file and flag overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			data, err := config.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// decodeHex accepts hex with optional whitespace and line breaks.
func decodeHex(s string) ([]byte, error) {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		b.WriteString(sc.Text())
	}
	out, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return out, nil
}
