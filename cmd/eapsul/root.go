package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/eapsul/internal/app"
	"github.com/lcalzada-xor/eapsul/internal/config"
	"github.com/lcalzada-xor/eapsul/internal/telemetry"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "eapsul -i <inject> -t <sniff> -s <ssid> -p <psk> -m <socket|file> [options]",
		Short: "WPA2-Enterprise EAP-TTLS system-under-learning adapter",
		Long: `eapsul drives a WPA2-Enterprise access point through EAP-TTLS on behalf of
an automata learner. Each abstract query becomes an injected 802.11 frame and
each captured answer is abstracted back into a response symbol.

Socket mode (-m socket) waits for one learner connection on --listen and
answers one line per query. Any other mode value is a file of queries that is
replayed in order, one reply per line on stdout.`,
		Example: `  # Serve a learner on 0.0.0.0:4444
  eapsul -i mon0 -t mon1 -s corp -p secret -u alice -m socket

  # Replay a query file with an anonymous outer identity
  eapsul -i mon0 -t mon1 -s corp -p secret -u alice -a anonymous -m queries.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				cmd.SetOut(cmd.ErrOrStderr())
				cmd.Usage()
				return err
			}
			return run(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	config.RegisterFlags(cmd.Flags(), config.Default())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eapsul %s (%s)\n", version, commit)
		},
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func run(parent context.Context, cfg *config.Config, stderr io.Writer) error {
	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	if cfg.TracePath != "" {
		f, err := os.Create(cfg.TracePath)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer f.Close()
		shutdownTracer, err := telemetry.InitTracer(f, version)
		if err != nil {
			logger.Error("Failed to init tracer", "error", err)
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracer", "error", err)
				}
			}()
		}
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(cfg, logger, app.Deps{})
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Info("eapsul starting", "version", version, "mode", cfg.Mode)
	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	logger.Info("eapsul stopped")
	return nil
}
