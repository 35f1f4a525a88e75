package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dronefleet/internal/config"
	"dronefleet/internal/logging"
	"dronefleet/internal/sim"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a telemetry log file",
	Long:  "replay feeds telemetry rows from a JSONL export back into the configured sinks (STDOUT when none are configured).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(configPath, schemaPath)
		if err != nil {
			return err
		}
		cfg.Sinks.TUI = false
		if cfg.Sinks.Stdout == "none" && cfg.Sinks.LogFile == "" && cfg.Sinks.Greptime.Endpoint == "" {
			cfg.Sinks.Stdout = "json"
		}
		writers, cleanup, err := newWriters(cfg, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		ws := make([]sim.TelemetryWriter, 0, len(writers))
		for _, nw := range writers {
			ws = append(ws, nw.writer)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		logger.Info("replaying telemetry", "input", replayInput, "speed", replaySpeed, "sinks", len(ws))
		return sim.ReplayLogFile(logging.NewContext(ctx, logger), replayInput, sim.NewMultiWriter(ws...), replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 for no delay)")
	replayCmd.MarkFlagRequired("input")
}
