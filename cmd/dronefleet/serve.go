package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dronefleet/internal/api"
	"dronefleet/internal/auth"
	"dronefleet/internal/config"
	"dronefleet/internal/fleet"
	"dronefleet/internal/logging"
	"dronefleet/internal/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet engine and its HTTP API",
	Long:  "serve starts telemetry mutation, snapshot broadcasting and the HTTP API, and runs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, schemaPath)
		if err != nil {
			return err
		}

		// With the TUI on, log lines go to its event pane instead of the
		// terminal it owns.
		var logOut io.Writer = os.Stderr
		tuiLog := &tuiLogWriter{}
		if cfg.Sinks.TUI {
			logOut = tuiLog
		}
		logger := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		image, err := loadImage(cfg.Fleet.ImagePath)
		if err != nil {
			return err
		}
		simulator := sim.NewSimulator(cfg, image)

		commander := func(id, action string) error {
			_, err := simulator.Commands().Apply(ctx, id, action)
			return err
		}
		writers, cleanup, err := newWriters(cfg, commander)
		if err != nil {
			return err
		}
		defer cleanup()
		for _, nw := range writers {
			if tw, ok := nw.writer.(*sim.TUIWriter); ok {
				tuiLog.attach(tw)
			}
			if _, err := simulator.AttachWriter(ctx, nw.name, nw.writer); err != nil {
				return fmt.Errorf("attach %s sink: %w", nw.name, err)
			}
		}

		var authn *auth.Authenticator
		if cfg.Auth.JWTSecret != "" {
			authn, err = auth.New(auth.Config{
				Secret:   cfg.Auth.JWTSecret,
				Username: cfg.Auth.Username,
				Password: cfg.Auth.Password,
				TTL:      cfg.Auth.TokenTTL,
			})
			if err != nil {
				return err
			}
		} else {
			logger.Warn("auth disabled: commands are accepted without a token")
		}

		srvDone := make(chan error, 1)
		go func() {
			err := api.NewServer(simulator, authn).Start(ctx, cfg.Listen)
			if err != nil {
				logger.Error("api server failed", "err", err)
				stop()
			}
			srvDone <- err
		}()

		simulator.Run(ctx)
		err = <-srvDone
		logger.Info("fleet engine stopped")
		return err
	},
}

// loadImage reads the shared camera frame, or renders a placeholder when no
// path is configured.
func loadImage(path string) ([]byte, error) {
	if path == "" {
		return fleet.PlaceholderImage(64, 48)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet image: %w", err)
	}
	return b, nil
}
