package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/railfeed/railfeed"
	"github.com/railfeed/railfeed/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the railfeed sync server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync server",
	Long: `Start the RailFeed sync server.

The server will:
  - Load configuration from the specified YAML file
  - Start polling the train position and traffic event feeds
  - Resolve train routes in the background
  - Serve the REST API and SSE stream on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  railfeed serve -c config.yaml
  railfeed serve --config /etc/railfeed/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"port", cfg.Port,
		"positions_interval", cfg.Positions.Interval.Duration().String(),
		"events_interval", cfg.Events.Interval.Duration().String(),
	)

	// convert config to SDK options
	opts := config.BuildOptions(cfg)
	opts = append(opts, railfeed.WithLogger(logger))

	rf, err := railfeed.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create railfeed: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- rf.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
