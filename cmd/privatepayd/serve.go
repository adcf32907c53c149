// serve.go - Command running the daemon until interrupted.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"privatepay/internal/config"
	"privatepay/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment components and their HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON or YAML config file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// serve runs until ctx is cancelled, then shuts the servers down gracefully.
func serve(ctx context.Context, cfg *config.Config) error {
	log, logCloser, err := newLogger(cfg.LogLevel, cfg.LogFile, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	n, err := buildNode(ctx, log, cfg)
	if err != nil {
		log.Error().Err(err).Msg("could not start")
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Error().Err(err).Msg("could not close node")
		}
	}()

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(log, cfg.MetricsAddr, n.registry)
		metricsServer.Start()
	}

	httpServer := n.api.HTTPServer(cfg.ListenAddr, cfg.Timeout())
	failed := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.ListenAddr).Msg("api server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-failed:
		log.Error().Err(err).Msg("api server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("api server shutdown")
	}
	if metricsServer != nil {
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("metrics server shutdown")
		}
	}
	return err
}
