package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/app"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, run stream and pipeline schedule",
	Long: `Starts the MacroLens server: the audit API under /api, the run lifecycle
stream on /ws, MCP tools on /mcp and, when pipeline.enabled is set, the
daily pipeline schedule.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	common.PrintBanner(config)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return err
	}
	defer application.Close()

	if err := application.StartScheduler(); err != nil {
		logger.Error().Err(err).Msg("Failed to start pipeline scheduler")
		return err
	}

	srv := server.New(application)
	serverErr := make(chan error, 1)

	common.SafeGo(logger, "http-server", func() {
		serverErr <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s", srv.Addr())).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("Server failed")
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
