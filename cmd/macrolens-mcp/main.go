package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/macrolens/internal/app"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/mcpserver"
	"github.com/ternarybob/macrolens/internal/services/report"
	"github.com/ternarybob/macrolens/internal/storage"
)

func main() {
	// MACROLENS_CONFIG may list several files separated by commas
	configPath := os.Getenv("MACROLENS_CONFIG")
	if configPath == "" {
		configPath = "macrolens.toml"
	}

	var paths []string
	for _, p := range strings.Split(configPath, ",") {
		p = strings.TrimSpace(p)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	auditService, err := app.NewAuditService(config, nil, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize audit service")
	}

	// The run tools need the database. A server already holding the Badger
	// lock leaves them unregistered rather than failing the deterministic tools.
	var runs interfaces.AuditRunStorage
	var renderer *report.Renderer
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Warn().Err(err).Msg("Storage unavailable, run tools disabled")
	} else {
		defer storageManager.Close()
		runs = storageManager.AuditRunStorage()
		renderer = report.NewRenderer(config.Report, logger)
	}

	tools := mcpserver.NewTools(auditService, runs, renderer, logger)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpserver.NewServer(tools)); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
