package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ternarybob/macrolens/internal/app"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/storage"
)

// readInput reads a file, or stdin when path is "-" or empty
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readJSON(path string, v interface{}) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", displayPath(path), err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

// openStorage opens the configured database. Callers must Close it.
func openStorage() (interfaces.StorageManager, error) {
	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %w", config.Storage.Badger.Path, err)
	}
	return manager, nil
}

// newAuditService builds the audit layer without storage or events
func newAuditService() (*audit.Service, error) {
	return app.NewAuditService(config, nil, nil, logger)
}
