package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/macrolens/internal/models"
)

// ErrRunNotFound is returned when no audit run matches a lookup
var ErrRunNotFound = errors.New("audit run not found")

// AuditRunStorage persists completed audit runs
type AuditRunStorage interface {
	// Save inserts or replaces a run by ID
	Save(ctx context.Context, run *models.AuditRun) error

	// Get returns ErrRunNotFound when the ID is unknown
	Get(ctx context.Context, id string) (*models.AuditRun, error)

	// List returns runs newest first. A limit <= 0 returns all runs.
	List(ctx context.Context, limit int) ([]*models.AuditRun, error)

	// LatestForDate returns the most recent run for an effective date (YYYY-MM-DD)
	LatestForDate(ctx context.Context, date string) (*models.AuditRun, error)

	Delete(ctx context.Context, id string) error
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	AuditRunStorage() AuditRunStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
