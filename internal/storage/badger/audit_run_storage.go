package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AuditRunStorage implements interfaces.AuditRunStorage for Badger
type AuditRunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuditRunStorage creates a new AuditRunStorage instance
func NewAuditRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditRunStorage {
	return &AuditRunStorage{
		db:     db,
		logger: logger,
	}
}

// Save upserts a run. A zero CreatedAt is stamped with the current time.
func (s *AuditRunStorage) Save(ctx context.Context, run *models.AuditRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("audit run must have an ID")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save audit run %s: %w", run.ID, err)
	}

	s.logger.Debug().
		Str("run_id", run.ID).
		Str("effective_date", run.EffectiveDate).
		Msg("Audit run saved")
	return nil
}

// Get returns the run with the given ID
func (s *AuditRunStorage) Get(ctx context.Context, id string) (*models.AuditRun, error) {
	var run models.AuditRun
	err := s.db.Store().Get(id, &run)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit run %s: %w", id, err)
	}
	return &run, nil
}

// List returns runs newest first
func (s *AuditRunStorage) List(ctx context.Context, limit int) ([]*models.AuditRun, error) {
	query := (&badgerhold.Query{}).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.AuditRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	return toPointers(runs), nil
}

// LatestForDate returns the newest run for the effective date
func (s *AuditRunStorage) LatestForDate(ctx context.Context, date string) (*models.AuditRun, error) {
	var runs []models.AuditRun
	query := badgerhold.Where("EffectiveDate").Eq(date).Index("EffectiveDate")
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to find audit runs for %s: %w", date, err)
	}
	if len(runs) == 0 {
		return nil, interfaces.ErrRunNotFound
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return &runs[0], nil
}

// Delete removes a run
func (s *AuditRunStorage) Delete(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.AuditRun{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete audit run %s: %w", id, err)
	}
	return nil
}

func toPointers(runs []models.AuditRun) []*models.AuditRun {
	out := make([]*models.AuditRun, len(runs))
	for i := range runs {
		out[i] = &runs[i]
	}
	return out
}
