package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/services/pipeline"
)

// Runner executes one pipeline pass for an effective date
type Runner interface {
	Run(ctx context.Context, date time.Time) (*pipeline.Result, error)
}

// Status describes the scheduled pipeline job
type Status struct {
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"` // scheduler started
	Busy      bool       `json:"busy"`    // a run is in progress
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service triggers the pipeline on a cron schedule
type Service struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	logger   arbor.ILogger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	running   bool
	busy      bool
	cronID    cron.EntryID
	lastRun   *time.Time
	lastRunID string
	lastError string
}

// NewService creates a scheduler. The schedule is a 5-field cron expression.
func NewService(runner Runner, schedule string, logger arbor.ILogger) (*Service, error) {
	if err := common.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:   runner,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the pipeline job and starts the cron loop
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cronID = id
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Pipeline scheduler started")
	return nil
}

// Stop halts the cron loop, cancels an in-flight run and waits for it to return.
func (s *Service) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if wasRunning {
		<-s.cron.Stop().Done()
		s.logger.Info().Msg("Pipeline scheduler stopped")
	}
}

// RunNow runs the pipeline immediately for today's date and waits for it.
func (s *Service) RunNow(ctx context.Context) (*pipeline.Result, error) {
	return s.execute(ctx, "manual")
}

func (s *Service) runScheduled() {
	// Panics in a scheduled run must not stop the cron loop.
	done := make(chan struct{})
	common.SafeGo(s.logger, "pipeline:scheduled", func() {
		defer close(done)
		if _, err := s.execute(s.ctx, "cron"); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled pipeline run did not complete")
		}
	})
	<-done
}

func (s *Service) execute(ctx context.Context, trigger string) (*pipeline.Result, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, pipeline.ErrAlreadyRunning
	}
	s.busy = true
	s.mu.Unlock()

	started := s.now()
	s.logger.Info().Str("trigger", trigger).Msg("Triggering pipeline run")

	result, err := s.runner.Run(ctx, started)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastRun = &started
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	if result != nil && result.Run != nil {
		s.lastRunID = result.Run.ID
	}
	return result, err
}

// Status reports the schedule, last outcome and next fire time
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule:  s.schedule,
		Running:   s.running,
		Busy:      s.busy,
		LastRun:   s.lastRun,
		LastRunID: s.lastRunID,
		LastError: s.lastError,
	}
	if s.running {
		if next := s.cron.Entry(s.cronID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}
