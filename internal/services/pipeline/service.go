// Package pipeline runs the daily sequence: read the source PDFs, extract
// metrics, summarize, audit, render and write the delivery artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/delivery"
	"github.com/ternarybob/macrolens/internal/services/llm"
	"github.com/ternarybob/macrolens/internal/services/report"
)

// ErrAlreadyRunning is returned when a run is requested while another is in progress.
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Stage names used in logs, failure events and degraded-stage lists.
const (
	StagePDF       = "pdf"
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StageAudit     = "audit"
	StageRender    = "render"
	StageDeliver   = "deliver"
)

// KV keys recording the last run.
const (
	KeyLastRun   = "pipeline.last_run"
	KeyLastDate  = "pipeline.last_date"
	KeyLastError = "pipeline.last_error"
)

const defaultTimeout = 10 * time.Minute

// Extractor turns source text into metrics and bulletin tables.
type Extractor interface {
	Extract(ctx context.Context, text, bulletinText string) (*llm.Extraction, error)
}

// Summarizer writes the narrative from ground truth.
type Summarizer interface {
	Summarize(ctx context.Context, truth models.GroundTruth) (string, error)
}

// Drafter is a summarizer labelled with the provider and model behind it.
// A run with several drafters produces an A/B or benchmark comparison.
type Drafter struct {
	Provider   string
	Model      string
	Summarizer Summarizer
}

// Result is the outcome of one pipeline run.
type Result struct {
	Run      *models.AuditRun `json:"run"`
	Files    []string         `json:"files"`
	Outbox   string           `json:"outbox,omitempty"`
	Degraded []string         `json:"degraded,omitempty"` // stages that failed and were replaced by empty input
}

// Service runs the pipeline. Runs are serialized.
type Service struct {
	config       common.PipelineConfig
	pdf          interfaces.PDFExtractor
	extractor    Extractor
	drafters     []Drafter
	audit        *audit.Service
	renderer     *report.Renderer
	delivery     *delivery.Service
	kv           interfaces.KeyValueStorage
	eventService interfaces.EventService
	logger       arbor.ILogger
	mu           sync.Mutex
}

// NewService creates a pipeline service. kv and eventService may be nil.
func NewService(
	cfg common.PipelineConfig,
	pdf interfaces.PDFExtractor,
	extractor Extractor,
	drafters []Drafter,
	auditService *audit.Service,
	renderer *report.Renderer,
	deliveryService *delivery.Service,
	kv interfaces.KeyValueStorage,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:       cfg,
		pdf:          pdf,
		extractor:    extractor,
		drafters:     drafters,
		audit:        auditService,
		renderer:     renderer,
		delivery:     deliveryService,
		kv:           kv,
		eventService: eventService,
		logger:       logger,
	}
}

// Run executes one pipeline pass for the effective date. Collaborator
// failures (PDF, extraction, summary) degrade to empty input; audit, render
// and delivery failures abort the run.
func (s *Service) Run(ctx context.Context, date time.Time) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(s.config.Timeout, defaultTimeout))
	defer cancel()

	day := date.Format("2006-01-02")
	start := time.Now()
	s.logger.Info().Str("effective_date", day).Str("provider", s.config.Provider).Msg("Pipeline run started")

	result, stage, err := s.run(ctx, date)
	if err != nil {
		s.fail(ctx, day, stage, err)
		return result, fmt.Errorf("pipeline %s stage failed: %w", stage, err)
	}

	s.record(ctx, result.Run)
	s.logger.Info().
		Str("effective_date", day).
		Str("run_id", result.Run.ID).
		Strs("degraded", result.Degraded).
		Int("files", len(result.Files)).
		Dur("duration", time.Since(start)).
		Msg("Pipeline run completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, date time.Time) (*Result, string, error) {
	result := &Result{}

	dashboard := s.readPDF(ctx, s.config.WisdomTreePDF, result)
	bulletin := s.readPDF(ctx, s.config.CMEPDF, result)

	req := audit.Request{
		EffectiveDate: date,
		Metrics:       models.ExtractedMetrics{},
		Provider:      s.config.Provider,
	}

	text := joinSources(dashboard, bulletin)
	if text == "" {
		s.logger.Warn().Msg("No source text available, continuing with empty metrics")
		result.degrade(StageExtract)
	} else if extraction, err := s.extractor.Extract(ctx, text, bulletin); err != nil {
		s.logger.Warn().Err(err).Msg("Metric extraction failed, continuing with empty metrics")
		result.degrade(StageExtract)
	} else {
		req.Metrics = extraction.Metrics
		req.Section09 = extraction.Section09
		req.Section11 = extraction.Section11
	}

	truth, err := s.audit.Prepare(ctx, req)
	if err != nil {
		return result, StageAudit, err
	}

	drafts := s.draft(ctx, truth, result)
	switch len(drafts) {
	case 0:
	case 1:
		req.Narrative = drafts[0].Narrative
	default:
		req.Drafts = drafts
		req.Mode = s.mode()
	}
	req.Events = &truth.Events

	if err := ctx.Err(); err != nil {
		return result, StageAudit, err
	}

	run, err := s.audit.Run(ctx, req)
	if err != nil {
		return result, StageAudit, err
	}
	result.Run = run

	files, err := s.renderer.WriteFiles(run, "")
	if err != nil {
		return result, StageRender, err
	}
	result.Files = files

	if s.delivery != nil && s.delivery.Enabled() {
		content, err := s.content(run)
		if err != nil {
			return result, StageDeliver, err
		}
		path, err := s.delivery.Deliver(run, content)
		if err != nil {
			return result, StageDeliver, err
		}
		result.Outbox = path
	}

	s.publish(ctx, interfaces.Event{
		Type: interfaces.EventReportRendered,
		Payload: interfaces.RunEventPayload{
			RunID:         run.ID,
			EffectiveDate: run.EffectiveDate,
			Provider:      run.Provider,
			Redactions:    run.Compliance.Redactions,
			Files:         files,
		},
	})
	return result, "", nil
}

// draft asks each drafter in turn. A failed drafter leaves an empty draft carrying its error.
func (s *Service) draft(ctx context.Context, truth models.GroundTruth, result *Result) []models.Draft {
	drafts := make([]models.Draft, 0, len(s.drafters))
	for _, d := range s.drafters {
		draft := models.Draft{Provider: d.Provider, Model: d.Model}
		narrative, err := d.Summarizer.Summarize(ctx, truth)
		if err != nil {
			s.logger.Warn().Err(err).Str("draft", draft.Label()).Msg("Summary failed, continuing with empty narrative")
			result.degrade(StageSummarize)
			draft.Error = err.Error()
		} else {
			draft.Narrative = narrative
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

func (s *Service) mode() string {
	if s.config.IsBenchmark() {
		return models.RunModeBenchmark
	}
	return models.RunModeAB
}

func (s *Service) readPDF(ctx context.Context, path string, result *Result) string {
	if path == "" {
		return ""
	}
	text, err := s.pdf.ExtractFile(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to read source PDF")
		result.degrade(StagePDF)
		return ""
	}
	return text
}

func (s *Service) content(run *models.AuditRun) (delivery.Content, error) {
	html, err := s.renderer.RenderHTML(run)
	if err != nil {
		return delivery.Content{}, err
	}
	pdf, err := s.renderer.RenderPDF(run)
	if err != nil {
		return delivery.Content{}, err
	}
	return delivery.Content{Text: s.renderer.Markdown(run), HTML: html, PDF: pdf}, nil
}

func (s *Service) record(ctx context.Context, run *models.AuditRun) {
	if s.kv == nil {
		return
	}
	values := []struct{ key, value, desc string }{
		{KeyLastRun, run.ID, "ID of the last completed pipeline run"},
		{KeyLastDate, run.EffectiveDate, "Effective date of the last completed pipeline run"},
		{KeyLastError, "", "Error of the last failed pipeline run"},
	}
	for _, v := range values {
		if err := s.kv.Set(ctx, v.key, v.value, v.desc); err != nil {
			s.logger.Warn().Err(err).Str("key", v.key).Msg("Failed to record pipeline state")
		}
	}
}

func (s *Service) fail(ctx context.Context, day, stage string, err error) {
	s.logger.Error().Err(err).Str("effective_date", day).Str("stage", stage).Msg("Pipeline run failed")

	if s.kv != nil {
		msg := fmt.Sprintf("%s %s: %v", day, stage, err)
		// The run context may already be cancelled.
		if setErr := s.kv.Set(context.Background(), KeyLastError, msg, "Error of the last failed pipeline run"); setErr != nil {
			s.logger.Warn().Err(setErr).Msg("Failed to record pipeline error")
		}
	}

	s.publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventPipelineFailed,
		Payload: interfaces.FailureEventPayload{EffectiveDate: day, Stage: stage, Err: err},
	})
}

func (s *Service) publish(ctx context.Context, event interfaces.Event) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to publish pipeline event")
	}
}

// LastRun returns the ID and date of the last successful run, if recorded.
func (s *Service) LastRun(ctx context.Context) (id, date string) {
	if s.kv == nil {
		return "", ""
	}
	id, _ = s.kv.Get(ctx, KeyLastRun)
	date, _ = s.kv.Get(ctx, KeyLastDate)
	return id, date
}

// LastError returns the message recorded by the last failed run, if any.
// A successful run clears it.
func (s *Service) LastError(ctx context.Context) string {
	if s.kv == nil {
		return ""
	}
	msg, _ := s.kv.Get(ctx, KeyLastError)
	return msg
}

func (r *Result) degrade(stage string) {
	for _, s := range r.Degraded {
		if s == stage {
			return
		}
	}
	r.Degraded = append(r.Degraded, stage)
}

func joinSources(parts ...string) string {
	var out string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += p
	}
	return out
}
