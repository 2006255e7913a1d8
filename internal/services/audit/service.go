// Package audit runs the deterministic audit over one day's extracted metrics
// and narrative, and records the outcome.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/normalize"
	"github.com/ternarybob/macrolens/internal/services/compliance"
	"github.com/ternarybob/macrolens/internal/services/curve"
	"github.com/ternarybob/macrolens/internal/services/events"
	"github.com/ternarybob/macrolens/internal/services/scoring"
	"github.com/ternarybob/macrolens/internal/services/verification"
	"github.com/ternarybob/macrolens/internal/signals"
)

// Request is the input of one audit run. Only EffectiveDate is required.
type Request struct {
	EffectiveDate time.Time               `json:"effective_date"`
	Metrics       models.ExtractedMetrics `json:"metrics"`
	Section09     *models.Section09       `json:"section09,omitempty"`
	Section11     *models.Section11       `json:"section11,omitempty"`
	Narrative     string                  `json:"narrative"`
	Events        *models.EventContext    `json:"events,omitempty"` // nil derives flags from the calendar
	PriceBars     []models.PriceBar       `json:"price_bars,omitempty"`
	Provider      string                  `json:"provider,omitempty"`
	RunID         string                  `json:"run_id,omitempty"` // empty generates a new ID

	// Drafts holds every provider's narrative in an A/B or benchmark run.
	// Each is enforced on its own; the first usable one becomes Narrative when that is empty.
	Drafts []models.Draft `json:"drafts,omitempty"`
	Mode   string         `json:"mode,omitempty"`
}

// Service orchestrates the audit layer. It is safe for concurrent use.
type Service struct {
	classifier   *signals.Classifier
	filter       *compliance.Filter
	calendar     *events.Calendar
	storage      interfaces.AuditRunStorage
	eventService interfaces.EventService
	maxAgeDays   int
	logger       arbor.ILogger
	now          func() time.Time
}

// NewService builds the classifier and compliance filter from the policy.
// storage and eventService may be nil, in which case runs are neither saved nor announced.
func NewService(
	policy common.PolicyConfig,
	calendar *events.Calendar,
	storage interfaces.AuditRunStorage,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) (*Service, error) {
	filter, err := compliance.NewFilter(CompliancePolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("failed to build compliance filter: %w", err)
	}
	if calendar == nil {
		calendar = events.NewCalendar()
	}
	return &Service{
		classifier:   signals.NewClassifier(ClassifierPolicy(policy)),
		filter:       filter,
		calendar:     calendar,
		storage:      storage,
		eventService: eventService,
		maxAgeDays:   policy.MaxAgeDays,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Classifier returns the configured signal classifier
func (s *Service) Classifier() *signals.Classifier {
	return s.classifier
}

// Filter returns the configured compliance filter
func (s *Service) Filter() *compliance.Filter {
	return s.filter
}

// Calendar returns the event calendar
func (s *Service) Calendar() *events.Calendar {
	return s.calendar
}

// Prepare computes the ground truth the summarizer is prompted with.
// It has no side effects.
func (s *Service) Prepare(ctx context.Context, req Request) (models.GroundTruth, error) {
	if err := validate(req); err != nil {
		return models.GroundTruth{}, err
	}
	truth, _ := s.groundTruth(req)
	return truth, nil
}

func validate(req Request) error {
	if req.EffectiveDate.IsZero() {
		return fmt.Errorf("effective date is required")
	}
	switch req.Mode {
	case "", models.RunModeAB, models.RunModeBenchmark:
	default:
		return fmt.Errorf("unknown run mode %q", req.Mode)
	}
	return nil
}

// groundTruth runs steps 1 to 6: normalize, classify, score, aggregate, events and trend.
func (s *Service) groundTruth(req Request) (models.GroundTruth, []string) {
	metrics, notes := NormalizeMetrics(req.Metrics)

	var trend *models.Trend
	if len(req.PriceBars) > 0 {
		t := signals.ComputeTrend(req.PriceBars, s.now())
		trend = &t
		metrics = metrics.
			With(models.MetricSP500TrendStatus, t.Status).
			With(models.MetricSP500TrendAudit, t.Audit)
		if t.ChangePct != nil {
			metrics = metrics.With(models.MetricSP500ChangePct, *t.ChangePct)
		}
	}

	truth := models.GroundTruth{
		EffectiveDate: req.EffectiveDate.Format("2006-01-02"),
		Metrics:       metrics,
		Signals:       s.classifier.ClassifyMetrics(metrics),
		Scores:        scoring.ScoreAll(metrics),
		Trend:         trend,
	}

	if req.Section09 != nil {
		agg := curve.AggregateRates(*req.Section09)
		truth.RatesCurve = &agg
	}
	if req.Section11 != nil {
		agg := curve.AggregateEquity(*req.Section11)
		truth.EquityFlows = &agg
	}

	if req.Events != nil {
		truth.Events = *req.Events
	} else {
		truth.Events = s.calendar.Context(req.EffectiveDate)
	}
	return truth, notes
}

// Verification renders the deterministic block for a request without
// running the compliance filter or recording anything.
func (s *Service) Verification(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	truth, _ := s.groundTruth(req)
	return s.block(req.EffectiveDate, truth), nil
}

func (s *Service) block(effective time.Time, truth models.GroundTruth) string {
	return verification.BuildFull(verification.Input{
		EffectiveDate: effective,
		Metrics:       truth.Metrics,
		Signals:       truth.Signals,
		Events:        truth.Events,
		Scores:        truth.Scores,
		RatesCurve:    truth.RatesCurve,
		EquityFlows:   truth.EquityFlows,
		MaxAgeDays:    s.maxAgeDays,
	})
}

// Run executes the full audit and returns the run record. The narrative is
// enforced against the computed signals; the verification block is kept
// separately and placed ahead of the narrative when the run is rendered.
func (s *Service) Run(ctx context.Context, req Request) (*models.AuditRun, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	truth, notes := s.groundTruth(req)
	for _, note := range notes {
		s.logger.Warn().Str("effective_date", truth.EffectiveDate).Msg(note)
	}

	block := s.block(req.EffectiveDate, truth)

	drafts := s.enforceDrafts(req.Drafts, truth)

	raw := req.Narrative
	var narrative string
	var report models.ComplianceReport
	if p := primaryDraft(drafts); raw == "" && p != nil {
		raw, narrative, report = p.RawNarrative, p.Narrative, p.Compliance
	} else {
		narrative, report = s.filter.EnforceWithReport(raw, truth.Signals)
	}

	mode := req.Mode
	if mode == "" && len(drafts) > 1 {
		mode = models.RunModeAB
	}

	id := req.RunID
	if id == "" {
		id = common.NewRunID()
	}

	run := &models.AuditRun{
		ID:            id,
		EffectiveDate: truth.EffectiveDate,
		Provider:      req.Provider,
		Metrics:       truth.Metrics,
		Signals:       truth.Signals,
		Scores:        truth.Scores,
		RatesCurve:    truth.RatesCurve,
		EquityFlows:   truth.EquityFlows,
		Events:        truth.Events,
		Trend:         truth.Trend,
		Freshness:     verification.Freshness(req.EffectiveDate, truth.Metrics, s.maxAgeDays),
		Completeness:  verification.Completeness(truth.Metrics),
		Verification:  block,
		RawNarrative:  raw,
		Narrative:     narrative,
		Compliance:    report,
		ScoreDeltas:   scoring.CompareScores(truth.Scores, report.ClaimedScores),
		Mode:          mode,
		Narratives:    drafts,
		CreatedAt:     s.now(),
	}

	s.logRun(run)

	if s.storage != nil {
		if err := s.storage.Save(ctx, run); err != nil {
			return run, fmt.Errorf("failed to save audit run: %w", err)
		}
	}

	if s.eventService != nil {
		payload := interfaces.RunEventPayload{
			RunID:         run.ID,
			EffectiveDate: run.EffectiveDate,
			Provider:      run.Provider,
			Redactions:    run.Compliance.Redactions,
		}
		if err := s.eventService.Publish(ctx, interfaces.Event{Type: interfaces.EventRunCompleted, Payload: payload}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish run event")
		}
	}

	return run, nil
}

// enforceDrafts filters each draft against the same signals. Failed drafts are kept with their error.
func (s *Service) enforceDrafts(drafts []models.Draft, truth models.GroundTruth) []models.DraftResult {
	if len(drafts) == 0 {
		return nil
	}
	out := make([]models.DraftResult, 0, len(drafts))
	for _, d := range drafts {
		res := models.DraftResult{Draft: d, RawNarrative: d.Narrative}
		if d.Error == "" && strings.TrimSpace(d.Narrative) != "" {
			res.Narrative, res.Compliance = s.filter.EnforceWithReport(d.Narrative, truth.Signals)
			res.ScoreDeltas = scoring.CompareScores(truth.Scores, res.Compliance.ClaimedScores)
		} else {
			res.Narrative = ""
		}
		out = append(out, res)
	}
	return out
}

func primaryDraft(drafts []models.DraftResult) *models.DraftResult {
	for i := range drafts {
		if drafts[i].Error == "" && strings.TrimSpace(drafts[i].RawNarrative) != "" {
			return &drafts[i]
		}
	}
	return nil
}

func (s *Service) logRun(run *models.AuditRun) {
	for _, d := range run.Narratives {
		event := s.logger.Info()
		if d.Error != "" {
			event = s.logger.Warn().Str("error", d.Error)
		}
		event.
			Str("run_id", run.ID).
			Str("draft", d.Label()).
			Int("redactions", d.Compliance.Redactions).
			Int("score_deltas", len(d.ScoreDeltas)).
			Msg("Draft audited")
	}

	for _, dial := range models.DialOrder {
		if score, ok := run.Scores[dial]; ok && score.IsFallback() {
			s.logger.Warn().
				Str("run_id", run.ID).
				Str("dial", string(dial)).
				Str("provenance", score.Provenance).
				Msg("Dial fell back to default score")
		}
	}

	if !run.Completeness.Complete {
		s.logger.Warn().
			Str("run_id", run.ID).
			Str("missing", strings.Join(run.Completeness.Missing, ",")).
			Msg("Bulletin data incomplete")
	}

	for _, d := range run.ScoreDeltas {
		if d.Severity == scoring.SeverityMajor {
			s.logger.Warn().
				Str("run_id", run.ID).
				Str("dial", string(d.Dial)).
				Float64("claimed", d.Claimed).
				Float64("computed", d.Computed).
				Msg("Narrative score diverges from ground truth")
		}
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("effective_date", run.EffectiveDate).
		Int("redactions", run.Compliance.Redactions).
		Int("actor_replacements", run.Compliance.ActorReplacements).
		Int("signal_lines", run.Compliance.SignalLinesRewritten).
		Int("flagged_justifications", len(run.Compliance.FlaggedJustifications)).
		Msg("Audit run completed")
}

// integerFields are the bulletin counts that arrive as raw tokens.
func integerFields() []string {
	keys := []string{
		models.MetricCMETotalVolume,
		models.MetricCMETotalOpenInterest,
		models.MetricCMETotalOINetChange,
	}
	for _, a := range models.AssetOrder {
		keys = append(keys, models.FuturesOIChangeKey(a), models.OptionsOIChangeKey(a))
	}
	return keys
}

// NormalizeMetrics returns a copy of m with bulletin count tokens ("12,345",
// "UNCH", "----") converted to integers or null. Tokens that cannot be read
// become null and are reported in the returned notes.
func NormalizeMetrics(m models.ExtractedMetrics) (models.ExtractedMetrics, []string) {
	out := make(models.ExtractedMetrics, len(m))
	for k, v := range m {
		out[k] = v
	}

	var notes []string
	for _, key := range integerFields() {
		raw, ok := m[key].(string)
		if !ok {
			continue
		}
		if v := normalize.ParseToken(raw); v != nil {
			out[key] = *v
			continue
		}
		out[key] = nil
		if !normalize.IsNullToken(raw) {
			notes = append(notes, fmt.Sprintf("malformed %s token %q treated as missing", key, raw))
		}
	}
	return out, notes
}
