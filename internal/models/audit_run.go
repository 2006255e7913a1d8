package models

import (
	"strings"
	"time"
)

// ComplianceReport counts what each compliance pass changed.
type ComplianceReport struct {
	FenceStripped         bool             `json:"fence_stripped"`
	ActorReplacements     int              `json:"actor_replacements"`
	SignalLinesRewritten  int              `json:"signal_lines_rewritten"`
	DirectionLinesForced  int              `json:"direction_lines_forced"`
	Redactions            int              `json:"redactions"`
	RedactedSections      []string         `json:"redacted_sections,omitempty"`
	FlaggedJustifications []Dial           `json:"flagged_justifications,omitempty"`
	ClaimedScores         map[Dial]float64 `json:"claimed_scores,omitempty"`
	AnchorsInjected       int              `json:"anchors_injected"`
	SentinelsStripped     int              `json:"sentinels_stripped"`
	BoldStripped          bool             `json:"bold_stripped"`
	Sections              []string         `json:"sections,omitempty"`
	DisclosureNotes       []string         `json:"disclosure_notes,omitempty"`
}

// Changed reports whether any pass altered the text.
func (r ComplianceReport) Changed() bool {
	return r.FenceStripped || r.ActorReplacements > 0 || r.SignalLinesRewritten > 0 ||
		r.DirectionLinesForced > 0 || r.Redactions > 0 || len(r.FlaggedJustifications) > 0 ||
		r.AnchorsInjected > 0 || r.SentinelsStripped > 0 || r.BoldStripped
}

// Freshness is the staleness verdict for one source date.
type Freshness struct {
	Source  string `json:"source"`
	Date    string `json:"date"`
	Status  string `json:"status"` // "FRESH", "STALE" or "UNKNOWN"
	AgeDays int    `json:"age_days"`
}

// Completeness lists required bulletin fields the extractor did not return.
type Completeness struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing,omitempty"`
}

// AuditRun is the persisted record of one audit. The audit layer itself never stores it.
type AuditRun struct {
	ID            string           `json:"id" badgerhold:"key"`
	EffectiveDate string           `json:"effective_date" badgerholdIndex:"EffectiveDate"`
	Provider      string           `json:"provider,omitempty"`
	Metrics       ExtractedMetrics `json:"metrics"`
	Signals       SignalSet        `json:"signals"`
	Scores        ScoreResult      `json:"scores"`
	RatesCurve    *CurveAggregate  `json:"rates_curve,omitempty"`
	EquityFlows   *CurveAggregate  `json:"equity_flows,omitempty"`
	Events        EventContext     `json:"events"`
	Trend         *Trend           `json:"trend,omitempty"`
	Freshness     []Freshness      `json:"freshness"`
	Completeness  Completeness     `json:"completeness"`
	Verification  string           `json:"verification"`
	RawNarrative  string           `json:"raw_narrative,omitempty"`
	Narrative     string           `json:"narrative"`
	Compliance    ComplianceReport `json:"compliance"`
	ScoreDeltas   []ScoreDelta     `json:"score_deltas,omitempty"`
	Mode          string           `json:"mode,omitempty"`
	Narratives    []DraftResult    `json:"narratives,omitempty"` // every draft of an A/B or benchmark run
	CreatedAt     time.Time        `json:"created_at"`
}

// IsComparison reports whether the run carries more than one provider's narrative.
func (r *AuditRun) IsComparison() bool {
	return len(r.Narratives) > 1
}

// Run modes. A run with a single narrative leaves Mode empty.
const (
	RunModeAB        = "ab"
	RunModeBenchmark = "benchmark"
)

// Draft is one provider's unfiltered narrative. Error is set when the provider failed.
type Draft struct {
	Provider  string `json:"provider" validate:"required,max=64"`
	Model     string `json:"model,omitempty" validate:"max=128"`
	Narrative string `json:"narrative"`
	Error     string `json:"error,omitempty" validate:"max=2048"`
}

// Label names the draft's author, e.g. "Gemini (gemini-2.5-pro)".
func (d Draft) Label() string {
	name := d.Provider
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if d.Model != "" {
		return name + " (" + d.Model + ")"
	}
	return name
}

// DraftResult is a draft after the compliance filter.
type DraftResult struct {
	Draft
	RawNarrative string           `json:"raw_narrative,omitempty"`
	Compliance   ComplianceReport `json:"compliance"`
	ScoreDeltas  []ScoreDelta     `json:"score_deltas,omitempty"`
}

// GroundTruth is the deterministic output handed to the summarizer prompt.
// The narrative must use these values rather than recompute them.
type GroundTruth struct {
	EffectiveDate string           `json:"effective_date"`
	Metrics       ExtractedMetrics `json:"extracted_metrics"`
	Signals       SignalSet        `json:"cme_signals"`
	Scores        ScoreResult      `json:"ground_truth_scores"`
	RatesCurve    *CurveAggregate  `json:"rates_curve,omitempty"`
	EquityFlows   *CurveAggregate  `json:"equity_flows,omitempty"`
	Trend         *Trend           `json:"sp500_trend,omitempty"`
	Events        EventContext     `json:"-"`
}
