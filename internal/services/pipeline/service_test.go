package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/delivery"
	"github.com/ternarybob/macrolens/internal/services/events"
	"github.com/ternarybob/macrolens/internal/services/llm"
	"github.com/ternarybob/macrolens/internal/services/report"
	"github.com/ternarybob/macrolens/internal/storage/badger"
)

type fakePDF struct {
	texts map[string]string
}

func (f *fakePDF) ExtractFile(ctx context.Context, path string) (string, error) {
	text, ok := f.texts[path]
	if !ok {
		return "", errors.New("no such file")
	}
	return text, nil
}

func (f *fakePDF) ExtractPages(ctx context.Context, path string) ([]interfaces.PDFPageContent, error) {
	text, err := f.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return []interfaces.PDFPageContent{{PageNumber: 1, Text: text}}, nil
}

type fakeExtractor struct {
	err         error
	gotText     string
	gotBulletin string
	metrics     models.ExtractedMetrics
}

func (f *fakeExtractor) Extract(ctx context.Context, text, bulletinText string) (*llm.Extraction, error) {
	f.gotText, f.gotBulletin = text, bulletinText
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Extraction{Metrics: f.metrics}, nil
}

type fakeSummarizer struct {
	err       error
	narrative string
	got       models.GroundTruth
}

func (f *fakeSummarizer) Summarize(ctx context.Context, truth models.GroundTruth) (string, error) {
	f.got = truth
	return f.narrative, f.err
}

type fixture struct {
	svc        *Service
	extractor  *fakeExtractor
	summarizer *fakeSummarizer
	kv         interfaces.KeyValueStorage
	runs       interfaces.AuditRunStorage
	bus        *events.Service
	reportDir  string
	outboxDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewLogger()

	mgr, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	bus := events.NewService(logger)
	t.Cleanup(func() { bus.Close() })

	auditSvc, err := audit.NewService(common.NewDefaultConfig().Policy, events.NewCalendar(), mgr.AuditRunStorage(), bus, logger)
	require.NoError(t, err)

	f := &fixture{
		extractor: &fakeExtractor{metrics: models.ExtractedMetrics{
			"cme_rates_futures_oi_change":  120000,
			"cme_rates_options_oi_change":  20000,
			"cme_equity_futures_oi_change": 10000,
			"cme_equity_options_oi_change": 90000,
		}},
		summarizer: &fakeSummarizer{narrative: "[SECTION:EQUITIES]\nEquities Signal: Directional\nA sharp rally."},
		kv:         mgr.KeyValueStorage(),
		runs:       mgr.AuditRunStorage(),
		bus:        bus,
		reportDir:  filepath.Join(t.TempDir(), "reports"),
		outboxDir:  filepath.Join(t.TempDir(), "outbox"),
	}

	cfg := common.PipelineConfig{
		WisdomTreePDF: "dashboard.pdf",
		CMEPDF:        "bulletin.pdf",
		Provider:      "claude",
		Timeout:       "30s",
	}
	pdf := &fakePDF{texts: map[string]string{
		"dashboard.pdf": "WisdomTree dashboard text",
		"bulletin.pdf":  "CME bulletin text",
	}}
	renderer := report.NewRenderer(common.ReportConfig{OutputDir: f.reportDir}, logger)
	deliverySvc := delivery.NewService(common.DeliveryConfig{
		Enabled:   true,
		OutboxDir: f.outboxDir,
		From:      "desk@example.com",
		To:        []string{"reader@example.com"},
	}, logger)

	f.svc = NewService(cfg, pdf, f.extractor, []Drafter{{Provider: "claude", Summarizer: f.summarizer}}, auditSvc, renderer, deliverySvc, f.kv, bus, logger)
	return f
}

var effective = time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)

func TestRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var rendered []interfaces.RunEventPayload
	require.NoError(t, f.bus.Subscribe(interfaces.EventReportRendered, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		rendered = append(rendered, e.Payload.(interfaces.RunEventPayload))
		return nil
	}))

	result, err := f.svc.Run(ctx, effective)
	require.NoError(t, err)
	require.NotNil(t, result.Run)
	assert.Empty(t, result.Degraded)

	assert.Equal(t, "WisdomTree dashboard text\n\nCME bulletin text", f.extractor.gotText)
	assert.Equal(t, "CME bulletin text", f.extractor.gotBulletin)
	assert.Equal(t, models.SignalHedgingVol, f.summarizer.got.Signals[models.AssetEquity].SignalLabel)

	assert.Contains(t, result.Run.Narrative, "Equities Signal: Hedging-Vol")
	assert.Contains(t, result.Run.Narrative, "A sharp [redacted].")

	require.Len(t, result.Files, 3)
	for _, p := range result.Files {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	require.NotEmpty(t, result.Outbox)
	_, err = os.Stat(result.Outbox)
	assert.NoError(t, err)

	saved, err := f.runs.Get(ctx, result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-18", saved.EffectiveDate)

	id, date := f.svc.LastRun(ctx)
	assert.Equal(t, result.Run.ID, id)
	assert.Equal(t, "2025-06-18", date)

	require.NoError(t, f.bus.Close())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rendered, 1)
	assert.Len(t, rendered[0].Files, 3)
}

func TestRun_DegradesCollaboratorFailures(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = errors.New("model unavailable")
	f.summarizer.err = errors.New("model unavailable")
	f.summarizer.narrative = ""

	result, err := f.svc.Run(context.Background(), effective)
	require.NoError(t, err)

	assert.Equal(t, []string{StageExtract, StageSummarize}, result.Degraded)
	assert.False(t, result.Run.Completeness.Complete)
	assert.Equal(t, models.SignalUnknown, result.Run.Signals[models.AssetEquity].SignalLabel)
	assert.Empty(t, result.Run.Narrative)
	assert.Len(t, result.Files, 3, "reports are still rendered")
}

func TestRun_ABComparison(t *testing.T) {
	f := newFixture(t)
	gemini := &fakeSummarizer{narrative: "[SECTION:EQUITIES]\nEquities Signal: Directional\nIndices soared on a risk-on tone."}
	f.svc.config.Provider = common.ProviderAll
	f.svc.drafters = []Drafter{
		{Provider: "claude", Summarizer: f.summarizer},
		{Provider: "gemini", Model: "gemini-2.5-pro", Summarizer: gemini},
	}

	result, err := f.svc.Run(context.Background(), effective)
	require.NoError(t, err)
	assert.Empty(t, result.Degraded)

	run := result.Run
	assert.Equal(t, models.RunModeAB, run.Mode)
	require.Len(t, run.Narratives, 2)
	assert.Equal(t, "Claude", run.Narratives[0].Label())
	assert.Equal(t, "Gemini (gemini-2.5-pro)", run.Narratives[1].Label())
	assert.Contains(t, run.Narratives[0].Narrative, "A sharp [redacted].")
	assert.Contains(t, run.Narratives[1].Narrative, "Indices [redacted] on a [redacted] tone.")
	assert.Contains(t, run.Narratives[1].Narrative, "Equities Signal: Hedging-Vol")
	assert.Equal(t, run.Narratives[0].Narrative, run.Narrative, "the first draft is the primary narrative")

	require.NotEmpty(t, result.Outbox)
	assert.Contains(t, f.svc.delivery.Subject(run), "(A/B Test)")

	saved, err := f.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Narratives, 2)
}

func TestRun_BenchmarkKeepsFailedDrafts(t *testing.T) {
	f := newFixture(t)
	f.svc.config.RunMode = common.RunModeBenchmark
	f.svc.drafters = []Drafter{
		{Provider: "claude", Model: "claude-opus-4-5", Summarizer: &fakeSummarizer{err: errors.New("overloaded")}},
		{Provider: "gemini", Model: "gemini-2.5-pro", Summarizer: f.summarizer},
	}

	result, err := f.svc.Run(context.Background(), effective)
	require.NoError(t, err)
	assert.Equal(t, []string{StageSummarize}, result.Degraded)

	run := result.Run
	assert.Equal(t, models.RunModeBenchmark, run.Mode)
	require.Len(t, run.Narratives, 2)
	assert.Equal(t, "overloaded", run.Narratives[0].Error)
	assert.Empty(t, run.Narratives[0].Narrative)
	assert.Equal(t, run.Narratives[1].Narrative, run.Narrative, "the first usable draft is the primary narrative")
}

func TestRun_MissingPDFs(t *testing.T) {
	f := newFixture(t)
	f.svc.config.WisdomTreePDF = "missing.pdf"
	f.svc.config.CMEPDF = ""

	result, err := f.svc.Run(context.Background(), effective)
	require.NoError(t, err)

	assert.Equal(t, []string{StagePDF, StageExtract}, result.Degraded)
	assert.Empty(t, f.extractor.gotText, "extractor is not called without text")
}

func TestRun_RenderFailureIsRecorded(t *testing.T) {
	f := newFixture(t)

	// A file where the report directory should be makes rendering fail.
	require.NoError(t, os.WriteFile(f.reportDir, []byte("x"), 0644))

	var mu sync.Mutex
	var failures []interfaces.FailureEventPayload
	require.NoError(t, f.bus.Subscribe(interfaces.EventPipelineFailed, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, e.Payload.(interfaces.FailureEventPayload))
		return nil
	}))

	_, err := f.svc.Run(context.Background(), effective)
	require.Error(t, err)

	msg, err := f.kv.Get(context.Background(), KeyLastError)
	require.NoError(t, err)
	assert.Contains(t, msg, StageRender)

	require.NoError(t, f.bus.Close())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.Equal(t, StageRender, failures[0].Stage)
}

func TestRun_Serialized(t *testing.T) {
	f := newFixture(t)

	f.svc.mu.Lock()
	_, err := f.svc.Run(context.Background(), effective)
	f.svc.mu.Unlock()

	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
