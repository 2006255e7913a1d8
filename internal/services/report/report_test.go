package report

import (
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
)

func i64(v int64) *int64 { return &v }

func testRun() *models.AuditRun {
	return &models.AuditRun{
		ID:            "run_test",
		EffectiveDate: "2025-06-20",
		Provider:      "claude",
		Signals: models.SignalSet{
			models.AssetEquity: {
				Asset:              models.AssetEquity,
				SignalLabel:        models.SignalDirectional,
				DirectionAllowed:   true,
				GateReason:         "Futures-led",
				ParticipationLabel: models.ParticipationExpanding,
				FuturesOIDelta:     i64(90000),
				OptionsOIDelta:     i64(20000),
			},
			models.AssetRates: {
				Asset:              models.AssetRates,
				SignalLabel:        models.SignalHedgingVol,
				GateReason:         "Options dominate",
				ParticipationLabel: models.ParticipationContracting,
				FuturesOIDelta:     i64(-10000),
				OptionsOIDelta:     i64(40000),
			},
		},
		Scores: models.ScoreResult{
			models.DialGrowth: {Score: 7.5, Kind: models.ProvenanceCalculated, Provenance: "Calculated(yield_10y=4.4)"},
			models.DialCredit: {Score: 5.0, Kind: models.ProvenanceDefault, Provenance: "Default"},
		},
		ScoreDeltas: []models.ScoreDelta{
			{Dial: models.DialGrowth, Claimed: 9.5, Computed: 7.5, Delta: 2.0, Severity: "major"},
		},
		RatesCurve: &models.CurveAggregate{
			Layout: "rates",
			Rows: map[string]models.Row{
				"2y":  {TotalVolume: i64(1200000), OIChange: i64(-5000)},
				"10y": {TotalVolume: i64(2500000), OIChange: i64(42000)},
			},
			Clusters: []models.ClusterStats{
				{Name: "Short End", Members: []string{"2y", "3y"}, AbsOIChange: 5000, NetOIChange: -5000},
				{Name: "Tens", Members: []string{"10y", "tn"}, AbsOIChange: 42000, NetOIChange: 42000},
			},
			Dominance: models.Dominance{ActiveCluster: "Tens", ActiveRow: "10y", RegimeLabel: "Mixed"},
			Quality:   models.CurveQuality{Notes: []string{"partial_missing_3y", "PRELIMINARY: bulletin totals may be revised"}},
		},
		Events: models.EventContext{
			FlagsToday: []string{models.FlagTripleWitching},
			Notes:      map[string]string{models.FlagTripleWitching: "Quarterly expiry distorts OI."},
		},
		Freshness: []models.Freshness{
			{Source: "WisdomTree As-Of", Date: "2025-06-19", Status: common.FreshnessFresh, AgeDays: 1},
			{Source: "CME Bulletin Date", Status: common.FreshnessUnknown},
		},
		Verification: "### Verification Block (Deterministic)\n\n- **Effective Date:** 2025-06-20\n",
		Narrative: "<a id=\"equities\" data-section=\"EQUITIES\"></a>\n### 3. Equities\n\nMarket participants added exposure.\n\n" +
			"| Dial | Score (0-10) | Justification |\n|---|---|---|\n| Growth Impulse | 9.5 | yield curve |\n",
		CreatedAt: time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC),
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	return NewRenderer(common.ReportConfig{OutputDir: t.TempDir()}, arbor.NewLogger())
}

func TestMarkdown(t *testing.T) {
	r := newTestRenderer(t)
	md := r.Markdown(testRun())

	assert.True(t, strings.HasPrefix(md, "# Macro Dashboard: 2025-06-20\n"))
	v := strings.Index(md, "Verification Block")
	n := strings.Index(md, "Market participants")
	require.True(t, v > 0 && n > 0)
	assert.Less(t, v, n, "verification block precedes the narrative")
}

func TestMarkdown_EmptyNarrative(t *testing.T) {
	r := newTestRenderer(t)
	run := testRun()
	run.Narrative = ""
	run.Verification = ""

	assert.Contains(t, r.Markdown(run), "No narrative was produced")
}

func TestRenderHTML(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderHTML(testRun())
	require.NoError(t, err)
	page := string(out)
	text := html.UnescapeString(page)

	assert.Contains(t, page, "<title>Macro Dashboard: 2025-06-20</title>")
	assert.Contains(t, page, `data-section="EQUITIES"`, "section anchors are kept")
	assert.Contains(t, page, "<table>", "markdown tables are rendered")

	// Signals panel
	assert.Contains(t, page, `<span class="badge badge-blue">Directional</span>`)
	assert.Contains(t, page, `<span class="badge badge-orange">Hedging-Vol</span>`)
	assert.Contains(t, text, "Fut: +90,000 | Opt: +20,000")

	// Scoreboard tones and deltas
	assert.Contains(t, page, `class="score-card strong"`)
	assert.Contains(t, text, "narrative +2.0")
	assert.Contains(t, page, `class="delta major"`)

	// Alerts carry event notes and the non-row curve note, not the row gap marker.
	assert.Contains(t, page, "TRIPLE_WITCHING, DATA_QUALITY_ALERT")
	assert.Contains(t, page, "Quarterly expiry distorts OI.")
	assert.Contains(t, page, "PRELIMINARY")
	assert.NotContains(t, page, "partial_missing_3y")

	// Rates panel marks the active cluster rows.
	assert.Contains(t, page, `<tr class="active-row"><td>10Y</td>`)
}

func TestRenderHTML_MinimalRun(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderHTML(&models.AuditRun{ID: "run_min", EffectiveDate: "2025-01-02"})
	require.NoError(t, err)

	page := string(out)
	assert.NotContains(t, page, `class="event-callout"`)
	assert.NotContains(t, page, "score-grid\">")
	assert.Contains(t, page, "No narrative was produced")
}

func TestRenderHTML_KeyNumbersAndDisclaimer(t *testing.T) {
	r := newTestRenderer(t)
	run := testRun()
	run.Metrics = models.ExtractedMetrics{
		models.MetricSP500Current:     5980.5,
		models.MetricForwardPECurrent: "21.4x",
		models.MetricHYSpreadCurrent:  3.1,
		models.MetricCMETotalVolume:   "21,345,678",
	}

	out, err := r.RenderHTML(run)
	require.NoError(t, err)
	text := html.UnescapeString(string(out))

	assert.Contains(t, text, `title="Credit risk: yield gap between high-yield bonds and Treasuries"`)
	assert.Contains(t, text, `<span class="key-number-label">S&P 500</span><span class="key-number-value numeric">5980.50</span>`)
	assert.Contains(t, text, `numeric">21.40x</span>`)
	assert.Contains(t, text, `numeric">3.10%</span>`)
	assert.Contains(t, text, `numeric">21,345,678</span>`)
	assert.Contains(t, text, `<span class="key-number-label">VIX</span><span class="key-number-value numeric">N/A</span>`)

	assert.Contains(t, text, DisclaimerNotice)
	assert.Contains(t, text, "is NOT financial advice")
	assert.Contains(t, text, `<footer class="footer">`)
}

func comparisonRun(mode string) *models.AuditRun {
	run := testRun()
	run.Mode = mode
	run.Narratives = []models.DraftResult{
		{
			Draft:      models.Draft{Provider: "claude", Narrative: "Claude says participants added exposure."},
			Compliance: models.ComplianceReport{Redactions: 2},
		},
		{
			Draft: models.Draft{Provider: "gemini", Model: "gemini-2.5-pro", Error: "quota exceeded"},
		},
	}
	run.Narrative = run.Narratives[0].Narrative
	return run
}

func TestMarkdown_Comparison(t *testing.T) {
	md := newTestRenderer(t).Markdown(comparisonRun(models.RunModeAB))

	claude := strings.Index(md, "## Claude Summary\n\nClaude says")
	gemini := strings.Index(md, "## Gemini (gemini-2.5-pro) Summary")
	require.True(t, claude > 0 && gemini > 0)
	assert.Less(t, strings.Index(md, "Verification Block"), claude)
	assert.Less(t, claude, gemini)
	assert.Contains(t, md, "_No narrative was produced: quota exceeded_")
}

func TestRenderHTML_Comparison(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.RenderHTML(comparisonRun(models.RunModeAB))
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, `<div class="columns">`)
	assert.Contains(t, page, `<section class="column" id="draft-0">`)
	assert.Contains(t, page, `<section class="column" id="draft-1">`)
	assert.Contains(t, page, "<h2>Claude Summary</h2>")
	assert.Contains(t, page, "<p>Claude says participants added exposure.</p>")
	assert.Contains(t, page, "Redactions: 2")
	assert.Contains(t, page, "No narrative was produced: quota exceeded")
	assert.NotContains(t, page, "model-select")
	assert.Equal(t, 1, strings.Count(page, "Verification Block"), "shared blocks are rendered once")

	out, err = r.RenderHTML(comparisonRun(models.RunModeBenchmark))
	require.NoError(t, err)
	page = string(out)
	assert.Contains(t, page, `<select id="model-select"`)
	assert.Contains(t, page, `<option value="draft-1">Gemini (gemini-2.5-pro)</option>`)
	assert.Contains(t, page, `<section class="column" id="draft-1" hidden>`)

	pdf, err := r.RenderPDF(comparisonRun(models.RunModeBenchmark))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
}

func TestRenderPDF(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		name      string
		narrative string
	}{
		{"full narrative", testRun().Narrative},
		{"empty narrative", ""},
		{"code and lists", "- one\n- two\n  - nested\n\n```\nraw block\n```\n\n**bold** _italic_ `code`"},
		{"wide table", "| a | b | c | d | e | f | g |\n|---|---|---|---|---|---|---|\n| " + strings.Repeat("long words ", 40) + " | 1 | 2 | 3 | 4 | 5 | 6 |\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := testRun()
			run.Narrative = tt.narrative

			out, err := r.RenderPDF(run)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(out), "%PDF-"))
		})
	}
}

func TestWriteFiles(t *testing.T) {
	r := newTestRenderer(t)
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := r.WriteFiles(testRun(), dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, ext := range []string{".md", ".html", ".pdf"} {
		path := filepath.Join(dir, "macro_2025-06-20_run_test"+ext)
		assert.Contains(t, paths, path)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestBaseName_SanitizesID(t *testing.T) {
	run := &models.AuditRun{ID: "run/../x", CreatedAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "macro_2025-03-04_run____x", baseName(run))
}

func TestNewChip(t *testing.T) {
	tests := []struct {
		text  string
		class string
	}{
		{"Directional", "badge-blue"},
		{"Hedging-Vol", "badge-orange"},
		{"Allowed", "badge-green"},
		{"Expanding", "badge-green"},
		{"Contracting", "badge-red"},
		{"Trending Down", "badge-red"},
		{"+12", "badge-green"},
		{"Low Signal/Noise", "badge-gray"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.class, newChip(tt.text, "").Class)
		})
	}
}
