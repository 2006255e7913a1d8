package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/curve"
	"github.com/ternarybob/macrolens/internal/services/scoring"
	"github.com/ternarybob/macrolens/internal/signals"
)

//go:embed templates/report.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

type chip struct {
	Text    string
	Class   string
	Tooltip string
}

type signalPanel struct {
	Asset         string
	Signal        chip
	Participation chip
	Direction     chip
	Deltas        string
}

type scoreCard struct {
	Dial       string
	Score      string
	Tone       string
	Fallback   bool
	Provenance string
	Delta      string
	DeltaClass string
}

type curveRow struct {
	Label   string
	Tooltip string
	Volume  string
	Change  string
	Tone    string
	Active  bool
}

type curvePanel struct {
	Title    string
	Regime   chip
	Active   string
	Clusters []curveRow
	Rows     []curveRow
	Footer   string
}

type keyNumber struct {
	Label   string
	Value   string
	Tooltip string
}

// draftColumn is one provider's narrative in an A/B or benchmark page.
type draftColumn struct {
	ID         string
	Label      string
	Body       template.HTML
	Error      string
	Redactions int
}

type pageData struct {
	Title         string
	EffectiveDate string
	Provider      string
	Generated     string
	Sources       []chip
	Signals       []signalPanel
	Trend         chip
	AlertFlags    []string
	AlertNotes    []string
	Scores        []scoreCard
	Panels        []curvePanel
	Incomplete    []string
	KeyNumbers    []keyNumber
	Body          template.HTML
	Columns       []draftColumn
	Benchmark     bool
	Notice        string
	Disclaimer    []string
}

// Disclaimer text printed on the HTML and PDF reports.
const (
	DisclaimerNotice = "Independently generated summary. Informational use only, NOT financial advice. Full disclaimers in footer."

	disclaimerSources = "This summary is generated independently from the public WisdomTree Daily Dashboard and the CME Daily Bulletin. " +
		"It is not affiliated with, reviewed by or approved by WisdomTree or CME Group, and no warranty is made that the data is complete, accurate or timely."
	disclaimerAdvice = "This content is for informational purposes only and is NOT financial advice. " +
		"It is not an offer or solicitation to buy or sell any security, and no advisory relationship is formed. Trading involves significant risk of loss."
	disclaimerErrors = "Automated extraction and model-written narrative may contain errors. Past performance is not indicative of future results."
)

// keyNumberDefs drives the key-numbers strip. Integer fields are shown with separators.
var keyNumberDefs = []struct {
	label   string
	key     string
	format  string
	integer bool
	tooltip string
}{
	{"S&P 500", models.MetricSP500Current, "%s", false, "Broad US equity index level"},
	{"Forward P/E", models.MetricForwardPECurrent, "%sx", false, "Valuation: price over expected earnings for the next 12 months"},
	{"HY Spread", models.MetricHYSpreadCurrent, "%s%%", false, "Credit risk: yield gap between high-yield bonds and Treasuries"},
	{"10Y Nominal", models.MetricYield10Y, "%s%%", false, "US Treasury 10-year yield"},
	{"VIX", models.MetricVIX, "%s", false, "Implied volatility of the S&P 500"},
	{"CME Vol", models.MetricCMETotalVolume, "%s", true, "Total volume across the CME exchange"},
}

// RenderHTML renders the run as a standalone HTML page.
func (r *Renderer) RenderHTML(run *models.AuditRun) ([]byte, error) {
	data := buildPage(run, r.Title(run))

	if !run.IsComparison() {
		body, err := r.toHTML(r.Markdown(run))
		if err != nil {
			return nil, err
		}
		data.Body = body
	} else {
		body, err := r.toHTML(r.preamble(run))
		if err != nil {
			return nil, err
		}
		data.Body = body
		data.Benchmark = run.Mode == models.RunModeBenchmark
		for i, d := range run.Narratives {
			col := draftColumn{
				ID:         fmt.Sprintf("draft-%d", i),
				Label:      d.Label(),
				Error:      d.Error,
				Redactions: d.Compliance.Redactions,
			}
			if d.Error == "" {
				var b strings.Builder
				writeNarrative(&b, d.Narrative, "")
				if col.Body, err = r.toHTML(b.String()); err != nil {
					return nil, err
				}
			}
			data.Columns = append(data.Columns, col)
		}
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("failed to render report page: %w", err)
	}

	r.logger.Debug().
		Str("run_id", run.ID).
		Int("html_size", out.Len()).
		Msg("HTML report rendered")
	return out.Bytes(), nil
}

func (r *Renderer) toHTML(markdown string) (template.HTML, error) {
	var out bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &out); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(out.String()), nil
}

func buildPage(run *models.AuditRun, title string) pageData {
	data := pageData{
		Title:         title,
		EffectiveDate: run.EffectiveDate,
		Provider:      run.Provider,
		Incomplete:    run.Completeness.Missing,
		KeyNumbers:    keyNumbers(run.Metrics),
		Notice:        DisclaimerNotice,
		Disclaimer:    []string{disclaimerSources, disclaimerAdvice, disclaimerErrors},
	}
	if !run.CreatedAt.IsZero() {
		data.Generated = run.CreatedAt.UTC().Format("2006-01-02 15:04 MST")
	}

	for _, f := range run.Freshness {
		data.Sources = append(data.Sources, freshnessChip(f))
	}

	for _, s := range run.Signals.Ordered() {
		data.Signals = append(data.Signals, signalPanel{
			Asset:         s.Asset.DisplayName(),
			Signal:        newChip(string(s.SignalLabel), s.GateReason),
			Participation: newChip(string(s.ParticipationLabel), "Are participants adding (Expanding) or removing (Contracting) money?"),
			Direction:     newChip(s.DirectionText(), "Is the system allowed to interpret price direction?"),
			Deltas:        fmt.Sprintf("Fut: %s | Opt: %s", signals.FormatSignedInt(s.FuturesOIDelta), signals.FormatSignedInt(s.OptionsOIDelta)),
		})
	}

	trend := run.Metrics.Text(models.MetricSP500TrendStatus)
	tooltip := run.Metrics.Text(models.MetricSP500TrendAudit)
	if run.Trend != nil {
		trend, tooltip = run.Trend.Status, run.Trend.Audit
	}
	if trend != "" {
		data.Trend = newChip(trend, tooltip)
	}

	data.AlertFlags = append(data.AlertFlags, run.Events.FlagsToday...)
	for _, f := range run.Events.FlagsToday {
		if note, ok := run.Events.Notes[f]; ok && note != "" {
			data.AlertNotes = append(data.AlertNotes, note)
		}
	}
	if run.RatesCurve != nil {
		if notes := curve.AlertNotes(run.RatesCurve.Quality); len(notes) > 0 {
			data.AlertNotes = append(data.AlertNotes, notes...)
			if !contains(data.AlertFlags, models.FlagDataQualityAlert) {
				data.AlertFlags = append(data.AlertFlags, models.FlagDataQualityAlert)
			}
		}
	}

	deltas := make(map[models.Dial]models.ScoreDelta, len(run.ScoreDeltas))
	for _, d := range run.ScoreDeltas {
		deltas[d.Dial] = d
	}
	for _, dial := range models.DialOrder {
		s, ok := run.Scores[dial]
		if !ok {
			continue
		}
		card := scoreCard{
			Dial:       string(dial),
			Score:      fmt.Sprintf("%.1f", s.Score),
			Tone:       scoring.ScoreTone(dial, s.Score),
			Fallback:   s.IsFallback(),
			Provenance: s.Provenance,
		}
		if d, ok := deltas[dial]; ok {
			card.Delta = fmt.Sprintf("narrative %+.1f", d.Delta)
			card.DeltaClass = d.Severity
		}
		data.Scores = append(data.Scores, card)
	}

	if run.RatesCurve != nil {
		data.Panels = append(data.Panels, panelFor("Rates Curve Structure", curve.RatesLayout, run.RatesCurve, "Source: Daily Bulletin Sec. 09"))
	}
	if run.EquityFlows != nil {
		data.Panels = append(data.Panels, panelFor("US Equity Index Flows (CME)", curve.EquityLayout, run.EquityFlows, "Source: Daily Bulletin Sec. 11"))
	}
	return data
}

func keyNumbers(m models.ExtractedMetrics) []keyNumber {
	out := make([]keyNumber, 0, len(keyNumberDefs))
	for _, def := range keyNumberDefs {
		value := "N/A"
		if def.integer {
			if v := m.Int(def.key); v != nil {
				value = fmt.Sprintf(def.format, signals.FormatInt(*v))
			}
		} else if v, ok := m.Float(def.key); ok {
			value = fmt.Sprintf(def.format, fmt.Sprintf("%.2f", v))
		}
		out = append(out, keyNumber{Label: def.label, Value: value, Tooltip: def.tooltip})
	}
	return out
}

func panelFor(title string, layout curve.Layout, agg *models.CurveAggregate, footer string) curvePanel {
	p := curvePanel{
		Title:  title,
		Regime: newChip(agg.Dominance.RegimeLabel, "Which part of the table carries the largest absolute OI change"),
		Footer: footer,
	}
	if agg.Dominance.ActiveCluster != "" {
		p.Active = fmt.Sprintf("%s (%s)", agg.Dominance.ActiveCluster, layout.Label(agg.Dominance.ActiveRow))
	}

	for _, def := range layout.Clusters {
		cl, ok := agg.Cluster(def.Name)
		if !ok {
			continue
		}
		net := cl.NetOIChange
		p.Clusters = append(p.Clusters, curveRow{
			Label:   def.Name,
			Tooltip: def.Description,
			Change:  signals.FormatSignedInt(&net),
			Tone:    changeTone(&net),
		})
	}

	active, _ := layout.ClusterOf(agg.Dominance.ActiveRow)
	for _, name := range layout.Rows {
		row, ok := agg.Rows[name]
		if !ok {
			continue
		}
		cr := curveRow{
			Label:  layout.Label(name),
			Volume: "N/A",
			Change: signals.FormatSignedInt(row.OIChange),
			Tone:   changeTone(row.OIChange),
		}
		if row.TotalVolume != nil {
			cr.Volume = signals.FormatInt(*row.TotalVolume)
		}
		if c, ok := layout.ClusterOf(name); ok && active.Name != "" && c.Name == active.Name {
			cr.Active = true
		}
		p.Rows = append(p.Rows, cr)
	}
	return p
}

func freshnessChip(f models.Freshness) chip {
	text := fmt.Sprintf("%s: %s", f.Source, orNA(f.Date))
	c := chip{Text: text, Tooltip: f.Status}
	switch f.Status {
	case common.FreshnessFresh:
		c.Class = "badge-green"
	case common.FreshnessStale:
		c.Class = "badge-red"
		c.Tooltip = fmt.Sprintf("STALE, %d days old", f.AgeDays)
	default:
		c.Class = "badge-gray"
	}
	return c
}

// newChip picks a badge colour from the value's wording.
func newChip(text, tooltip string) chip {
	v := strings.ToLower(text)
	class := "badge-gray"
	switch {
	case strings.Contains(v, "directional"):
		class = "badge-blue"
	case strings.Contains(v, "hedging"):
		class = "badge-orange"
	case strings.Contains(v, "allowed"), strings.Contains(v, "expanding"), strings.Contains(v, "trending up"):
		class = "badge-green"
	case strings.Contains(v, "contracting"), strings.Contains(v, "trending down"):
		class = "badge-red"
	case strings.HasPrefix(text, "+"):
		class = "badge-green"
	case strings.HasPrefix(text, "-"):
		class = "badge-red"
	}
	if text == "" {
		text = "Unknown"
	}
	return chip{Text: text, Class: class, Tooltip: tooltip}
}

func changeTone(v *int64) string {
	switch {
	case v == nil, *v == 0:
		return "flat"
	case *v > 0:
		return "up"
	default:
		return "down"
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
