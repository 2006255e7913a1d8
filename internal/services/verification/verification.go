// Package verification renders the deterministic verification block shown
// above every narrative. Output depends only on the arguments.
package verification

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/curve"
	"github.com/ternarybob/macrolens/internal/signals"
)

//go:embed verification.md.tmpl
var blockTemplate string

var tmpl = template.Must(template.New("verification").Funcs(template.FuncMap{
	"cell": escapeCell,
	"join": strings.Join,
}).Parse(blockTemplate))

// Source labels for the report-date lines.
const (
	SourceWisdomTree = "WisdomTree As-Of"
	SourceCME        = "CME Bulletin Date"
)

// Input carries everything the full block can show.
// Scores, RatesCurve and EquityFlows are optional.
type Input struct {
	EffectiveDate time.Time
	Metrics       models.ExtractedMetrics
	Signals       models.SignalSet
	Events        models.EventContext
	Scores        models.ScoreResult
	RatesCurve    *models.CurveAggregate
	EquityFlows   *models.CurveAggregate
	MaxAgeDays    int // 0 uses common.DefaultMaxAgeDays
}

type signalRow struct {
	Asset         string
	Label         models.SignalLabel
	GateReason    string
	Futures       string
	Options       string
	Participation models.ParticipationLabel
	Direction     string
}

type flagRow struct {
	Flag   string
	Note   string
	Recent bool
}

type scoreRow struct {
	Dial       models.Dial
	Score      float64
	Provenance string
}

type tableRow struct {
	Name    string
	Volume  string
	Change  string
	Cluster string
}

type table struct {
	Title   string
	Summary string
	Header  string
	Rows    []tableRow
}

type blockData struct {
	EffectiveDate string
	Sources       []models.Freshness
	Signals       []signalRow
	Flags         []flagRow
	Missing       []string
	Scores        []scoreRow
	Tables        []table
}

// Build renders the minimum block: dates, per-asset signals, event flags and completeness.
func Build(effectiveDate time.Time, m models.ExtractedMetrics, sigs models.SignalSet, events models.EventContext) string {
	return BuildFull(Input{
		EffectiveDate: effectiveDate,
		Metrics:       m,
		Signals:       sigs,
		Events:        events,
	})
}

// BuildFull renders the block plus whichever optional sections the input carries.
func BuildFull(in Input) string {
	data := collect(in)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// The template is static, so this only happens on a programming error.
		return fmt.Sprintf("### Verification Block (Deterministic)\n\n_Rendering failed: %v_\n", err)
	}
	return buf.String()
}

// Freshness returns the report-date checks the block displays.
func Freshness(effectiveDate time.Time, m models.ExtractedMetrics, maxAgeDays int) []models.Freshness {
	if maxAgeDays <= 0 {
		maxAgeDays = common.DefaultMaxAgeDays
	}
	return []models.Freshness{
		common.CheckFreshness(SourceWisdomTree, m.Text(models.MetricWisdomTreeAsOfDate), effectiveDate, maxAgeDays),
		common.CheckFreshness(SourceCME, m.Text(models.MetricCMEBulletinDate), effectiveDate, maxAgeDays),
	}
}

// Completeness checks the required bulletin fields.
func Completeness(m models.ExtractedMetrics) models.Completeness {
	missing := m.Missing(models.RequiredCMEFields...)
	return models.Completeness{Complete: len(missing) == 0, Missing: missing}
}

func collect(in Input) blockData {
	data := blockData{
		EffectiveDate: in.EffectiveDate.Format("2006-01-02"),
		Sources:       Freshness(in.EffectiveDate, in.Metrics, in.MaxAgeDays),
		Missing:       Completeness(in.Metrics).Missing,
	}

	for _, s := range in.Signals.Ordered() {
		data.Signals = append(data.Signals, signalRow{
			Asset:         s.Asset.DisplayName(),
			Label:         s.SignalLabel,
			GateReason:    s.GateReason,
			Futures:       signals.FormatSignedInt(s.FuturesOIDelta),
			Options:       signals.FormatSignedInt(s.OptionsOIDelta),
			Participation: s.ParticipationLabel,
			Direction:     s.DirectionText(),
		})
	}

	recent := make(map[string]bool, len(in.Events.FlagsRecent))
	for _, f := range in.Events.FlagsRecent {
		recent[f] = true
	}
	today := make(map[string]bool, len(in.Events.FlagsToday))
	for _, f := range in.Events.FlagsToday {
		today[f] = true
	}
	for _, f := range in.Events.Active() {
		data.Flags = append(data.Flags, flagRow{
			Flag:   f,
			Note:   in.Events.Notes[f],
			Recent: recent[f] && !today[f],
		})
	}

	for _, dial := range models.DialOrder {
		s, ok := in.Scores[dial]
		if !ok {
			continue
		}
		data.Scores = append(data.Scores, scoreRow{Dial: dial, Score: s.Score, Provenance: s.Provenance})
	}

	if in.RatesCurve != nil {
		data.Tables = append(data.Tables, curveTable("Rates Curve (CME Sec. 09)", "Tenor", curve.RatesLayout, in.RatesCurve))
	}
	if in.EquityFlows != nil {
		data.Tables = append(data.Tables, curveTable("Equity Index Flows (CME Sec. 11)", "Product", curve.EquityLayout, in.EquityFlows))
	}

	return data
}

func curveTable(title, header string, layout curve.Layout, agg *models.CurveAggregate) table {
	t := table{
		Title:  title,
		Header: header,
		Summary: fmt.Sprintf("Regime: %s; Active: %s (%s); Concentration: %.0f%%",
			agg.Dominance.RegimeLabel, orNA(agg.Dominance.ActiveCluster),
			orNA(layout.Label(agg.Dominance.ActiveRow)), agg.Dominance.Concentration*100),
	}
	if !agg.Quality.IsComplete {
		t.Summary += "; " + curve.IncompleteNote(layout)
	}

	for _, name := range layout.Rows {
		r := agg.Rows[name]
		cluster := ""
		if def, ok := layout.ClusterOf(name); ok {
			cluster = def.Name
		}
		vol := "N/A"
		if r.TotalVolume != nil {
			vol = signals.FormatInt(*r.TotalVolume)
		}
		t.Rows = append(t.Rows, tableRow{
			Name:    layout.Label(name),
			Volume:  vol,
			Change:  signals.FormatSignedInt(r.OIChange),
			Cluster: cluster,
		})
	}
	return t
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// escapeCell keeps pipes inside a value from splitting a markdown table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
