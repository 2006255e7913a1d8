package mcpserver

import (
	"fmt"
	"strings"

	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/signals"
)

// formatSignal formats one classification as markdown
func formatSignal(r models.SignalResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s Signal: %s\n\n", r.Asset.DisplayName(), r.SignalLabel))
	sb.WriteString(fmt.Sprintf("**Direction:** %s\n", r.DirectionText()))
	sb.WriteString(fmt.Sprintf("**Gate Reason:** %s\n", r.GateReason))
	sb.WriteString(fmt.Sprintf("**Participation:** %s\n", r.ParticipationLabel))
	sb.WriteString(fmt.Sprintf("**Futures OI Δ:** %s\n", signals.FormatSignedInt(r.FuturesOIDelta)))
	sb.WriteString(fmt.Sprintf("**Options OI Δ:** %s\n", signals.FormatSignedInt(r.OptionsOIDelta)))
	sb.WriteString(fmt.Sprintf("**Dominance Ratio:** %.2f\n", r.DominanceRatio))
	sb.WriteString(fmt.Sprintf("**Noise Threshold:** %s\n", signals.FormatInt(int64(r.NoiseThreshold))))
	return sb.String()
}

// formatScores formats the dials in scoreboard order
func formatScores(scores models.ScoreResult) string {
	var sb strings.Builder
	sb.WriteString("## Dial Scores\n\n")
	sb.WriteString("| Dial | Score | Provenance |\n|---|---|---|\n")
	for _, dial := range models.DialOrder {
		s, ok := scores[dial]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %.1f | %s |\n", dial, s.Score, s.Provenance))
	}
	return sb.String()
}

// formatEnforced returns the compliant narrative followed by a summary of changes
func formatEnforced(narrative string, report models.ComplianceReport) string {
	var sb strings.Builder
	sb.WriteString(narrative)
	sb.WriteString("\n\n---\n\n## Compliance Report\n\n")
	sb.WriteString(fmt.Sprintf("- **Actor replacements:** %d\n", report.ActorReplacements))
	sb.WriteString(fmt.Sprintf("- **Signal lines rewritten:** %d\n", report.SignalLinesRewritten))
	sb.WriteString(fmt.Sprintf("- **Redactions:** %d", report.Redactions))
	if len(report.RedactedSections) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(report.RedactedSections, ", ")))
	}
	sb.WriteString("\n")
	if len(report.FlaggedJustifications) > 0 {
		flagged := make([]string, len(report.FlaggedJustifications))
		for i, d := range report.FlaggedJustifications {
			flagged[i] = string(d)
		}
		sb.WriteString(fmt.Sprintf("- **Flagged justifications:** %s\n", strings.Join(flagged, ", ")))
	}
	return sb.String()
}

// formatRunList formats stored runs as a markdown table
func formatRunList(runs []*models.AuditRun) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Audit Runs (%d results)\n\n", len(runs)))
	if len(runs) == 0 {
		sb.WriteString("No runs found.\n")
		return sb.String()
	}

	sb.WriteString("| Run | Date | Provider | Redactions | Complete |\n|---|---|---|---|---|\n")
	for _, r := range runs {
		provider := r.Provider
		if provider == "" {
			provider = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %t |\n",
			r.ID, r.EffectiveDate, provider, r.Compliance.Redactions, r.Completeness.Complete))
	}
	return sb.String()
}
