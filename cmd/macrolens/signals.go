package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/scoring"
	"github.com/ternarybob/macrolens/internal/signals"
)

var (
	classifyAsset     string
	classifyFutures   int64
	classifyOptions   int64
	classifyThreshold float64

	scoreMetrics string

	enforceNarrative string
	enforceMetrics   string
)

var classifyCmd = &cobra.Command{
	Use:     "classify",
	Short:   "Classify one asset's open-interest deltas",
	Example: `  macrolens classify --asset rates --futures 120000 --options 20000`,
	RunE:    runClassify,
}

var scoreCmd = &cobra.Command{
	Use:     "score",
	Short:   "Score the dials from an extracted metrics JSON object",
	Example: `  macrolens score --metrics metrics.json`,
	RunE:    runScore,
}

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run the compliance filter over a narrative",
	Long: `Prints the compliant narrative to stdout. Signals are classified from
--metrics when given, otherwise every asset is Unknown and directional
language in asset sections is redacted.`,
	Example: `  macrolens enforce --narrative narrative.md --metrics metrics.json`,
	RunE:    runEnforce,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyAsset, "asset", "a", "", "Asset class: equity, rates or fx")
	classifyCmd.Flags().Int64Var(&classifyFutures, "futures", 0, "Futures open interest change")
	classifyCmd.Flags().Int64Var(&classifyOptions, "options", 0, "Options open interest change")
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", 0, "Noise threshold override")
	classifyCmd.MarkFlagRequired("asset")

	scoreCmd.Flags().StringVarP(&scoreMetrics, "metrics", "m", "-", "Metrics JSON file (- for stdin)")

	enforceCmd.Flags().StringVarP(&enforceNarrative, "narrative", "n", "-", "Narrative markdown file (- for stdin)")
	enforceCmd.Flags().StringVarP(&enforceMetrics, "metrics", "m", "", "Metrics JSON file used to classify signals")
}

func runClassify(cmd *cobra.Command, args []string) error {
	asset := models.AssetClass(strings.ToLower(classifyAsset))
	switch asset {
	case models.AssetEquity, models.AssetRates, models.AssetFX:
	default:
		return fmt.Errorf("unknown asset %q (want equity, rates or fx)", classifyAsset)
	}

	// Unset flags are missing data, not zero
	var fut, opt *int64
	if cmd.Flags().Changed("futures") {
		fut = &classifyFutures
	}
	if cmd.Flags().Changed("options") {
		opt = &classifyOptions
	}

	var result models.SignalResult
	if classifyThreshold > 0 {
		result = signals.Classify(fut, opt, classifyThreshold)
		result.Asset = asset
	} else {
		auditService, err := newAuditService()
		if err != nil {
			return err
		}
		result = auditService.Classifier().ClassifyAsset(asset, fut, opt)
	}

	return printJSON(os.Stdout, result)
}

func runScore(cmd *cobra.Command, args []string) error {
	metrics, err := loadMetrics(scoreMetrics)
	if err != nil {
		return err
	}

	normalized, notes := audit.NormalizeMetrics(metrics)
	for _, note := range notes {
		logger.Warn().Str("note", note).Msg("Metrics normalized")
	}

	return printJSON(os.Stdout, scoring.ScoreAll(normalized))
}

func runEnforce(cmd *cobra.Command, args []string) error {
	narrative, err := readInput(enforceNarrative)
	if err != nil {
		return err
	}

	metrics := models.ExtractedMetrics{}
	if enforceMetrics != "" {
		if metrics, err = loadMetrics(enforceMetrics); err != nil {
			return err
		}
	}

	auditService, err := newAuditService()
	if err != nil {
		return err
	}

	normalized, _ := audit.NormalizeMetrics(metrics)
	sigs := auditService.Classifier().ClassifyMetrics(normalized)
	out, report := auditService.Filter().EnforceWithReport(string(narrative), sigs)

	logger.Info().
		Int("actor_replacements", report.ActorReplacements).
		Int("signal_lines_rewritten", report.SignalLinesRewritten).
		Int("redactions", report.Redactions).
		Strs("redacted_sections", report.RedactedSections).
		Msg("Narrative enforced")

	fmt.Fprint(os.Stdout, out)
	return nil
}

func loadMetrics(path string) (models.ExtractedMetrics, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	metrics, err := models.ParseExtractedMetrics(data)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics in %s: %w", displayPath(path), err)
	}
	return metrics, nil
}
