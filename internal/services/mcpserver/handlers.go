package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/scoring"
	"github.com/ternarybob/macrolens/internal/signals"
)

// handleClassifySignal implements the classify_signal tool
func (t *Tools) handleClassifySignal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	asset, err := request.RequireString("asset")
	if err != nil {
		return mcp.NewToolResultError("Error: asset parameter is required"), nil
	}
	assetClass := models.AssetClass(strings.ToLower(strings.TrimSpace(asset)))
	switch assetClass {
	case models.AssetEquity, models.AssetRates, models.AssetFX:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Error: unknown asset %q (want equity, rates or fx)", asset)), nil
	}

	args := request.GetArguments()
	fut := optionalInt(args, "futures_oi_delta")
	opt := optionalInt(args, "options_oi_delta")

	var result models.SignalResult
	if threshold := request.GetFloat("noise_threshold", 0); threshold > 0 {
		result = signals.Classify(fut, opt, threshold)
		result.Asset = assetClass
	} else {
		result = t.audit.Classifier().ClassifyAsset(assetClass, fut, opt)
	}

	return mcp.NewToolResultText(formatSignal(result)), nil
}

// handleScoreDials implements the score_dials tool
func (t *Tools) handleScoreDials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metrics, err := metricsArg(request.GetArguments(), true)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	normalized, _ := audit.NormalizeMetrics(metrics)
	return mcp.NewToolResultText(formatScores(scoring.ScoreAll(normalized))), nil
}

// handleEnforceNarrative implements the enforce_narrative tool
func (t *Tools) handleEnforceNarrative(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	narrative, err := request.RequireString("narrative")
	if err != nil || strings.TrimSpace(narrative) == "" {
		return mcp.NewToolResultError("Error: narrative parameter is required"), nil
	}

	metrics, err := metricsArg(request.GetArguments(), false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	normalized, _ := audit.NormalizeMetrics(metrics)
	sigs := t.audit.Classifier().ClassifyMetrics(normalized)
	out, report := t.audit.Filter().EnforceWithReport(narrative, sigs)

	t.logger.Debug().Int("redactions", report.Redactions).Msg("MCP narrative enforced")
	return mcp.NewToolResultText(formatEnforced(out, report)), nil
}

// handleVerificationBlock implements the verification_block tool
func (t *Tools) handleVerificationBlock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateStr, err := request.RequireString("effective_date")
	if err != nil {
		return mcp.NewToolResultError("Error: effective_date parameter is required"), nil
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: effective_date must be YYYY-MM-DD, got %q", dateStr)), nil
	}

	metrics, err := metricsArg(request.GetArguments(), false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	block, err := t.audit.Verification(ctx, audit.Request{EffectiveDate: date, Metrics: metrics})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(block), nil
}

// handleGetRun implements the get_run tool
func (t *Tools) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("run_id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Error: run_id parameter is required"), nil
	}

	run, err := t.runs.Get(ctx, id)
	if errors.Is(err, interfaces.ErrRunNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Run not found: %s", id)), nil
	}
	if err != nil {
		t.logger.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	return mcp.NewToolResultText(t.renderer.Markdown(run)), nil
}

// handleListRuns implements the list_runs tool
func (t *Tools) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := t.runs.List(ctx, limit)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to list runs")
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRunList(runs)), nil
}

// metricsArg accepts metrics as a JSON object or a JSON-encoded string
func metricsArg(args map[string]any, required bool) (models.ExtractedMetrics, error) {
	raw, ok := args["metrics"]
	if !ok || raw == nil {
		if required {
			return nil, errors.New("metrics parameter is required")
		}
		return models.ExtractedMetrics{}, nil
	}

	switch v := raw.(type) {
	case map[string]any:
		return models.ExtractedMetrics(v), nil
	case string:
		m, err := models.ParseExtractedMetrics([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("metrics is not a JSON object: %w", err)
		}
		return m, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("metrics is not a JSON object: %w", err)
		}
		return models.ParseExtractedMetrics(data)
	}
}

// optionalInt reads an integral number argument. Absent, null and
// non-finite values are nil, which the classifier treats as missing data.
func optionalInt(args map[string]any, key string) *int64 {
	switch v := args[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n := int64(math.Round(v))
		return &n
	case int:
		n := int64(v)
		return &n
	case int64:
		return &v
	default:
		return nil
	}
}
