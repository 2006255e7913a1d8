package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/events"
	"github.com/ternarybob/macrolens/internal/services/report"
	"github.com/ternarybob/macrolens/internal/storage/badger"
)

func newTestTools(t *testing.T) *Tools {
	t.Helper()
	logger := arbor.NewLogger()

	mgr, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	auditSvc, err := audit.NewService(common.NewDefaultConfig().Policy, events.NewCalendar(), mgr.AuditRunStorage(), nil, logger)
	require.NoError(t, err)

	renderer := report.NewRenderer(common.ReportConfig{OutputDir: t.TempDir()}, logger)
	return NewTools(auditSvc, mgr.AuditRunStorage(), renderer, logger)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestClassifySignal(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		isError bool
	}{
		{
			name: "directional",
			args: map[string]any{"asset": "rates", "futures_oi_delta": 120000.0, "options_oi_delta": 20000.0},
			want: "## Rates Signal: Directional",
		},
		{
			name: "missing options",
			args: map[string]any{"asset": "FX", "futures_oi_delta": 40000.0},
			want: "## FX Signal: Unknown",
		},
		{
			name: "threshold override",
			args: map[string]any{"asset": "rates", "futures_oi_delta": 120000.0, "options_oi_delta": 20000.0, "noise_threshold": 500000.0},
			want: "## Rates Signal: Low Signal/Noise",
		},
		{name: "unknown asset", args: map[string]any{"asset": "gold"}, want: "unknown asset", isError: true},
		{name: "missing asset", args: map[string]any{}, want: "asset parameter is required", isError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tools.handleClassifySignal(ctx, call(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestScoreDials(t *testing.T) {
	tools := newTestTools(t)

	res, err := tools.handleScoreDials(context.Background(), call(map[string]any{
		"metrics": map[string]any{"hy_spread_current": 4.0},
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "| Credit Stress | 3.6 |")
	assert.Contains(t, text, "| Growth Impulse |")

	// JSON-encoded strings are accepted too
	res, err = tools.handleScoreDials(context.Background(), call(map[string]any{
		"metrics": `{"hy_spread_current": 4.0}`,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "| Credit Stress | 3.6 |")

	res, err = tools.handleScoreDials(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEnforceNarrative(t *testing.T) {
	tools := newTestTools(t)

	res, err := tools.handleEnforceNarrative(context.Background(), call(map[string]any{
		"narrative": "[SECTION:EQUITIES]\nEquities Signal: Directional\nIndices soared.",
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Equities Signal: Unknown")
	assert.Contains(t, text, "Indices [redacted].")
	assert.Contains(t, text, "- **Redactions:** 1 (EQUITIES)")
}

func TestVerificationBlock(t *testing.T) {
	tools := newTestTools(t)

	res, err := tools.handleVerificationBlock(context.Background(), call(map[string]any{
		"effective_date": "2025-06-20",
		"metrics":        map[string]any{"cme_bulletin_date": "2025-06-19"},
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Verification Block (Deterministic)")
	assert.Contains(t, text, models.FlagTripleWitching)

	res, err = tools.handleVerificationBlock(context.Background(), call(map[string]any{"effective_date": "tomorrow"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRunTools(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	run, err := tools.audit.Run(ctx, audit.Request{
		EffectiveDate: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		Narrative:     "## Summary\n\nQuiet session.",
	})
	require.NoError(t, err)

	res, err := tools.handleListRuns(ctx, call(map[string]any{"limit": 5.0}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), run.ID)

	res, err = tools.handleGetRun(ctx, call(map[string]any{"run_id": run.ID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Quiet session.")

	res, err = tools.handleGetRun(ctx, call(map[string]any{"run_id": "run_missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
