package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/macrolens/internal/models"
)

func auditMetrics() map[string]interface{} {
	return map[string]interface{}{
		"wisdomtree_as_of_date":        "2025-06-19",
		"cme_bulletin_date":            "2025-06-19",
		"hy_spread_current":            4.0,
		"cme_rates_futures_oi_change":  "120,000",
		"cme_rates_options_oi_change":  20000,
		"cme_equity_futures_oi_change": 30000,
		"cme_equity_options_oi_change": "80,000",
	}
}

func TestClassifyHandler(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	tests := []struct {
		name  string
		body  map[string]interface{}
		label models.SignalLabel
	}{
		{
			name:  "futures dominate",
			body:  map[string]interface{}{"asset": "rates", "futures_oi_delta": 120000, "options_oi_delta": 20000},
			label: models.SignalDirectional,
		},
		{
			name:  "options dominate",
			body:  map[string]interface{}{"asset": "equity", "futures_oi_delta": 30000, "options_oi_delta": -80000},
			label: models.SignalHedgingVol,
		},
		{
			name:  "missing delta",
			body:  map[string]interface{}{"asset": "fx", "futures_oi_delta": 30000},
			label: models.SignalUnknown,
		},
		{
			name:  "threshold override",
			body:  map[string]interface{}{"asset": "rates", "futures_oi_delta": 120000, "options_oi_delta": 20000, "noise_threshold": 500000},
			label: models.SignalLowNoise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.ClassifyHandler, http.MethodPost, "/api/classify", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var result models.SignalResult
			decodeBody(t, rec, &result)
			assert.Equal(t, tt.label, result.SignalLabel)
			assert.Equal(t, models.AssetClass(tt.body["asset"].(string)), result.Asset)
			assert.Equal(t, result.SignalLabel == models.SignalDirectional, result.DirectionAllowed)
		})
	}
}

func TestClassifyHandler_Rejects(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.ClassifyHandler, http.MethodGet, "/api/classify", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, h.ClassifyHandler, http.MethodPost, "/api/classify", `{"asset":"metals"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "asset must be one of")
}

func TestScoresHandler(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.ScoresHandler, http.MethodPost, "/api/scores", map[string]interface{}{"metrics": auditMetrics()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var scores models.ScoreResult
	decodeBody(t, rec, &scores)
	assert.Len(t, scores, len(models.DialOrder))
	assert.Equal(t, 3.6, scores[models.DialCredit].Score)

	rec = doJSON(t, h.ScoresHandler, http.MethodPost, "/api/scores", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "metrics is required")
}

func TestEnforceHandler(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.EnforceHandler, http.MethodPost, "/api/enforce", map[string]interface{}{
		"narrative": "[SECTION:EQUITIES]\nEquities Signal: Directional\nIndices soared.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EnforceResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Narrative, "Equities Signal: Unknown")
	assert.Contains(t, resp.Narrative, "Indices [redacted].")
	assert.Equal(t, models.SignalUnknown, resp.Signals[models.AssetEquity].SignalLabel)
	assert.Equal(t, 1, resp.Compliance.Redactions)

	rec = doJSON(t, h.EnforceHandler, http.MethodPost, "/api/enforce", `{"narrative":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnforceHandler_SuppliedSignals(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.EnforceHandler, http.MethodPost, "/api/enforce", map[string]interface{}{
		"narrative": "[SECTION:RATES]\nRates Signal: made up\nA bond rally.",
		"signals": models.SignalSet{
			models.AssetRates: {Asset: models.AssetRates, SignalLabel: models.SignalDirectional, DirectionAllowed: true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EnforceResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Narrative, "Rates Signal: Directional")
	assert.Contains(t, resp.Narrative, "A bond rally.")
	assert.Equal(t, 0, resp.Compliance.Redactions)
}

func TestVerificationHandler(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.VerificationHandler, http.MethodPost, "/api/verification", map[string]interface{}{
		"effective_date": "2025-06-20",
		"metrics":        auditMetrics(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp["verification"], "Effective Date:** 2025-06-20")
	assert.Contains(t, resp["verification"], models.FlagTripleWitching)

	rec = doJSON(t, h.VerificationHandler, http.MethodPost, "/api/verification", `{"effective_date":"20/06/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "effective_date must be a date")
}

func TestAuditHandler(t *testing.T) {
	env := newTestEnv(t)
	h := NewAuditHandler(env.audit, testLogger)

	rec := doJSON(t, h.AuditHandler, http.MethodPost, "/api/audit", map[string]interface{}{
		"effective_date": "2025-06-20",
		"metrics":        auditMetrics(),
		"narrative":      "[SECTION:EQUITIES]\nEquities Signal: Directional\nA broad rally.",
		"provider":       "claude",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run models.AuditRun
	decodeBody(t, rec, &run)
	assert.Equal(t, "2025-06-20", run.EffectiveDate)
	assert.Equal(t, "claude", run.Provider)
	assert.Contains(t, run.Narrative, "Equities Signal: Hedging-Vol")
	assert.Contains(t, run.Narrative, "A broad [redacted].")

	saved, err := env.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Narrative, saved.Narrative)
}

func TestAuditRequest_ToRequest(t *testing.T) {
	req := AuditRequest{EffectiveDate: "2025-06-20", Narrative: "text", Provider: "gemini"}

	areq, err := req.ToRequest()
	require.NoError(t, err)
	assert.Equal(t, "2025-06-20", areq.EffectiveDate.Format("2006-01-02"))
	assert.Equal(t, "text", areq.Narrative)
	assert.Equal(t, "gemini", areq.Provider)

	_, err = AuditRequest{EffectiveDate: "June 20"}.ToRequest()
	assert.Error(t, err)
}

func TestAuditHandler_Drafts(t *testing.T) {
	h := NewAuditHandler(newTestEnv(t).audit, testLogger)

	rec := doJSON(t, h.AuditHandler, http.MethodPost, "/api/audit", map[string]interface{}{
		"effective_date": "2025-06-20",
		"metrics":        auditMetrics(),
		"provider":       "all",
		"drafts": []map[string]interface{}{
			{"provider": "claude", "narrative": "[SECTION:EQUITIES]\nA broad rally."},
			{"provider": "gemini", "model": "gemini-2.5-pro", "narrative": "[SECTION:EQUITIES]\nStocks soared."},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run models.AuditRun
	decodeBody(t, rec, &run)
	assert.Equal(t, models.RunModeAB, run.Mode)
	require.Len(t, run.Narratives, 2)
	assert.Contains(t, run.Narratives[0].Narrative, "A broad [redacted].")
	assert.Contains(t, run.Narratives[1].Narrative, "Stocks [redacted].")
	assert.Equal(t, run.Narratives[0].Narrative, run.Narrative)

	rec = doJSON(t, h.AuditHandler, http.MethodPost, "/api/audit", map[string]interface{}{
		"effective_date": "2025-06-20",
		"drafts":         []map[string]interface{}{{"narrative": "no provider"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.AuditHandler, http.MethodPost, "/api/audit", map[string]interface{}{
		"effective_date": "2025-06-20",
		"mode":           "shadow",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
