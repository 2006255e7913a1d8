package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/scoring"
	"github.com/ternarybob/macrolens/internal/signals"
)

const dateLayout = "2006-01-02"

// ClassifyRequest classifies one asset's OI deltas.
// NoiseThreshold overrides the configured threshold for the asset.
type ClassifyRequest struct {
	Asset          string   `json:"asset" validate:"required,oneof=equity rates fx"`
	FuturesOIDelta *int64   `json:"futures_oi_delta"`
	OptionsOIDelta *int64   `json:"options_oi_delta"`
	NoiseThreshold *float64 `json:"noise_threshold,omitempty" validate:"omitempty,gt=0"`
}

type ScoresRequest struct {
	Metrics models.ExtractedMetrics `json:"metrics" validate:"required"`
}

// EnforceRequest runs the compliance filter. When Signals is empty they are
// classified from Metrics.
type EnforceRequest struct {
	Narrative string                  `json:"narrative" validate:"required"`
	Metrics   models.ExtractedMetrics `json:"metrics"`
	Signals   models.SignalSet        `json:"signals,omitempty"`
}

type EnforceResponse struct {
	Narrative  string                  `json:"narrative"`
	Signals    models.SignalSet        `json:"signals"`
	Compliance models.ComplianceReport `json:"compliance"`
}

// AuditRequest is the HTTP shape of audit.Request, with the date as YYYY-MM-DD.
type AuditRequest struct {
	EffectiveDate string                  `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Metrics       models.ExtractedMetrics `json:"metrics"`
	Section09     *models.Section09       `json:"section09,omitempty"`
	Section11     *models.Section11       `json:"section11,omitempty"`
	Narrative     string                  `json:"narrative"`
	Events        *models.EventContext    `json:"events,omitempty"`
	PriceBars     []models.PriceBar       `json:"price_bars,omitempty"`
	Provider      string                  `json:"provider,omitempty" validate:"max=64"`
	Drafts        []models.Draft          `json:"drafts,omitempty" validate:"max=16,dive"`
	Mode          string                  `json:"mode,omitempty" validate:"omitempty,oneof=ab benchmark"`
}

// ToRequest converts the request, parsing the effective date
func (r AuditRequest) ToRequest() (audit.Request, error) {
	date, err := time.Parse(dateLayout, r.EffectiveDate)
	if err != nil {
		return audit.Request{}, fmt.Errorf("effective_date must be a date in %s format", dateLayout)
	}
	return audit.Request{
		EffectiveDate: date,
		Metrics:       r.Metrics,
		Section09:     r.Section09,
		Section11:     r.Section11,
		Narrative:     r.Narrative,
		Events:        r.Events,
		PriceBars:     r.PriceBars,
		Provider:      r.Provider,
		Drafts:        r.Drafts,
		Mode:          r.Mode,
	}, nil
}

// AuditHandler exposes the audit layer over HTTP
type AuditHandler struct {
	audit  *audit.Service
	logger arbor.ILogger
}

func NewAuditHandler(auditService *audit.Service, logger arbor.ILogger) *AuditHandler {
	return &AuditHandler{
		audit:  auditService,
		logger: logger,
	}
}

// ClassifyHandler handles POST /api/classify
func (h *AuditHandler) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ClassifyRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	asset := models.AssetClass(req.Asset)
	var result models.SignalResult
	if req.NoiseThreshold != nil {
		result = signals.Classify(req.FuturesOIDelta, req.OptionsOIDelta, *req.NoiseThreshold)
		result.Asset = asset
	} else {
		result = h.audit.Classifier().ClassifyAsset(asset, req.FuturesOIDelta, req.OptionsOIDelta)
	}

	WriteJSON(w, http.StatusOK, result)
}

// ScoresHandler handles POST /api/scores
func (h *AuditHandler) ScoresHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ScoresRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	metrics, _ := audit.NormalizeMetrics(req.Metrics)
	WriteJSON(w, http.StatusOK, scoring.ScoreAll(metrics))
}

// EnforceHandler handles POST /api/enforce
func (h *AuditHandler) EnforceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req EnforceRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	sigs := req.Signals
	if len(sigs) == 0 {
		metrics, _ := audit.NormalizeMetrics(req.Metrics)
		sigs = h.audit.Classifier().ClassifyMetrics(metrics)
	}

	out, report := h.audit.Filter().EnforceWithReport(req.Narrative, sigs)
	WriteJSON(w, http.StatusOK, EnforceResponse{
		Narrative:  out,
		Signals:    sigs,
		Compliance: report,
	})
}

// VerificationHandler handles POST /api/verification
func (h *AuditHandler) VerificationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AuditRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	areq, err := req.ToRequest()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	block, err := h.audit.Verification(r.Context(), areq)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"effective_date": req.EffectiveDate,
		"verification":   block,
	})
}

// AuditHandler handles POST /api/audit. The run is stored when storage is configured.
func (h *AuditHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AuditRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	areq, err := req.ToRequest()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.audit.Run(r.Context(), areq)
	if err != nil {
		h.logger.Error().Err(err).Str("effective_date", req.EffectiveDate).Msg("Audit run failed")
		if run == nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, run)
}
