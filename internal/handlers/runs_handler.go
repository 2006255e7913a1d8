package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/report"
)

const runsPrefix = "/api/runs/"

// RunsHandler serves stored audit runs and their rendered reports
type RunsHandler struct {
	storage  interfaces.AuditRunStorage
	renderer *report.Renderer
	logger   arbor.ILogger
}

func NewRunsHandler(storage interfaces.AuditRunStorage, renderer *report.Renderer, logger arbor.ILogger) *RunsHandler {
	return &RunsHandler{
		storage:  storage,
		renderer: renderer,
		logger:   logger,
	}
}

// RunIDFromPath extracts {id} from /api/runs/{id} and /api/runs/{id}/<suffix>
func RunIDFromPath(path string) string {
	rest := strings.TrimPrefix(path, runsPrefix)
	if rest == path {
		return ""
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ListHandler handles GET /api/runs. ?date=YYYY-MM-DD returns the latest run for that date.
func (h *RunsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		run, err := h.storage.LatestForDate(r.Context(), date)
		if err != nil {
			h.writeLookupError(w, err, date)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"runs":  []*models.AuditRun{run},
			"count": 1,
		})
		return
	}

	runs, err := h.storage.List(r.Context(), GetLimitParam(r, 20, 200))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetHandler handles GET /api/runs/{id}
func (h *RunsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// DeleteHandler handles DELETE /api/runs/{id}
func (h *RunsHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := RunIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	if err := h.storage.Delete(r.Context(), id); err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	h.logger.Info().Str("run_id", id).Msg("Audit run deleted")
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}

// ReportHTMLHandler handles GET /api/runs/{id}/report.html
func (h *RunsHandler) ReportHTMLHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}

	body, err := h.renderer.RenderHTML(run)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to render HTML report")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ReportPDFHandler handles GET /api/runs/{id}/report.pdf
func (h *RunsHandler) ReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}

	body, err := h.renderer.RenderPDF(run)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to render PDF report")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "macro_"+run.EffectiveDate+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ReportMarkdownHandler handles GET /api/runs/{id}/report.md
func (h *RunsHandler) ReportMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.renderer.Markdown(run)))
}

func (h *RunsHandler) load(w http.ResponseWriter, r *http.Request) (*models.AuditRun, bool) {
	if !RequireMethod(w, r, http.MethodGet) {
		return nil, false
	}

	id := RunIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return nil, false
	}

	run, err := h.storage.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err, id)
		return nil, false
	}
	return run, true
}

func (h *RunsHandler) writeLookupError(w http.ResponseWriter, err error, key string) {
	if errors.Is(err, interfaces.ErrRunNotFound) {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Run not found: %s", key))
		return
	}
	h.logger.Error().Err(err).Str("key", key).Msg("Failed to load run")
	WriteError(w, http.StatusInternalServerError, "Failed to load run")
}
