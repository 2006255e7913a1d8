package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/services/scheduler"
)

type APIHandler struct {
	logger    arbor.ILogger
	scheduler *scheduler.Service
}

// NewAPIHandler creates the health/version handler. sched may be nil.
func NewAPIHandler(logger arbor.ILogger, sched *scheduler.Service) *APIHandler {
	return &APIHandler{
		logger:    logger,
		scheduler: sched,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
	}
	if h.scheduler != nil {
		resp["scheduler"] = h.scheduler.Status()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"status": "error",
		"error":  "Not Found",
		"path":   r.URL.Path,
	})
}
