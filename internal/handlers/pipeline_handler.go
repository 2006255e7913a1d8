package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/services/pipeline"
	"github.com/ternarybob/macrolens/internal/services/scheduler"
)

// PipelineRunner is the part of the pipeline service the handler drives
type PipelineRunner interface {
	Run(ctx context.Context, date time.Time) (*pipeline.Result, error)
	LastRun(ctx context.Context) (id, date string)
	LastError(ctx context.Context) string
}

// PipelineRunRequest optionally pins the effective date. Empty means today.
type PipelineRunRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type PipelineHandler struct {
	pipeline  PipelineRunner
	scheduler *scheduler.Service
	logger    arbor.ILogger
	now       func() time.Time
}

// NewPipelineHandler creates the pipeline handler. sched may be nil when scheduling is disabled.
func NewPipelineHandler(runner PipelineRunner, sched *scheduler.Service, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		pipeline:  runner,
		scheduler: sched,
		logger:    logger,
		now:       time.Now,
	}
}

// RunHandler handles POST /api/pipeline/run. The run is synchronous and
// survives the client disconnecting; the pipeline applies its own timeout.
func (h *PipelineHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req PipelineRunRequest
	if r.ContentLength != 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
	}

	date := h.now()
	if req.Date != "" {
		date, _ = time.Parse(dateLayout, req.Date)
	}

	h.logger.Info().Str("date", date.Format(dateLayout)).Msg("Pipeline run requested via API")

	result, err := h.pipeline.Run(context.WithoutCancel(r.Context()), date)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// StatusHandler handles GET /api/pipeline/status
func (h *PipelineHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id, date := h.pipeline.LastRun(r.Context())
	resp := map[string]interface{}{
		"last_run_id":   id,
		"last_run_date": date,
		"last_error":    h.pipeline.LastError(r.Context()),
	}
	if h.scheduler != nil {
		resp["scheduler"] = h.scheduler.Status()
	}
	WriteJSON(w, http.StatusOK, resp)
}
