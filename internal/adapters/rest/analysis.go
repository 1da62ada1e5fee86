package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
)

type startAnalysisRequest struct {
	Owner    string   `json:"owner"`
	TrackIDs []string `json:"trackIds"`
}

type activeJobResponse struct {
	errorResponse
	Job services.JobView `json:"job"`
}

// StartAnalysis handles POST /analysis. A new job answers 202 with its poll
// view; an owner with an unfinished job gets 409 and that job.
func (h *Handler) StartAnalysis(c *gin.Context) {
	if c.ContentType() != "application/json" {
		writeError(c, http.StatusUnsupportedMediaType, "Content-Type must be application/json", errCodeInvalidRequest)
		return
	}
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body", errCodeInvalidRequest)
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), req.Owner, req.TrackIDs)
	switch {
	case err == nil:
		c.Header("Location", "/analysis/"+job.ID)
		c.JSON(http.StatusAccepted, services.NewJobView(job))
	case errors.Is(err, domain.ErrActiveJobExists):
		c.JSON(http.StatusConflict, activeJobResponse{
			errorResponse: errorResponse{Error: err.Error(), Code: errCodeActiveJob},
			Job:           services.NewJobView(job),
		})
	case errors.Is(err, services.ErrOwnerRequired), errors.Is(err, domain.ErrNoTracks):
		writeError(c, http.StatusBadRequest, err.Error(), errCodeInvalidRequest)
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error(), errCodeNotFound)
	case errors.Is(err, domain.ErrQueueFull):
		writeError(c, http.StatusServiceUnavailable, err.Error(), errCodeQueueFull)
	default:
		h.logger.Error("start analysis failed", slog.String("owner", req.Owner), slog.Any("error", err))
		writeError(c, http.StatusInternalServerError, err.Error(), errCodeInternal)
	}
}

// GetJob handles GET /analysis/:id.
func (h *Handler) GetJob(c *gin.Context) {
	view, ok := h.lookupJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// StreamJob handles GET /analysis/:id/ws: the connection receives the
// current view followed by every update.
func (h *Handler) StreamJob(c *gin.Context) {
	view, ok := h.lookupJob(c)
	if !ok {
		return
	}
	if err := h.progress.Serve(c.Writer, c.Request, view.JobID); err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("job_id", view.JobID), slog.Any("error", err))
		return
	}
	h.progress.Publish(view)
}

func (h *Handler) lookupJob(c *gin.Context) (services.JobView, bool) {
	id := c.Param("id")
	view, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(c, http.StatusNotFound, "job not found", errCodeNotFound)
			return services.JobView{}, false
		}
		h.logger.Error("load job failed", slog.String("job_id", id), slog.Any("error", err))
		writeError(c, http.StatusInternalServerError, err.Error(), errCodeInternal)
		return services.JobView{}, false
	}
	return view, true
}
