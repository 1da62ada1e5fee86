package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/normalize"
)

type trackAnalysisResponse struct {
	domain.NormalizedResult
	EnergyLevel string `json:"energyLevel"`
}

// GetTrackAnalysis handles GET /tracks/:id/analysis.
func (h *Handler) GetTrackAnalysis(c *gin.Context) {
	trackID := c.Param("id")
	result, err := h.results.GetResult(c.Request.Context(), trackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(c, http.StatusNotFound, "track has not been analyzed", errCodeNotFound)
			return
		}
		h.logger.Error("load result failed", slog.String("track_id", trackID), slog.Any("error", err))
		writeError(c, http.StatusInternalServerError, err.Error(), errCodeInternal)
		return
	}
	c.JSON(http.StatusOK, trackAnalysisResponse{
		NormalizedResult: result,
		EnergyLevel:      normalize.Classify(float64(result.Energy) / 10),
	})
}

// EnergyStats handles GET /library/energy.
func (h *Handler) EnergyStats(c *gin.Context) {
	stats, err := h.library.EnergyStats(c.Request.Context())
	if err != nil {
		h.logger.Error("energy stats failed", slog.Any("error", err))
		writeError(c, http.StatusInternalServerError, err.Error(), errCodeInternal)
		return
	}
	c.JSON(http.StatusOK, stats)
}
