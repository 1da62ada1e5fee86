// Package rest exposes analysis jobs and results over HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
	"github.com/ewilliams-labs/cratedigger/internal/normalize"
)

// JobService creates and reports analysis jobs.
type JobService interface {
	Create(ctx context.Context, owner string, trackIDs []string) (domain.AnalysisJob, error)
	Get(ctx context.Context, jobID string) (services.JobView, error)
}

// ResultReader loads a track's stored analysis.
type ResultReader interface {
	GetResult(ctx context.Context, trackID string) (domain.NormalizedResult, error)
}

// LibraryReporter summarises library-wide energy.
type LibraryReporter interface {
	EnergyStats(ctx context.Context) (normalize.EnergyStats, error)
}

// ProgressStream upgrades a request into a push subscription for a job.
type ProgressStream interface {
	Serve(w http.ResponseWriter, r *http.Request, jobID string) error
	Publish(view services.JobView)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures optional parts of the HTTP surface.
type Options struct {
	AllowedOrigins []string
	Progress       ProgressStream // nil disables the websocket route
	Store          Pinger         // nil skips the database health probe
	Logger         *slog.Logger
}

// Handler manages the HTTP interface for the application.
type Handler struct {
	jobs     JobService
	results  ResultReader
	library  LibraryReporter
	progress ProgressStream
	store    Pinger
	logger   *slog.Logger
	router   *gin.Engine
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(jobs JobService, results ResultReader, library LibraryReporter, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		jobs:     jobs,
		results:  results,
		library:  library,
		progress: opts.Progress,
		store:    opts.Store,
		logger:   logger.With("component", "rest"),
		router:   gin.New(),
	}

	h.router.Use(gin.Recovery())
	h.router.Use(requestLogger(h.logger))
	h.router.Use(corsMiddleware(opts.AllowedOrigins))
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.GET("/health", h.HealthCheck)

	analysis := h.router.Group("/analysis")
	{
		analysis.POST("", h.StartAnalysis)
		analysis.GET("/:id", h.GetJob)
		if h.progress != nil {
			analysis.GET("/:id/ws", h.StreamJob)
		}
	}

	h.router.GET("/tracks/:id/analysis", h.GetTrackAnalysis)
	h.router.GET("/library/energy", h.EnergyStats)
}

// HealthCheck reports liveness and, when configured, database reachability.
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Unix()})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	return cors.New(config)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
