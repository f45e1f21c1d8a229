// Package server exposes the workflow and notification flows over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/internal/notify"
	"github.com/Fumiaki0604/reqflow/internal/workflow"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// Server handles HTTP API requests.
type Server struct {
	pipeline *workflow.Pipeline
	notifier *notify.Notifier
	cfg      *config.Config
}

// New creates a Server.
func New(pipeline *workflow.Pipeline, notifier *notify.Notifier, cfg *config.Config) *Server {
	return &Server{
		pipeline: pipeline,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Router constructs a Gin engine with registered routes. Uncaught panics
// become a 500 with message and details for diagnostics.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprint(recovered),
		})
	}))

	r.POST("/workflow/execute", s.handleExecute)
	r.POST("/backlog-notify", s.handleNotify)
	r.GET("/health", s.handleHealth)
	return r
}

// shutdownTimeout bounds the drain of in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

// Run starts the HTTP server on the configured port and serves until the
// context is cancelled, then drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

type executeRequest struct {
	Query   string   `json:"query" binding:"required"`
	Owner   string   `json:"owner" binding:"required"`
	Repo    string   `json:"repo" binding:"required"`
	Sources []string `json:"sources"`
}

// handleExecute runs the search-and-synthesize pipeline.
// POST /workflow/execute
func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var kinds []models.SourceKind
	for _, s := range req.Sources {
		kind, ok := models.ParseSourceKind(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source", "details": s})
			return
		}
		kinds = append(kinds, kind)
	}

	result, err := s.pipeline.Execute(c.Request.Context(), workflow.Request{
		Query:   req.Query,
		Owner:   req.Owner,
		Repo:    req.Repo,
		Sources: kinds,
	})
	if err != nil {
		// Publish is the one stage without a degradation fallback.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "workflow failed",
			"details": err.Error(),
			"runId":   result.RunID,
			"steps":   result.Steps,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result.Publish,
		"runId":   result.RunID,
		"steps":   result.Steps,
	})
}

type notifyRequest struct {
	DaysThreshold      *int   `json:"daysThreshold"`
	ChannelID          string `json:"channelId"`
	SkipWeekendHoliday *bool  `json:"skipWeekendHoliday"`
	Variant            string `json:"variant"`
}

// handleNotify runs the urgent-item notification flow.
// POST /backlog-notify
func (s *Server) handleNotify(c *gin.Context) {
	// An empty body is allowed: every field has a default.
	var req notifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	params := notify.Params{
		DaysThreshold:      s.cfg.Notify.DaysThreshold,
		ChannelID:          s.cfg.Slack.DefaultChannelID,
		SkipWeekendHoliday: s.cfg.Notify.SkipWeekendHoliday,
		Variant:            notify.VariantUpcoming,
	}
	if req.DaysThreshold != nil {
		params.DaysThreshold = *req.DaysThreshold
	}
	if req.ChannelID != "" {
		params.ChannelID = req.ChannelID
	}
	if req.SkipWeekendHoliday != nil {
		params.SkipWeekendHoliday = *req.SkipWeekendHoliday
	}
	if req.Variant != "" {
		if req.Variant != notify.VariantUpcoming && req.Variant != notify.VariantOverdue {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown variant", "details": req.Variant})
			return
		}
		params.Variant = req.Variant
	}

	result := s.notifier.Run(c.Request.Context(), params)

	if result.Error != "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   result.Error,
			"runId":   result.RunID,
			"steps":   result.Steps,
		})
		return
	}

	resp := gin.H{
		"success": true,
		"message": result.Message,
		"runId":   result.RunID,
		"steps":   result.Steps,
	}
	if result.Skipped {
		resp["skipped"] = true
	}
	if result.MessageURL != "" {
		resp["messageUrl"] = result.MessageURL
	}
	c.JSON(http.StatusOK, resp)
}

// handleHealth provides a health check endpoint.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
