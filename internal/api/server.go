// Package api exposes the diagnostic pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/medipatient-api-server/internal/domain"
	"github.com/medipatient-api-server/internal/history"
	"github.com/medipatient-api-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	orchestrator  *service.Orchestrator
	store         history.Store // nil disables history endpoints
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, orchestrator *service.Orchestrator, store history.Store) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(rateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	server := &Server{
		configManager: configManager,
		logger:        logger,
		orchestrator:  orchestrator,
		store:         store,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetConfig().Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/diagnose", s.handleDiagnose)
		v1.GET("/diagnoses", s.handleListDiagnoses)
		v1.GET("/diagnoses/export", s.handleExportDiagnoses)
		v1.GET("/diagnoses/:id", s.handleGetDiagnosis)
		v1.DELETE("/diagnoses/:id", s.handleDeleteDiagnosis)
	}
}

// handleHealth reports component readiness.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	if !s.orchestrator.ModelLoaded() {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"model_loaded":       s.orchestrator.ModelLoaded(),
		"reviewer_available": s.orchestrator.ReviewerAvailable(),
		"history_enabled":    s.store != nil,
		"timestamp":          time.Now().UTC(),
	})
}

// handleDiagnose runs the diagnostic pipeline for a patient record.
func (s *Server) handleDiagnose(c *gin.Context) {
	var record domain.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"code":   domain.ErrCodeValidation,
			"error":  "invalid request body: " + err.Error(),
		})
		return
	}

	record.Normalize()

	final, err := s.orchestrator.Diagnose(c.Request.Context(), &record)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "validation_error",
				"code":   domain.ErrCodeValidation,
				"errors": verr.Violations,
			})
			return
		}
		// The pipeline degrades internally; anything else is unexpected.
		s.logger.WithError(err).Error("Diagnosis pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"code":   domain.ErrCodeInternal,
			"error":  "diagnosis failed",
		})
		return
	}

	recordID := s.persist(c.Request.Context(), &record, final)

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"record_id": recordID,
		"diagnosis": final,
	})
}

// persist saves the completed diagnosis when a store is configured. A
// storage failure is logged, never surfaced: the diagnosis already
// succeeded.
func (s *Server) persist(ctx context.Context, record *domain.PatientRecord, final *domain.FinalDiagnosis) string {
	if s.store == nil {
		return ""
	}

	entry := &history.Record{
		ID:        uuid.New().String(),
		Patient:   record,
		Diagnosis: final,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("Failed to persist diagnosis record")
		return ""
	}
	return entry.ID
}

// handleListDiagnoses returns past diagnoses, newest first.
func (s *Server) handleListDiagnoses(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "history store not configured"})
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list diagnosis records")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "code": domain.ErrCodeDatabase, "error": "listing failed"})
		return
	}

	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to count diagnosis records")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "code": domain.ErrCodeDatabase, "error": "listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"records": records,
	})
}

// handleGetDiagnosis returns one past diagnosis by ID.
func (s *Server) handleGetDiagnosis(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "history store not configured"})
		return
	}

	record, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get diagnosis record")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "code": domain.ErrCodeDatabase, "error": "lookup failed"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "record": record})
}

// handleExportDiagnoses streams the full history as a JSON document.
func (s *Server) handleExportDiagnoses(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "history store not configured"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="diagnoses.json"`)
	if err := s.store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Failed to export diagnosis records")
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// handleDeleteDiagnosis removes one past diagnosis by ID.
func (s *Server) handleDeleteDiagnosis(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "history store not configured"})
		return
	}

	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.logger.WithError(err).Error("Failed to delete diagnosis record")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "code": domain.ErrCodeDatabase, "error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// rateLimitMiddleware enforces a per-client token bucket keyed by
// client IP.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = int(rps) * 2
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, ok := limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = limiter
		}
		return limiter
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"code":   domain.ErrCodeRateLimit,
				"error":  "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
