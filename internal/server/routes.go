// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/config"
	"github.com/fleveque/tongue-service/internal/handler"
	"github.com/fleveque/tongue-service/internal/middleware"
)

// Deps holds what the routes need. Dependencies are passed explicitly;
// each handler gets only its own slice of them.
type Deps struct {
	Analyses handler.Analyzer
	Reader   handler.AnalysisReader
	Checks   map[string]handler.Check
	// Gatherer backs /metrics; the endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Checks)
	analyzeHandler := handler.NewAnalyzeHandler(deps.Analyses, logger)
	adminHandler := handler.NewAdminHandler(deps.Reader, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/analyze-tongue", analyzeHandler.Analyze)
		// Preflight requests are answered by the CORS middleware.
		authed.OPTIONS("/analyze-tongue", func(*gin.Context) {})
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/analyses", adminHandler.List)
		admin.GET("/analyses/:id", adminHandler.Get)
		admin.GET("/analyses/:id/photo", adminHandler.Photo)
	}
}
