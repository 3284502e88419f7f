package router

import (
	"github.com/gin-gonic/gin"

	"medbill/internal/config"
	"medbill/internal/handler"
	"medbill/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	extractH *handler.ExtractHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(&cfg.CORS))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	// Extraction contract routes, kept at the root path.
	r.POST("/extract-bill-data", extractH.ExtractBillData)
	r.GET("/last-response", extractH.LastResponse)

	// Extraction history - bearer-token protected when a secret is set.
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(&cfg.Auth))

	extractions := v1.Group("/extractions")
	extractions.GET("", extractH.List)
	extractions.GET("/:id", extractH.GetByID)
	extractions.GET("/:id/export", extractH.ExportXLSX)

	return r
}
