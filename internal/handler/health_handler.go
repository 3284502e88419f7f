package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        *sqlx.DB // nil when history persistence is disabled
	model     string
	keyLoaded bool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, model string, keyLoaded bool) *HealthHandler {
	return &HealthHandler{db: db, model: model, keyLoaded: keyLoaded}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"model":       h.model,
		"api_key_set": h.keyLoaded,
	})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
