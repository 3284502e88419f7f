package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

// RequestID propagates an inbound X-Request-ID header, minting a fresh
// UUID when the caller did not supply one. The ID is echoed back on the
// response so extraction requests can be correlated with model-call logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger writes one access-log line per request. Extraction requests
// routinely run for tens of seconds under the wall-clock budget, so
// latency is logged in whole milliseconds rather than gin's default
// microsecond noise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		requestID, _ := c.Get(ContextKeyRequestID)
		line := log.Printf
		if c.Writer.Status() >= http.StatusInternalServerError {
			line = func(format string, v ...any) { log.Printf("ERROR "+format, v...) }
		}
		line("http: [%v] %s %s %d %dms",
			requestID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency.Milliseconds(),
		)
	}
}

// Recovery converts panics into a 500 response, logging the panic value
// with the request ID so a crashing extraction can be traced.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID, _ := c.Get(ContextKeyRequestID)
		log.Printf("ERROR http: [%v] panic recovered: %v", requestID, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"},
		})
	})
}
