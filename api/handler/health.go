package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagelens/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionCounter reports browser session usage. *capture.Capturer satisfies it.
type SessionCounter interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /api/health.
//
// Reports session utilisation and degrades status when every session slot is taken.
func Health(sc SessionCounter, metricsMode string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxSessions > 0 && stats.ActiveSessions >= stats.MaxSessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			MetricsMode:  metricsMode,
			Version:      Version,
		})
	}
}
