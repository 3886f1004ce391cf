package server

import (
	"net/http"

	"stocksave/internal/api"
	"stocksave/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// @Summary      Notification queue status
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /admin/queue-status [get]
func QueueStatus(notifyService *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		length := notifyService.QueueLength(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"queue_length": length})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
