package handler

import (
	"net/http"

	"github.com/GoSwapGuard/swapguard/internal/analytics"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	svc     *service.GuardService
	monitor *analytics.HealthMonitor
}

func NewAnalyticsHandler(svc *service.GuardService, monitor *analytics.HealthMonitor) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, monitor: monitor}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Summary())
}

// BackendHealth combines the poller's responsiveness metrics with the
// latest probe snapshot.
func (h *AnalyticsHandler) BackendHealth(c *gin.Context) {
	resp := gin.H{
		"poller": h.svc.BackendHealth(),
	}
	if h.monitor != nil {
		resp["probe"] = h.monitor.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}
