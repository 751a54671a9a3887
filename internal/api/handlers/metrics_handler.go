package handlers

import (
	"net/http"

	"example.com/backstage/services/taxonomy/internal/metrics"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
)

// MetricsHandler handles metrics and health HTTP requests
type MetricsHandler struct {
	metrics *metrics.Metrics
	store   repositories.Store
	tracer  tracing.Tracer
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(m *metrics.Metrics, store repositories.Store, tracer tracing.Tracer) *MetricsHandler {
	return &MetricsHandler{
		metrics: m,
		store:   store,
		tracer:  tracer,
	}
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.HandleGetMetrics)
	router.GET("/health", h.HandleGetHealthCheck)
	router.GET("/ready", h.HandleGetReadiness)
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-metrics")
	defer h.tracer.EndTransaction(txn)

	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// HandleGetHealthCheck returns a simplified health status
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	healthChecks := h.metrics.GetHealthChecks()

	healthy := true
	for _, status := range healthChecks {
		if !status {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"details": healthChecks,
	})
}

// HandleGetReadiness verifies the database connection is usable
func (h *MetricsHandler) HandleGetReadiness(c *gin.Context) {
	if err := h.store.Ping(c); err != nil {
		h.metrics.SetHealth("database", false)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	h.metrics.SetHealth("database", true)
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
