package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "playforge-api"
	serviceVersion = "0.1.0"
)

// Pinger is a backing store that can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter describes its own connection state
type StatusReporter interface {
	Status() string
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	redis          Pinger
	events         StatusReporter
	generatorReady bool
	model          string
}

// NewHealthHandler creates a new health handler. redis and events may be nil.
func NewHealthHandler(redis Pinger, events StatusReporter, generatorReady bool, model string) *HealthHandler {
	return &HealthHandler{
		redis:          redis,
		events:         events,
		generatorReady: generatorReady,
		model:          model,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// Health returns basic health status
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// DeepHealth returns health status with dependency checks. An unreachable
// configured dependency degrades the status; an unconfigured one does not.
// @Summary Dependency health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health/deep [get]
func (h *HealthHandler) DeepHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string)
	allHealthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			deps["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			deps["redis"] = "healthy"
		}
	} else {
		deps["redis"] = "not configured"
	}

	if h.events != nil {
		status := h.events.Status()
		deps["nats"] = status
		if status != "healthy" && status != "not configured" {
			allHealthy = false
		}
	} else {
		deps["nats"] = "not configured"
	}

	// the local generator always works, so a missing key is informational
	if h.generatorReady {
		deps["generator"] = "external: " + h.model
	} else {
		deps["generator"] = "local only (no API key configured)"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:       status,
		Service:      serviceName,
		Version:      serviceVersion,
		Dependencies: deps,
	})
}
