package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

// Version is the build version reported by the health endpoint
var Version = "dev"

const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency
type HealthProbe func(ctx context.Context) error

// SystemHandler handles health and liveness endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	probes    map[string]HealthProbe
}

// NewSystemHandler creates a new SystemHandler. Each probe is reported
// under its name by the health endpoint.
func NewSystemHandler(probes map[string]HealthProbe) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		probes:    probes,
	}
}

// Health godoc
// @ID           getSystemHealth
// @Summary      Health check
// @Description  Reports uptime and the state of the database and cache; 503 when any dependency is down
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Checks = make(map[string]HealthCheck, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		start := time.Now()
		err := h.probes[name](ctx)
		cancel()

		check := HealthCheck{Status: "up", Latency: time.Since(start).String()}
		if err != nil {
			check.Status = "down"
			check.Error = err.Error()
			resp.Status = "degraded"
		}
		resp.Checks[name] = check
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness probe that touches no dependency
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
