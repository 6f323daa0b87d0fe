package handlers

import (
	"context"
	"net/http"
	"time"

	"chatdesk/internal/dto"

	"github.com/gin-gonic/gin"
)

// PingFunc checks a backing store, nil means nothing to check
type PingFunc func(ctx context.Context) error

// HealthHandler liveness and metrics endpoints
type HealthHandler struct {
	service string
	storage string
	ping    PingFunc
	metrics http.Handler
}

// NewHealthHandler creates a HealthHandler; metrics may be nil
func NewHealthHandler(service, storage string, ping PingFunc, metrics http.Handler) *HealthHandler {
	return &HealthHandler{service: service, storage: storage, ping: ping, metrics: metrics}
}

// Health reports unhealthy when the store does not answer
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Storage: h.storage,
		Time:    time.Now().UTC(),
	}

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			resp.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, dto.Success(resp))
			return
		}
	}
	c.JSON(http.StatusOK, dto.Success(resp))
}

// RegisterRoutes mounts /health and /metrics on the root router
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}
