package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"schedpoll/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "schedpoll",
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	if err := h.container.Repository.Health(ctx); err != nil {
		logger.WithError(err).Warn("Poll store health check failed")
		response.Checks["store"] = "down"
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	} else {
		response.Checks["store"] = "up"
	}

	if err := h.container.Tokens.Health(ctx); err != nil {
		logger.WithError(err).Warn("Token store health check failed")
		response.Checks["tokens"] = "down"
		if status == http.StatusOK {
			response.Status = "degraded"
		}
	} else {
		response.Checks["tokens"] = "up"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode health check response")
	}
}
