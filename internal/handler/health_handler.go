package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"hearth/internal/container"
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
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	logger.Debug("Health check requested")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "hearth",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode health check response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// Ready handles GET /health/ready and verifies backing services
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()
	checks := map[string]string{}
	status := http.StatusOK

	if err := h.container.DB.Health(r.Context()); err != nil {
		logger.WithError(err).Error("Database readiness check failed")
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.container.HasRedis() {
		if err := h.container.RedisClient.Health(r.Context()); err != nil {
			logger.WithError(err).Warn("Redis readiness check failed")
			checks["redis"] = "unavailable"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	respondJSON(w, status, map[string]interface{}{
		"status": map[int]string{
			http.StatusOK:                 "ready",
			http.StatusServiceUnavailable: "not_ready",
		}[status],
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
