package handler

import (
	"context"
	"net/http"

	"securedocs/internal/logging"
)

// HealthChecker is satisfied by health.Checker.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type SystemHandler struct {
	version string
	health  HealthChecker
	log     logging.Logger
}

func NewSystemHandler(version string, health HealthChecker, log logging.Logger) *SystemHandler {
	return &SystemHandler{version: version, health: health, log: log}
}

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Message: "Secure File Sharing API", Version: h.version})
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Check(r.Context()); err != nil {
		h.log.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}
