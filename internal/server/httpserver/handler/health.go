package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	build := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Build:  &build,
	})
}

// handleReady handles GET /ready. It fails until the master listens.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.cluster.Running() {
		h.writeError(w, r, http.StatusServiceUnavailable,
			domain.ErrNotStarted.Code, domain.ErrNotStarted.Message, nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
