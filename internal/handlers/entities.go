package handlers

import (
	"net/http"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

// EntityListResult is the entity list response.
type EntityListResult struct {
	Entities []*entity.Entity `json:"entities"`
}

// ListEntities exposes current snapshots of one kind for the dashboard.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	kindStr := r.URL.Query().Get("kind")
	if kindStr == "" {
		http.Error(w, "kind query parameter is required", http.StatusBadRequest)
		return
	}
	kind, err := entity.KindFromString(kindStr)
	if err != nil {
		http.Error(w, "kind must be one of: job, candidate, referral", http.StatusBadRequest)
		return
	}

	entities, err := h.svc.GetEntities(r.Context(), kind)
	if err != nil {
		http.Error(w, "Failed to list entities: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entities == nil {
		entities = []*entity.Entity{}
	}

	writeJSON(w, http.StatusOK, EntityListResult{Entities: entities})
}

// GetEngineMetrics returns the current metrics snapshot.
func (h *Handlers) GetEngineMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.metrics == nil {
		http.Error(w, "Metrics are not enabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}
