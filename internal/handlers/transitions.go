package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/database"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/service"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/transition"
)

// TransitionRequest asks for a status change on one entity.
type TransitionRequest struct {
	EntityID string `json:"entity_id"`
	ToStatus string `json:"to_status"`
	Actor    string `json:"actor"`
	Override bool   `json:"override"`
}

// TransitionResponse returns the committed entity and the alerts now live
// for it, consistent with the new state.
type TransitionResponse struct {
	Entity *entity.Entity `json:"entity"`
	Alerts []store.Alert  `json:"alerts"`
}

// transitionErrorBody is the failure response; CurrentStatus is always the
// authoritative status so the caller can reconcile without re-fetching.
type transitionErrorBody struct {
	Error         string `json:"error"`
	CurrentStatus string `json:"current_status"`
}

// RequestTransition validates and commits a status change, returning the
// updated entity and its alerts.
func (h *Handlers) RequestTransition(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EntityID == "" {
		http.Error(w, "entity_id is required", http.StatusBadRequest)
		return
	}
	if req.ToStatus == "" {
		http.Error(w, "to_status is required", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		http.Error(w, "actor is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	updated, alerts, err := h.svc.RequestTransition(ctx, req.EntityID, entity.Status(req.ToStatus), req.Actor, req.Override)
	if err != nil {
		h.writeTransitionError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, TransitionResponse{Entity: updated, Alerts: alerts})
}

func (h *Handlers) writeTransitionError(w http.ResponseWriter, req TransitionRequest, err error) {
	var illegal *transition.IllegalTransitionError
	if errors.As(err, &illegal) {
		writeJSON(w, http.StatusUnprocessableEntity, transitionErrorBody{
			Error:         illegal.Error(),
			CurrentStatus: string(illegal.Current),
		})
		return
	}

	var conflict *service.ConflictUnresolvedError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, transitionErrorBody{
			Error:         conflict.Error(),
			CurrentStatus: string(conflict.Current),
		})
		return
	}

	if errors.Is(err, database.ErrEntityNotFound) {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return
	}

	slog.Error("Transition request failed",
		"entity_id", req.EntityID,
		"to_status", req.ToStatus,
		"error", err,
	)
	http.Error(w, "Failed to apply transition: "+err.Error(), http.StatusInternalServerError)
}
