package handlers

import (
	"errors"
	"net/http"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/rules"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
)

// AlertListResult is the paginated alert list response.
type AlertListResult struct {
	Alerts []store.Alert `json:"alerts"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AlertActionRequest identifies the alert for read/dismiss actions.
type AlertActionRequest struct {
	AlertID string `json:"alert_id"`
}

// ListAlerts returns non-dismissed alerts matching the query filters.
// Query params: unread_only, min_severity, action_required, entity_id,
// kind, limit, offset. Criteria are AND-composed.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	f := store.Filter{
		UnreadOnly:         parseBool(r, "unread_only"),
		ActionRequiredOnly: parseBool(r, "action_required"),
		EntityID:           r.URL.Query().Get("entity_id"),
	}

	if sevStr := r.URL.Query().Get("min_severity"); sevStr != "" {
		sev, err := rules.SeverityFromString(sevStr)
		if err != nil {
			http.Error(w, "min_severity must be one of: low, medium, high, critical", http.StatusBadRequest)
			return
		}
		f.MinSeverity = sev
	}

	if kindStr := r.URL.Query().Get("kind"); kindStr != "" {
		kind, err := entity.KindFromString(kindStr)
		if err != nil {
			http.Error(w, "kind must be one of: job, candidate, referral", http.StatusBadRequest)
			return
		}
		f.Kind = kind
	}

	p := parsePagination(r)
	f.Limit = p.Limit
	f.Offset = p.Offset

	writeJSON(w, http.StatusOK, AlertListResult{
		Alerts: h.svc.ListAlerts(f),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

// MarkRead marks an alert as read.
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.alertAction(w, r, h.svc.MarkRead)
}

// Dismiss permanently dismisses an alert. Dismissing an already-dismissed
// alert succeeds without effect.
func (h *Handlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.alertAction(w, r, h.svc.Dismiss)
}

func (h *Handlers) alertAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req AlertActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	if err := action(req.AlertID); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
