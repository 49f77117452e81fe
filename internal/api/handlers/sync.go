package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/syncstate"
	"github.com/rs/zerolog"
)

// SyncHandler accepts sync progress events and serves the tracked states.
type SyncHandler struct {
	tracker *syncstate.Tracker
	log     zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(tracker *syncstate.Tracker, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		tracker: tracker,
		log:     log,
	}
}

// PostEvent handles POST /api/sync/events. Events the state machine
// ignores are still answered 200 with applied=false and a reason.
func (h *SyncHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceID string    `json:"resource_id"`
		Kind       string    `json:"kind"`
		Status     string    `json:"status"`
		Progress   *int      `json:"progress"`
		Message    string    `json:"message"`
		At         time.Time `json:"at"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.log, err, "Invalid request body")
		return
	}
	if req.ResourceID == "" || req.Status == "" {
		middleware.WriteError(w, http.StatusBadRequest, "resource_id and status are required")
		return
	}
	kind, err := syncstate.ParseKind(req.Kind)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := syncstate.ParseStatus(req.Status)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := requestContext(r, h.log)
	state, outcome, err := h.tracker.Apply(ctx, syncstate.Event{
		ResourceID: req.ResourceID,
		Kind:       kind,
		Status:     status,
		Progress:   req.Progress,
		Message:    req.Message,
		At:         req.At,
	})
	if err != nil {
		writeFailure(w, h.log, err, "Failed to apply sync event")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"outcome": outcome,
	})
}

// ListStates handles GET /api/sync
func (h *SyncHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	states := h.tracker.SnapshotAll()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"states": states,
		"count":  len(states),
	})
}

// GetState handles GET /api/sync/{id}. Unknown resources are reported idle.
func (h *SyncHandler) GetState(w http.ResponseWriter, r *http.Request, resourceID string) {
	state, _ := h.tracker.Snapshot(resourceID)
	middleware.WriteJSON(w, http.StatusOK, state)
}

// ForgetState handles DELETE /api/sync/{id}
func (h *SyncHandler) ForgetState(w http.ResponseWriter, r *http.Request, resourceID string) {
	if err := h.tracker.Forget(r.Context(), resourceID); err != nil {
		writeFailure(w, h.log, err, "Failed to forget sync state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
