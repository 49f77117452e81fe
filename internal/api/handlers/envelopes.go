package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EnvelopesHandler handles envelope allocation endpoints.
type EnvelopesHandler struct {
	store  envelope.Store
	engine *envelope.Engine
	log    zerolog.Logger
}

// NewEnvelopesHandler creates a new envelopes handler. The engine must write
// through the same store.
func NewEnvelopesHandler(store envelope.Store, engine *envelope.Engine, log zerolog.Logger) *EnvelopesHandler {
	return &EnvelopesHandler{
		store:  store,
		engine: engine,
		log:    log,
	}
}

// ListEnvelopes handles GET /api/envelopes
func (h *EnvelopesHandler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envelopes, err := h.store.ListEnvelopes(r.Context(), r.URL.Query().Get("group_id"))
	if err != nil {
		writeFailure(w, h.log, err, "Failed to list envelopes")
		return
	}
	if envelopes == nil {
		envelopes = []domain.Envelope{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"envelopes": envelopes,
		"count":     len(envelopes),
	})
}

// Rebalance handles POST /api/envelopes/rebalance. A partially applied
// rebalance answers 207 with the per-envelope failures.
func (h *EnvelopesHandler) Rebalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID     string           `json:"group_id"`
		TotalAmount *decimal.Decimal `json:"total_amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.log, err, "Invalid request body")
		return
	}
	if req.GroupID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "group_id is required")
		return
	}
	if req.TotalAmount == nil {
		middleware.WriteError(w, http.StatusBadRequest, "total_amount is required")
		return
	}

	ctx := requestContext(r, h.log)
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().Str("group_id", req.GroupID).Logger())

	envelopes, err := h.store.ListEnvelopes(ctx, req.GroupID)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to list envelopes")
		return
	}

	result, err := h.engine.RebalanceGroup(ctx, envelopes, *req.TotalAmount)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to rebalance envelopes")
		return
	}

	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	middleware.WriteJSON(w, status, result)
}

// Allocate handles POST /api/envelopes/allocation
func (h *EnvelopesHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnvelopeID string           `json:"envelope_id"`
		Amount     *decimal.Decimal `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.log, err, "Invalid request body")
		return
	}
	if req.EnvelopeID == "" || req.Amount == nil {
		middleware.WriteError(w, http.StatusBadRequest, "envelope_id and amount are required")
		return
	}

	ctx := requestContext(r, h.log)

	env, err := h.store.GetEnvelope(ctx, req.EnvelopeID)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to get envelope")
		return
	}

	updated, err := h.engine.Allocate(ctx, *env, *req.Amount)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to update allocation")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, updated)
}
