package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/bulk"
	"github.com/rs/zerolog"
)

// OperationsHandler starts bulk operations and reports on them.
type OperationsHandler struct {
	coordinator *bulk.Coordinator
	store       bulk.OperationStore
	executors   map[bulk.Kind]bulk.Executor
	log         zerolog.Logger
}

// NewOperationsHandler creates a new operations handler. Kinds without an
// executor are rejected with 409.
func NewOperationsHandler(coordinator *bulk.Coordinator, store bulk.OperationStore, executors map[bulk.Kind]bulk.Executor, log zerolog.Logger) *OperationsHandler {
	return &OperationsHandler{
		coordinator: coordinator,
		store:       store,
		executors:   executors,
		log:         log,
	}
}

// CreateOperation handles POST /api/operations. With "async": true the
// operation runs in the background and the pending operation is returned
// with 202; otherwise the finished operation is returned.
func (h *OperationsHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		bulk.Request
		Async bool `json:"async"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.log, err, "Invalid request body")
		return
	}

	ctx := requestContext(r, h.log)
	exec := h.executors[req.Kind]

	if req.Async {
		op, err := h.coordinator.Submit(ctx, req.Request, exec)
		if err != nil {
			writeFailure(w, h.log, err, "Failed to submit operation")
			return
		}
		h.log.Info().Str("operation_id", op.ID).Str("kind", string(op.Kind)).Msg("Bulk operation submitted")
		middleware.WriteJSON(w, http.StatusAccepted, op)
		return
	}

	op, err := h.coordinator.Run(ctx, req.Request, exec)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to run operation")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, op)
}

// GetOperation handles GET /api/operations/{id}
func (h *OperationsHandler) GetOperation(w http.ResponseWriter, r *http.Request, operationID string) {
	op, err := h.store.GetOperation(r.Context(), operationID)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to get operation")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, op)
}

// ListOperations handles GET /api/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := bulk.OperationFilter{
		Kind:   bulk.Kind(query.Get("kind")),
		Status: bulk.OperationStatus(query.Get("status")),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeFailure(w, h.log, err, "Invalid limit")
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeFailure(w, h.log, err, "Invalid offset")
		return
	}

	ops, err := h.store.ListOperations(r.Context(), filter)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to list operations")
		return
	}
	if ops == nil {
		ops = []*bulk.Operation{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	})
}
