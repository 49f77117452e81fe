package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by the API.
type Handlers struct {
	Ledger     *LedgerHandler
	Envelopes  *EnvelopesHandler
	Sync       *SyncHandler
	Operations *OperationsHandler
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// Register mounts every endpoint on mux.
func Register(mux *http.ServeMux, h Handlers) {
	// Ledger endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Ledger.ListTransactions(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/analytics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Ledger.Analytics(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	// Envelope endpoints
	mux.HandleFunc("/api/envelopes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Envelopes.ListEnvelopes(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/envelopes/rebalance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Envelopes.Rebalance(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/envelopes/allocation", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Envelopes.Allocate(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	// Sync endpoints
	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Sync.ListStates(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/sync/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Sync.PostEvent(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/sync/", func(w http.ResponseWriter, r *http.Request) {
		resourceID := strings.TrimPrefix(r.URL.Path, "/api/sync/")
		if resourceID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Resource ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.Sync.GetState(w, r, resourceID)
		case http.MethodDelete:
			h.Sync.ForgetState(w, r, resourceID)
		default:
			methodNotAllowed(w)
		}
	})

	// Bulk operation endpoints
	mux.HandleFunc("/api/operations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Operations.ListOperations(w, r)
		case http.MethodPost:
			h.Operations.CreateOperation(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/operations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		operationID := strings.TrimPrefix(r.URL.Path, "/api/operations/")
		if operationID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Operation ID is required")
			return
		}
		h.Operations.GetOperation(w, r, operationID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
