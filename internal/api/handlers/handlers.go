package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/analytics"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/ledger"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/normalize"
	"github.com/rs/zerolog"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsInvalidState(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports err to the client. Client errors are echoed; server
// errors are logged and replaced by msg.
func writeFailure(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	middleware.WriteError(w, status, clientMessage(err))
}

// clientMessage strips the call-site prefixes wrapped around a domain error.
func clientMessage(err error) string {
	var se *domain.InvalidStateError
	if errors.As(err, &se) {
		return se.Message
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// requestContext makes sure downstream code logs through the request's
// logger, falling back to the handler's own.
func requestContext(r *http.Request, log zerolog.Logger) context.Context {
	return logger.WithContext(r.Context(), logger.FromContextOr(r.Context(), log))
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Field: key, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// AccountSource lists accounts for the net-worth totals.
type AccountSource interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// LedgerHandler serves the transaction list and the dashboard aggregates.
type LedgerHandler struct {
	source   normalize.RawSource
	accounts AccountSource
	opts     []analytics.Option
	now      func() time.Time
	log      zerolog.Logger
}

// NewLedgerHandler creates a ledger handler. accounts may be nil, in which
// case the analytics response carries no net worth.
func NewLedgerHandler(source normalize.RawSource, accounts AccountSource, log zerolog.Logger, opts ...analytics.Option) *LedgerHandler {
	return &LedgerHandler{
		source:   source,
		accounts: accounts,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

func criteriaFromQuery(r *http.Request) (ledger.Criteria, error) {
	query := r.URL.Query()
	preset, err := ledger.ParsePreset(query.Get("range"))
	if err != nil {
		return ledger.Criteria{}, &domain.ValidationError{Field: "range", Reason: err.Error()}
	}
	return ledger.Criteria{
		SearchQuery: query.Get("search"),
		Category:    query.Get("category"),
		DateRange:   preset,
	}, nil
}

// load normalizes the raw records and applies the request's filter.
func (h *LedgerHandler) load(r *http.Request) ([]domain.Transaction, error) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		return nil, err
	}
	txs, err := normalize.Transactions(requestContext(r, h.log), h.source)
	if err != nil {
		return nil, err
	}
	return ledger.Filter(txs, criteria, h.now()), nil
}

// ListTransactions handles GET /api/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	order, err := ledger.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.load(r)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to load transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": ledger.Sort(txs, order),
		"count":        len(txs),
	})
}

type analyticsResponse struct {
	analytics.Snapshot
	NetWorth *analytics.NetWorth `json:"net_worth,omitempty"`
}

// Analytics handles GET /api/analytics
func (h *LedgerHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	txs, err := h.load(r)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to load transactions")
		return
	}

	resp := analyticsResponse{Snapshot: analytics.Aggregate(txs, h.now(), h.opts...)}
	if h.accounts != nil {
		accounts, err := h.accounts.ListAccounts(r.Context())
		if err != nil {
			writeFailure(w, h.log, err, "Failed to list accounts")
			return
		}
		nw := analytics.Totals(accounts)
		resp.NetWorth = &nw
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
