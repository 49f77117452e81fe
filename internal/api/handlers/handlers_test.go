package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/bulk"
	bulkmem "github.com/dvloznov/finance-dashboard/internal/bulk/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	envmem "github.com/dvloznov/finance-dashboard/internal/envelope/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/normalize"
	"github.com/dvloznov/finance-dashboard/internal/syncstate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func category(s string) *string { return &s }

type staticAccounts []domain.Account

func (s staticAccounts) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s, nil
}

// flakyStore rejects writes to one envelope.
type flakyStore struct {
	*envmem.Store
	failID string
}

func (f *flakyStore) UpdateAllocation(ctx context.Context, id string, amount decimal.Decimal) (*domain.Envelope, error) {
	if id == f.failID {
		return nil, fmt.Errorf("quota exceeded")
	}
	return f.Store.UpdateAllocation(ctx, id, amount)
}

type testServer struct {
	mux      *http.ServeMux
	envelope *envmem.Store
	ops      *bulkmem.Store
}

func newTestServer(t *testing.T, envStore envelope.Store, seed *envmem.Store) *testServer {
	t.Helper()
	log := logger.Nop()

	raws := normalize.StaticSource{
		normalize.ManualRecord{ID: "g1", Amount: normalize.AmountFromInt(-50), Date: "2026-03-02", Category: category("groceries"), Merchant: "Aldi"},
		normalize.ManualRecord{ID: "g2", Amount: normalize.AmountFromInt(-30), Date: "2026-03-05", Category: category("groceries"), Merchant: "Lidl"},
		normalize.ManualRecord{ID: "pay", Amount: normalize.AmountFromInt(200), Date: "2026-03-01", Category: category("income"), Merchant: "Employer"},
		normalize.ManualRecord{ID: "broken", Amount: normalize.AmountFromString("abc"), Date: "2026-03-01"},
	}
	accounts := staticAccounts{
		{ID: "chk", Category: domain.AccountChecking, Balance: decimal.NewFromInt(500), IsActive: true},
		{ID: "cc", Category: domain.AccountCreditCard, Balance: decimal.NewFromInt(-100), IsActive: true},
	}
	ledgerHandler := NewLedgerHandler(raws, accounts, log)
	ledgerHandler.now = func() time.Time { return testNow }

	tracker := syncstate.NewTracker(8)
	require.NoError(t, tracker.Start(context.Background()))
	t.Cleanup(func() { _ = tracker.Stop(context.Background()) })

	opStore := bulkmem.NewStore()
	coordinator := bulk.NewCoordinator(opStore)
	t.Cleanup(func() { _ = coordinator.Stop(context.Background()) })
	executors := map[bulk.Kind]bulk.Executor{
		bulk.KindDelete: bulk.ExecutorFunc(func(ctx context.Context, ids []string) (bulk.Outcome, error) {
			out := bulk.Outcome{Errors: map[string]string{}}
			for _, id := range ids {
				if id == "b" {
					out.Failed = append(out.Failed, id)
					out.Errors[id] = "Transaction is locked"
					continue
				}
				out.Success = append(out.Success, id)
			}
			return out, nil
		}),
		bulk.KindSync: &bulk.SyncExecutor{Tracker: tracker, Kind: syncstate.KindBank},
	}

	mux := http.NewServeMux()
	Register(mux, Handlers{
		Ledger:     ledgerHandler,
		Envelopes:  NewEnvelopesHandler(envStore, envelope.NewEngine(envStore), log),
		Sync:       NewSyncHandler(tracker, log),
		Operations: NewOperationsHandler(coordinator, opStore, executors, log),
	})
	return &testServer{mux: mux, envelope: seed, ops: opStore}
}

func homeEnvelopes() *envmem.Store {
	return envmem.NewStore(
		domain.Envelope{ID: "rent", Name: "Rent", GroupID: "home", AllocatedAmount: decimal.NewFromInt(1000)},
		domain.Envelope{ID: "food", Name: "Food", GroupID: "home", AllocatedAmount: decimal.NewFromInt(500)},
		domain.Envelope{ID: "fun", Name: "Fun", GroupID: "home", AllocatedAmount: decimal.Zero},
	)
}

func (s *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestTransactions(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodGet, "/api/transactions?order=asc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 3, body["count"])
	txs := body["transactions"].([]interface{})
	require.Equal(t, "pay", txs[0].(map[string]interface{})["id"])
	require.Equal(t, "g2", txs[2].(map[string]interface{})["id"])

	rec, body = s.do(t, http.MethodGet, "/api/transactions?search=aldi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/transactions?range=fortnight", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/transactions?order=sideways", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/transactions", "{}")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalytics(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodGet, "/api/analytics?range=this_month", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, "200", body["total_income"])
	require.Equal(t, "80", body["total_expense"])
	require.Equal(t, "120", body["net_amount"])

	breakdown := body["category_data"].([]interface{})
	require.Len(t, breakdown, 1)
	groceries := breakdown[0].(map[string]interface{})
	require.Equal(t, "groceries", groceries["name"])
	require.EqualValues(t, 2, groceries["count"])
	require.Equal(t, "100", groceries["percentage"])

	require.Len(t, body["monthly_trend"], 6)

	nw := body["net_worth"].(map[string]interface{})
	require.Equal(t, "500", nw["total_assets"])
	require.Equal(t, "100", nw["total_liabilities"])
	require.Equal(t, "400", nw["total_net_worth"])
}

func TestRebalance(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)
	ctx := context.Background()

	rec, body := s.do(t, http.MethodPost, "/api/envelopes/rebalance", `{"group_id":"home","total_amount":2000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, body["failed"])

	want := map[string]string{"rent": "1333.33", "food": "666.67", "fun": "0"}
	for id, amount := range want {
		env, err := store.GetEnvelope(ctx, id)
		require.NoError(t, err)
		require.True(t, env.AllocatedAmount.Equal(decimal.RequireFromString(amount)), "%s = %s", id, env.AllocatedAmount)
	}

	rec, body = s.do(t, http.MethodPost, "/api/envelopes/rebalance", `{"group_id":"empty","total_amount":10}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, envelope.MsgNoEnvelopes, body["error"])

	rec, _ = s.do(t, http.MethodPost, "/api/envelopes/rebalance", `{"group_id":"home","total_amount":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/envelopes/rebalance", `{"group_id":"home"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/envelopes/rebalance", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRebalance_PartialFailure(t *testing.T) {
	seed := homeEnvelopes()
	s := newTestServer(t, &flakyStore{Store: seed, failID: "food"}, seed)

	rec, body := s.do(t, http.MethodPost, "/api/envelopes/rebalance", `{"group_id":"home","total_amount":3000}`)
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	failed := body["failed"].([]interface{})
	require.Len(t, failed, 1)
	require.Equal(t, "food", failed[0].(map[string]interface{})["envelope_id"])
	require.Equal(t, "quota exceeded", failed[0].(map[string]interface{})["error"])

	rent, err := seed.GetEnvelope(context.Background(), "rent")
	require.NoError(t, err)
	require.Equal(t, "2000", rent.AllocatedAmount.String())
}

func TestAllocate(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodPost, "/api/envelopes/allocation", `{"envelope_id":"fun","amount":"42.005"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "42.01", body["allocated_amount"])

	rec, _ = s.do(t, http.MethodPost, "/api/envelopes/allocation", `{"envelope_id":"fun","amount":-5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/envelopes/allocation", `{"envelope_id":"ghost","amount":5}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/envelopes?group_id=home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 3, body["count"])
}

func TestSyncEndpoints(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodPost, "/api/sync/events", `{"resource_id":"chase","kind":"bank","status":"queued"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["outcome"].(map[string]interface{})["applied"])

	rec, body = s.do(t, http.MethodPost, "/api/sync/events", `{"resource_id":"chase","status":"syncing_nfts"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	outcome := body["outcome"].(map[string]interface{})
	require.Equal(t, false, outcome["applied"])
	require.Equal(t, syncstate.ReasonNotForKind, outcome["reason"])

	rec, _ = s.do(t, http.MethodPost, "/api/sync/events", `{"resource_id":"chase","kind":"broker","status":"queued"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/sync/events", `{"resource_id":"chase","status":"paused"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["error"], "unknown sync status")

	rec, body = s.do(t, http.MethodPost, "/api/sync/events", `{"resource_id":"chase","status":"SYNCING_ASSETS","progress":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["outcome"].(map[string]interface{})["applied"])

	rec, _ = s.do(t, http.MethodDelete, "/api/sync/chase", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/sync/chase", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "syncing_assets", body["status"])

	rec, body = s.do(t, http.MethodGet, "/api/sync/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "idle", body["status"])

	rec, body = s.do(t, http.MethodGet, "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
}

func TestOperations(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodPost, "/api/operations", `{"kind":"delete","items":[{"id":"a"},{"id":"b"},{"id":"c"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "completed", body["status"])
	items := body["items"].([]interface{})
	require.Equal(t, "success", items[0].(map[string]interface{})["status"])
	require.Equal(t, "error", items[1].(map[string]interface{})["status"])
	require.Equal(t, "Transaction is locked", items[1].(map[string]interface{})["error"])
	opID := body["id"].(string)

	rec, body = s.do(t, http.MethodGet, "/api/operations/"+opID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["error_count"])

	rec, body = s.do(t, http.MethodPost, "/api/operations", `{"kind":"move","items":[{"id":"a"}]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "No executor available for move", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/api/operations", `{"kind":"shred","items":[{"id":"a"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/operations", `{"kind":"delete","items":[]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, bulk.MsgNoItems, body["error"])

	rec, _ = s.do(t, http.MethodGet, "/api/operations/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/operations?limit=-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperations_AsyncSync(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodPost, "/api/operations", `{"kind":"sync","async":true,"items":[{"id":"chase"},{"id":"amex"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, "pending", body["status"])
	opID := body["id"].(string)

	require.Eventually(t, func() bool {
		op, err := s.ops.GetOperation(context.Background(), opID)
		return err == nil && op.Status == bulk.OperationCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec, body = s.do(t, http.MethodGet, "/api/sync/amex", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "queued", body["status"])

	rec, body = s.do(t, http.MethodGet, "/api/operations?kind=sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
}

func TestHealth(t *testing.T) {
	store := homeEnvelopes()
	s := newTestServer(t, store, store)

	rec, body := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", body["status"])
}
