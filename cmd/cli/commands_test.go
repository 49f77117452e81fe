package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Envelope:  config.EnvelopeConfig{Concurrency: 2},
		Analytics: config.AnalyticsConfig{Months: 6, TopCategories: 6},
		Sync:      config.SyncConfig{Buffer: 4},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"1333.33", "USD", "$1,333.33"},
		{"0.005", "usd", "$0.01"},
		{"12.5", "XYZ", "12.50 XYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.code+" "+tt.amount, func(t *testing.T) {
			require.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
}

func TestAnalyze_JSON(t *testing.T) {
	raw := writeFile(t, "raw.json", `[
		{"provider":"bank","id":"b1","amount":"-50","date":"2026-03-02","category":"groceries"},
		{"provider":"bank","id":"b2","amount":"-30","date":"2026-03-04","category":"groceries"},
		{"provider":"manual","id":"m1","amount":200,"date":"2026-03-01","merchant":"Employer"},
		{"provider":"bank","id":"bad","amount":"lots","date":"2026-03-01"},
		{"provider":"paypal","id":"p1"}
	]`)
	cmd := &analyzeCmd{
		cfg:       testConfig(),
		now:       func() time.Time { return time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC) },
		raw:       raw,
		dateRange: "this_month",
		order:     "desc",
		months:    6,
		top:       6,
		currency:  "USD",
		asJSON:    true,
	}

	var out bytes.Buffer
	require.NoError(t, cmd.run(quietContext(), &out))

	var snap struct {
		TotalIncome      string `json:"total_income"`
		TotalExpense     string `json:"total_expense"`
		TransactionCount int    `json:"transaction_count"`
		CategoryData     []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"category_data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.Equal(t, "200", snap.TotalIncome)
	require.Equal(t, "80", snap.TotalExpense)
	require.Equal(t, 3, snap.TransactionCount)
	require.Len(t, snap.CategoryData, 1)
	require.Equal(t, 2, snap.CategoryData[0].Count)
}

func TestAnalyze_Text(t *testing.T) {
	raw := writeFile(t, "raw.json", `[{"provider":"manual","id":"m1","amount":-12.5,"date":"2026-03-01","category":"coffee"}]`)
	cmd := &analyzeCmd{
		cfg:       testConfig(),
		now:       func() time.Time { return time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC) },
		raw:       raw,
		dateRange: "all",
		order:     "desc",
		months:    2,
		top:       1,
		currency:  "USD",
		list:      true,
	}

	var out bytes.Buffer
	require.NoError(t, cmd.run(quietContext(), &out))
	require.Contains(t, out.String(), "Expense: $12.50")
	require.Contains(t, out.String(), "coffee")
	require.Contains(t, out.String(), "2026-02")

	cmd.dateRange = "fortnight"
	require.Error(t, cmd.run(quietContext(), &out))
}

func TestRebalance_WritesOutput(t *testing.T) {
	envs := writeFile(t, "envelopes.json", `[
		{"id":"rent","name":"Rent","group_id":"home","allocated_amount":"1000"},
		{"id":"food","name":"Food","group_id":"home","allocated_amount":"500"},
		{"id":"fun","name":"Fun","group_id":"home","allocated_amount":"0"},
		{"id":"car","name":"Car","group_id":"travel","allocated_amount":"50"}
	]`)
	outPath := filepath.Join(t.TempDir(), "out.json")
	cmd := &rebalanceCmd{
		cfg:       testConfig(),
		envelopes: envs,
		group:     "home",
		total:     "2000",
		out:       outPath,
		currency:  "USD",
	}

	var out bytes.Buffer
	require.NoError(t, cmd.run(quietContext(), &out))
	require.Contains(t, out.String(), "$1,333.33")
	require.Contains(t, out.String(), "allocated $2,000.00")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var saved []domain.Envelope
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 4)
	amounts := make(map[string]string)
	for _, e := range saved {
		amounts[e.ID] = e.AllocatedAmount.String()
	}
	require.Equal(t, map[string]string{"car": "50", "food": "666.67", "fun": "0", "rent": "1333.33"}, amounts)
}

func TestRebalance_DryRunAndErrors(t *testing.T) {
	envs := writeFile(t, "envelopes.json", `[{"id":"a","name":"A","group_id":"g","allocated_amount":"10"}]`)
	cmd := &rebalanceCmd{cfg: testConfig(), envelopes: envs, group: "g", total: "25", dryRun: true, currency: "USD"}

	var out bytes.Buffer
	require.NoError(t, cmd.run(quietContext(), &out))
	require.Contains(t, out.String(), "$25.00")

	cmd.group = "missing"
	require.True(t, domain.IsInvalidState(cmd.run(quietContext(), &out)))

	cmd.group, cmd.total = "g", "ten"
	require.Error(t, cmd.run(quietContext(), &out))
}

func TestReplaySync(t *testing.T) {
	events := writeFile(t, "events.json", `[
		{"resource_id":"wallet","kind":"crypto","status":"queued"},
		{"resource_id":"wallet","status":"syncing_assets","progress":40},
		{"resource_id":"wallet","status":"syncing"},
		{"resource_id":"wallet","status":"completed"},
		{"resource_id":"chase","kind":"bank","status":"queued"},
		{"resource_id":"chase","status":"syncing_defi"}
	]`)
	cmd := &replaySyncCmd{cfg: testConfig(), events: events, verbose: true}

	var out bytes.Buffer
	require.NoError(t, cmd.run(quietContext(), &out))

	text := out.String()
	require.Contains(t, text, "Events: 4 applied, 2 ignored")
	require.Contains(t, text, "backward transition: 1")
	require.Contains(t, text, "status not used by this resource kind: 1")
	require.Contains(t, text, "completed")
	require.Contains(t, text, "100%")
}
