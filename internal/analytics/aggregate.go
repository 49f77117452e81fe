// Package analytics turns a filtered set of canonical transactions into the
// dashboard aggregates: category breakdown, monthly trend, spending trend and
// net totals. Everything here is pure and deterministic for a given input
// and anchor time.
package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultMonths is the length of the trailing monthly trend.
	DefaultMonths = 6
	// DefaultTopCategories caps the category breakdown.
	DefaultTopCategories = 6
	// UncategorizedName labels outflows without a category.
	UncategorizedName = "general"
)

var hundred = decimal.NewFromInt(100)

// Trend classifies month-over-month spending.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CategorySlice is one entry of the outflow breakdown.
type CategorySlice struct {
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthBucket aggregates one calendar month.
type MonthBucket struct {
	Month            time.Time       `json:"month"` // first instant of the month
	Label            string          `json:"label"` // "2006-01"
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Net              decimal.Decimal `json:"net"`
	TransactionCount int             `json:"transaction_count"`
}

// Snapshot is the full analytics result for one transaction set.
type Snapshot struct {
	CategoryData     []CategorySlice `json:"category_data"`
	MonthlyTrend     []MonthBucket   `json:"monthly_trend"`
	SpendingTrend    Trend           `json:"spending_trend"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	TransactionCount int             `json:"transaction_count"`
}

type settings struct {
	months        int
	topCategories int
}

// Option tunes Aggregate.
type Option func(*settings)

// WithMonths sets the monthly trend length. Values below 2 are ignored
// since the spending trend needs two months.
func WithMonths(n int) Option {
	return func(s *settings) {
		if n >= 2 {
			s.months = n
		}
	}
}

// WithTopCategories caps the category breakdown. Values below 1 are ignored.
func WithTopCategories(n int) Option {
	return func(s *settings) {
		if n >= 1 {
			s.topCategories = n
		}
	}
}

// Aggregate computes the dashboard analytics for txs anchored at now.
// Failed and cancelled transactions never moved money and are skipped.
func Aggregate(txs []domain.Transaction, now time.Time, opts ...Option) Snapshot {
	cfg := settings{months: DefaultMonths, topCategories: DefaultTopCategories}
	for _, opt := range opts {
		opt(&cfg)
	}

	snap := Snapshot{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}

	buckets := newBuckets(now, cfg.months)
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Label] = i
	}

	type categoryAcc struct {
		value decimal.Decimal
		count int
	}
	categories := make(map[string]*categoryAcc)

	for _, tx := range txs {
		if !counts(tx) {
			continue
		}
		snap.TransactionCount++

		inflow := tx.Type.IsInflow()
		if inflow {
			snap.TotalIncome = snap.TotalIncome.Add(tx.Amount)
		} else {
			snap.TotalExpense = snap.TotalExpense.Add(tx.Amount)
			name := tx.CategoryOr(UncategorizedName)
			acc, ok := categories[name]
			if !ok {
				acc = &categoryAcc{value: decimal.Zero}
				categories[name] = acc
			}
			acc.value = acc.value.Add(tx.Amount)
			acc.count++
		}

		if i, ok := index[monthLabel(tx.Timestamp.In(now.Location()))]; ok {
			b := &buckets[i]
			b.TransactionCount++
			if inflow {
				b.Income = b.Income.Add(tx.Amount)
			} else {
				b.Expense = b.Expense.Add(tx.Amount)
			}
		}
	}

	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expense)
	}
	snap.MonthlyTrend = buckets
	snap.SpendingTrend = spendingTrend(buckets)
	snap.NetAmount = snap.TotalIncome.Sub(snap.TotalExpense)

	breakdown := make([]CategorySlice, 0, len(categories))
	for name, acc := range categories {
		pct := decimal.Zero
		if snap.TotalExpense.IsPositive() {
			pct = acc.value.Div(snap.TotalExpense).Mul(hundred).Round(2)
		}
		breakdown = append(breakdown, CategorySlice{Name: name, Value: acc.value, Count: acc.count, Percentage: pct})
	}
	sortCategories(breakdown)
	if len(breakdown) > cfg.topCategories {
		breakdown = breakdown[:cfg.topCategories]
	}
	snap.CategoryData = breakdown

	return snap
}

// counts reports whether a transaction took part in moving money.
func counts(tx domain.Transaction) bool {
	switch tx.Status {
	case domain.StatusFailed, domain.StatusCancelled:
		return false
	}
	return tx.Type.IsInflow() || tx.Type.IsOutflow()
}

// newBuckets returns n empty months ending with now's month, oldest first.
func newBuckets(now time.Time, n int) []MonthBucket {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	buckets := make([]MonthBucket, n)
	for i := 0; i < n; i++ {
		m := current.AddDate(0, i-(n-1), 0)
		buckets[i] = MonthBucket{
			Month:   m,
			Label:   monthLabel(m),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Net:     decimal.Zero,
		}
	}
	return buckets
}

func monthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// spendingTrend compares the expense of the two most recent months.
// Only exact equality is stable.
func spendingTrend(buckets []MonthBucket) Trend {
	if len(buckets) < 2 {
		return TrendStable
	}
	current := buckets[len(buckets)-1].Expense
	previous := buckets[len(buckets)-2].Expense
	switch current.Cmp(previous) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendStable
	}
}

// sortCategories orders by value descending, then name for stable output.
func sortCategories(cs []CategorySlice) {
	slices.SortFunc(cs, func(a, b CategorySlice) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
