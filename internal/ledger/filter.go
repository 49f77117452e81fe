// Package ledger filters and orders canonical transactions for display and
// aggregation. All functions are pure and return new slices.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// CategoryAll disables category filtering.
const CategoryAll = "all"

// Criteria selects a subset of transactions. Zero values match everything.
type Criteria struct {
	SearchQuery string
	Category    string
	DateRange   DateRangePreset
}

// Filter returns the transactions matching every criterion, in input order.
// now anchors the date range presets.
func Filter(txs []domain.Transaction, c Criteria, now time.Time) []domain.Transaction {
	query := strings.ToLower(strings.TrimSpace(c.SearchQuery))
	interval := Resolve(c.DateRange, now)
	category := c.Category
	if category == CategoryAll {
		category = ""
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if category != "" && (tx.Category == nil || *tx.Category != category) {
			continue
		}
		if !interval.Contains(tx.Timestamp) {
			continue
		}
		if query != "" && !matchesSearch(tx, query) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// matchesSearch does a case-insensitive substring match over the
// user-visible text fields. query must already be lower-cased.
func matchesSearch(tx domain.Transaction, query string) bool {
	fields := []string{tx.Description, tx.Hash, tx.AccountName}
	if tx.Merchant != nil {
		fields = append(fields, tx.Merchant.Name, tx.Merchant.DisplayName)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// Order is the timestamp sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// ParseOrder validates a sort direction. The empty string means Descending,
// newest first, which is what the dashboard lists show.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", Descending:
		return Descending, nil
	case Ascending:
		return Ascending, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Sort returns a copy of txs ordered by timestamp. The sort is stable:
// transactions with equal timestamps keep their relative input order in
// both directions, so repeated sorts never reshuffle ties.
func Sort(txs []domain.Transaction, order Order) []domain.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		c := a.Timestamp.Compare(b.Timestamp)
		if order == Descending {
			return -c
		}
		return c
	})
	return out
}
