package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"google.golang.org/api/iterator"
)

type AccountRow struct {
	AccountID   string              `bigquery:"account_id"` // REQUIRED
	AccountName bigquery.NullString `bigquery:"account_name"`
	Category    string              `bigquery:"category"` // REQUIRED, e.g. CHECKING, CREDIT_CARD
	Balance     *big.Rat            `bigquery:"balance"`  // NULLABLE NUMERIC
	Currency    bigquery.NullString `bigquery:"currency"`
	Source      bigquery.NullString `bigquery:"source"`
	IsActive    bigquery.NullBool   `bigquery:"is_active"` // NULL counts as active

	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// ToDomain converts the row into a domain account.
func (row *AccountRow) ToDomain() (domain.Account, error) {
	balance, err := ratToDecimal(row.Balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: balance: %w", row.AccountID, err)
	}
	return domain.Account{
		ID:       row.AccountID,
		Name:     row.AccountName.StringVal,
		Category: domain.AccountCategory(strings.ToUpper(row.Category)),
		Balance:  balance,
		Currency: row.Currency.StringVal,
		Source:   domain.Source(row.Source.StringVal),
		IsActive: !row.IsActive.Valid || row.IsActive.Bool,
	}, nil
}

// ListAccounts returns every account ordered by name.
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	q := r.client.Query(`
		SELECT account_id, account_name, category, balance, currency, source, is_active, updated_ts
		FROM ` + r.table(accountsTable) + `
		ORDER BY account_name, account_id
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query read: %w", err)
	}

	var accounts []domain.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iter next: %w", err)
		}
		acc, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}
