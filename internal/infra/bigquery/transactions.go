package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"google.golang.org/api/iterator"
)

// TransactionRow is a canonical transaction in the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Type   string `bigquery:"type"`   // REQUIRED
	Status string `bigquery:"status"` // REQUIRED

	TransactionDate civil.Date             `bigquery:"transaction_date"` // REQUIRED
	BookedAt        bigquery.NullTimestamp `bigquery:"booked_at"`        // NULLABLE, precise time when known

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, never negative
	Currency string   `bigquery:"currency"` // REQUIRED

	Description string              `bigquery:"description"` // REQUIRED
	Category    bigquery.NullString `bigquery:"category"`

	MerchantName        bigquery.NullString `bigquery:"merchant_name"`
	MerchantDisplayName bigquery.NullString `bigquery:"merchant_display_name"`

	AccountID   bigquery.NullString `bigquery:"account_id"`
	AccountName bigquery.NullString `bigquery:"account_name"`
	Hash        bigquery.NullString `bigquery:"hash"`

	Source   string              `bigquery:"source"` // REQUIRED: bank, crypto or manual
	Provider bigquery.NullString `bigquery:"provider"`

	IsPending      bigquery.NullBool `bigquery:"is_pending"`
	RunningBalance *big.Rat          `bigquery:"running_balance"` // NULLABLE NUMERIC
}

// ToDomain converts the row into a canonical transaction.
func (row *TransactionRow) ToDomain() (domain.Transaction, error) {
	amount, err := ratToDecimal(row.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", row.TransactionID, err)
	}

	ts := row.TransactionDate.In(time.UTC)
	if row.BookedAt.Valid {
		ts = row.BookedAt.Timestamp.UTC()
	}

	tx := domain.Transaction{
		ID:          row.TransactionID,
		Type:        domain.TransactionType(row.Type),
		Status:      domain.TransactionStatus(row.Status),
		Timestamp:   ts,
		Amount:      amount,
		Currency:    row.Currency,
		Description: row.Description,
		Category:    nullStringPtr(row.Category),
		AccountID:   row.AccountID.StringVal,
		AccountName: row.AccountName.StringVal,
		Hash:        row.Hash.StringVal,
		Source:      domain.Source(row.Source),
		Provider:    row.Provider.StringVal,
		Pending:     row.IsPending.Valid && row.IsPending.Bool,
	}
	if row.MerchantName.Valid || row.MerchantDisplayName.Valid {
		tx.Merchant = &domain.Merchant{
			Name:        row.MerchantName.StringVal,
			DisplayName: row.MerchantDisplayName.StringVal,
		}
	}
	if row.RunningBalance != nil {
		rb, err := ratToDecimal(row.RunningBalance)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("transaction %s: running_balance: %w", row.TransactionID, err)
		}
		tx.RunningBalance = &rb
	}
	return tx, nil
}

// GetTransactions fetches canonical transactions by id. Unknown ids are
// simply absent from the result.
func (r *Repository) GetTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := r.client.Query(`
		SELECT *
		FROM ` + r.table(transactionsTable) + `
		WHERE transaction_id IN UNNEST(@ids)
		ORDER BY transaction_date, transaction_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: iter next: %w", err)
		}
		tx, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
