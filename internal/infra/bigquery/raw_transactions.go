package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/normalize"
	"google.golang.org/api/iterator"
)

// RawTransactionRow is one landed provider record in raw_transactions.
// Columns not used by a provider are left NULL.
type RawTransactionRow struct {
	RecordID string `bigquery:"record_id"` // REQUIRED
	Provider string `bigquery:"provider"`  // REQUIRED: bank, crypto or manual

	// Institution for bank records, network for crypto records.
	Source bigquery.NullString `bigquery:"source"`

	Amount   string              `bigquery:"amount"`   // REQUIRED STRING, as received
	Currency bigquery.NullString `bigquery:"currency"` // fiat code or crypto asset

	TransactionDate bigquery.NullDate      `bigquery:"transaction_date"`
	OccurredAt      bigquery.NullTimestamp `bigquery:"occurred_at"`
	UnixTS          bigquery.NullInt64     `bigquery:"unix_ts"`

	Type        bigquery.NullString `bigquery:"type"`
	Status      bigquery.NullString `bigquery:"status"`
	Description bigquery.NullString `bigquery:"description"`
	Category    bigquery.NullString `bigquery:"category"`

	MerchantName        bigquery.NullString `bigquery:"merchant_name"`
	MerchantDisplayName bigquery.NullString `bigquery:"merchant_display_name"`

	AccountID   bigquery.NullString `bigquery:"account_id"`
	AccountName bigquery.NullString `bigquery:"account_name"`
	Hash        bigquery.NullString `bigquery:"hash"`

	Pending        bigquery.NullBool   `bigquery:"pending"`
	RunningBalance bigquery.NullString `bigquery:"running_balance"`

	IngestedTS time.Time `bigquery:"ingested_ts"`
}

// ToRawRecord maps the row onto the provider record shape. It does not
// validate values; Normalize does.
func (row *RawTransactionRow) ToRawRecord() (normalize.RawRecord, error) {
	switch row.Provider {
	case normalize.ProviderBank:
		rec := normalize.BankRecord{
			ID:          row.RecordID,
			Institution: row.Source.StringVal,
			Amount:      normalize.AmountFromString(row.Amount),
			Date:        rowDate(row),
			Type:        row.Type.StringVal,
			Status:      row.Status.StringVal,
			Description: row.Description.StringVal,
			Category:    nullStringPtr(row.Category),
			Currency:    row.Currency.StringVal,
			AccountID:   row.AccountID.StringVal,
			AccountName: row.AccountName.StringVal,
			Pending:     row.Pending.Valid && row.Pending.Bool,
		}
		if row.MerchantName.Valid || row.MerchantDisplayName.Valid {
			rec.Merchant = &normalize.RawMerchant{
				Name:        row.MerchantName.StringVal,
				DisplayName: row.MerchantDisplayName.StringVal,
			}
		}
		if row.RunningBalance.Valid {
			rb := normalize.AmountFromString(row.RunningBalance.StringVal)
			rec.RunningBalance = &rb
		}
		return rec, nil

	case normalize.ProviderCrypto:
		rec := normalize.CryptoRecord{
			ID:            row.RecordID,
			Hash:          row.Hash.StringVal,
			Network:       row.Source.StringVal,
			Amount:        normalize.AmountFromString(row.Amount),
			Asset:         row.Currency.StringVal,
			Type:          row.Type.StringVal,
			Status:        row.Status.StringVal,
			Description:   row.Description.StringVal,
			Category:      nullStringPtr(row.Category),
			WalletAddress: row.AccountID.StringVal,
			WalletName:    row.AccountName.StringVal,
		}
		if row.UnixTS.Valid {
			rec.Timestamp = row.UnixTS.Int64
		} else {
			rec.Time = rowDate(row)
		}
		return rec, nil

	case normalize.ProviderManual:
		return normalize.ManualRecord{
			ID:          row.RecordID,
			Amount:      normalize.AmountFromString(row.Amount),
			Date:        rowDate(row),
			Type:        row.Type.StringVal,
			Description: row.Description.StringVal,
			Category:    nullStringPtr(row.Category),
			Merchant:    row.MerchantName.StringVal,
			Currency:    row.Currency.StringVal,
			AccountID:   row.AccountID.StringVal,
			AccountName: row.AccountName.StringVal,
		}, nil
	}
	return nil, fmt.Errorf("record %s: unknown provider %q", row.RecordID, row.Provider)
}

// rowDate prefers the precise timestamp over the calendar date.
func rowDate(row *RawTransactionRow) string {
	switch {
	case row.OccurredAt.Valid:
		return row.OccurredAt.Timestamp.UTC().Format(time.RFC3339Nano)
	case row.TransactionDate.Valid:
		return row.TransactionDate.Date.String()
	}
	return ""
}

func nullStringPtr(ns bigquery.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.StringVal
	return &s
}

// ListRawTransactions returns the raw records landed since the given time,
// oldest first. Rows with an unknown provider are skipped and reported in
// the returned slice of errors.
func (r *Repository) ListRawTransactions(ctx context.Context, since time.Time) ([]normalize.RawRecord, []error, error) {
	q := r.client.Query(`
		SELECT *
		FROM ` + r.table(rawTransactionsTable) + `
		WHERE ingested_ts >= @since
		ORDER BY ingested_ts, record_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ListRawTransactions: query read: %w", err)
	}

	var records []normalize.RawRecord
	var skipped []error
	for {
		var row RawTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ListRawTransactions: iter next: %w", err)
		}
		rec, err := row.ToRawRecord()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}
