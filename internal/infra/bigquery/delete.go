package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/bulk"
	"google.golang.org/api/iterator"
)

// TransactionDeleter is a bulk.Executor that deletes canonical
// transactions by id in one DML statement.
type TransactionDeleter struct {
	repo *Repository
}

// NewTransactionDeleter creates a deleter sharing repo's client.
func NewTransactionDeleter(repo *Repository) *TransactionDeleter {
	return &TransactionDeleter{repo: repo}
}

// Confirm deletes every id and then checks which ones are still present.
// Those are reported as failed.
func (d *TransactionDeleter) Confirm(ctx context.Context, ids []string) (bulk.Outcome, error) {
	if len(ids) == 0 {
		return bulk.Outcome{}, nil
	}

	q := d.repo.client.Query(`
		DELETE FROM ` + d.repo.table(transactionsTable) + `
		WHERE transaction_id IN UNNEST(@ids)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}
	if err := runDML(ctx, q); err != nil {
		return bulk.Outcome{}, fmt.Errorf("TransactionDeleter.Confirm: %w", err)
	}

	remaining, err := d.remaining(ctx, ids)
	if err != nil {
		return bulk.Outcome{}, fmt.Errorf("TransactionDeleter.Confirm: %w", err)
	}
	return splitOutcome(ids, remaining, "Transaction could not be deleted"), nil
}

func (d *TransactionDeleter) remaining(ctx context.Context, ids []string) (map[string]bool, error) {
	q := d.repo.client.Query(`
		SELECT transaction_id
		FROM ` + d.repo.table(transactionsTable) + `
		WHERE transaction_id IN UNNEST(@ids)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	left := make(map[string]bool)
	for {
		var row struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		left[row.TransactionID] = true
	}
	return left, nil
}

// splitOutcome reports ids in failed as failed with msg, the rest as success.
func splitOutcome(ids []string, failed map[string]bool, msg string) bulk.Outcome {
	out := bulk.Outcome{Success: []string{}, Failed: []string{}, Errors: map[string]string{}}
	for _, id := range ids {
		if failed[id] {
			out.Failed = append(out.Failed, id)
			out.Errors[id] = msg
			continue
		}
		out.Success = append(out.Success, id)
	}
	return out
}

var _ bulk.Executor = (*TransactionDeleter)(nil)
