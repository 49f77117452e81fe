// Package gcs adapts Google Cloud Storage for the dashboard: reading input
// files and exporting selected transactions as JSON Lines.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/bulk"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

const (
	jsonLinesContentType = "application/x-ndjson"
	msgNotFound          = "Transaction not found"
	msgUploadFailed      = "Upload failed"
	msgExportCancelled   = "Export cancelled"
)

// TransactionLookup fetches canonical transactions by id.
type TransactionLookup interface {
	GetTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error)
}

// Exporter is a bulk.Executor writing the selected transactions to a
// bucket, one JSON Lines object per calendar month.
type Exporter struct {
	store  ObjectStore
	lookup TransactionLookup
	bucket string
	prefix string
	now    func() time.Time
}

// NewExporter creates an Exporter. Objects are written under
// prefix/<run timestamp>/<yyyy-mm>.jsonl.
func NewExporter(store ObjectStore, lookup TransactionLookup, bucket, prefix string) *Exporter {
	return &Exporter{
		store:  store,
		lookup: lookup,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// Confirm implements bulk.Executor. Ids the lookup does not know and ids
// whose month failed to upload are reported as failed. A cancellation
// before the first upload returns ctx.Err(); after it, the uploaded months
// stay successful and the remaining ones fail as cancelled.
func (e *Exporter) Confirm(ctx context.Context, ids []string) (bulk.Outcome, error) {
	log := logger.FromContext(ctx)

	txs, err := e.lookup.GetTransactions(ctx, ids)
	if err != nil {
		return bulk.Outcome{}, fmt.Errorf("Exporter.Confirm: %w", err)
	}

	failed := make(map[string]string)
	found := make(map[string]bool, len(txs))
	for _, tx := range txs {
		found[tx.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			failed[id] = msgNotFound
		}
	}

	run := e.now().UTC().Format("20060102T150405Z")
	batches := GroupByMonth(txs)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			if i == 0 {
				return bulk.Outcome{}, err
			}
			log.Info().Err(err).Int("months_left", len(batches)-i).Msg("export cancelled")
			for _, rest := range batches[i:] {
				for _, tx := range rest.Transactions {
					failed[tx.ID] = msgExportCancelled
				}
			}
			break
		}

		data, err := EncodeJSONLines(batch.Transactions)
		if err != nil {
			return bulk.Outcome{}, fmt.Errorf("Exporter.Confirm: %w", err)
		}
		object := path.Join(e.prefix, run, batch.Month+".jsonl")
		if err := e.store.WriteObject(ctx, e.bucket, object, jsonLinesContentType, data); err != nil {
			log.Warn().Err(err).Str("object", object).Msg("export upload failed")
			for _, tx := range batch.Transactions {
				failed[tx.ID] = msgUploadFailed
			}
			continue
		}
		log.Debug().Str("object", object).Int("transactions", len(batch.Transactions)).Msg("export uploaded")
	}

	out := bulk.Outcome{Success: []string{}, Failed: []string{}, Errors: map[string]string{}}
	for _, id := range ids {
		if msg, ok := failed[id]; ok {
			out.Failed = append(out.Failed, id)
			out.Errors[id] = msg
			continue
		}
		out.Success = append(out.Success, id)
	}
	return out, nil
}

// MonthBatch is the set of transactions exported into one object.
type MonthBatch struct {
	Month        string // yyyy-mm in UTC
	Transactions []domain.Transaction
}

// GroupByMonth buckets transactions by UTC month, months in ascending
// order and transactions in timestamp order within a month.
func GroupByMonth(txs []domain.Transaction) []MonthBatch {
	index := make(map[string]int)
	var batches []MonthBatch
	for _, tx := range txs {
		month := tx.Timestamp.UTC().Format("2006-01")
		i, ok := index[month]
		if !ok {
			i = len(batches)
			index[month] = i
			batches = append(batches, MonthBatch{Month: month})
		}
		batches[i].Transactions = append(batches[i].Transactions, tx)
	}

	slices.SortFunc(batches, func(a, b MonthBatch) int {
		switch {
		case a.Month < b.Month:
			return -1
		case a.Month > b.Month:
			return 1
		}
		return 0
	})
	for i := range batches {
		slices.SortStableFunc(batches[i].Transactions, func(a, b domain.Transaction) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	}
	return batches
}

// EncodeJSONLines writes one JSON object per line.
func EncodeJSONLines(txs []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, tx := range txs {
		if err := enc.Encode(tx); err != nil {
			return nil, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
		}
	}
	return buf.Bytes(), nil
}

var _ bulk.Executor = (*Exporter)(nil)
