package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// RawSource lists raw provider records. The BigQuery repository is the
// production implementation.
type RawSource interface {
	// ListRawTransactions returns the records ingested at or after since,
	// plus one error per row that could not be decoded.
	ListRawTransactions(ctx context.Context, since time.Time) ([]RawRecord, []error, error)
}

// StaticSource serves a fixed set of records, typically decoded from a
// file. since is ignored.
type StaticSource []RawRecord

// ListRawTransactions implements RawSource.
func (s StaticSource) ListRawTransactions(ctx context.Context, since time.Time) ([]RawRecord, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	out := make([]RawRecord, len(s))
	copy(out, s)
	return out, nil, nil
}

// DecodeJSON decodes a JSON array of provider payloads. A payload that is
// not an object fails the whole document; payloads with a bad shape are
// reported individually. Numbers are kept as json.Number so amounts never
// pass through float64.
func DecodeJSON(data []byte) ([]RawRecord, []error, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []map[string]interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, nil, fmt.Errorf("DecodeJSON: %w", err)
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("DecodeJSON: unexpected data after the array")
	}
	records, errs := DecodeAll(items)
	return records, errs, nil
}

// Load fetches raw records from src and normalizes them. Undecodable rows
// and invalid records are logged and counted in Dropped; only a failure of
// the source itself is returned as an error.
func Load(ctx context.Context, src RawSource, since time.Time) (Report, error) {
	raws, decodeErrs, err := src.ListRawTransactions(ctx, since)
	if err != nil {
		return Report{}, fmt.Errorf("Load: %w", err)
	}

	log := logger.FromContext(ctx)
	for _, e := range decodeErrs {
		log.Warn().Err(e).Msg("Skipping undecodable raw record")
	}

	report := NormalizeAll(ctx, raws)
	if len(decodeErrs) > 0 {
		report.Dropped = append(decodeErrs, report.Dropped...)
	}
	return report, nil
}

// Transactions is a convenience wrapper returning only the canonical
// transactions from Load.
func Transactions(ctx context.Context, src RawSource) ([]domain.Transaction, error) {
	report, err := Load(ctx, src, time.Time{})
	if err != nil {
		return nil, err
	}
	return report.Transactions, nil
}
