package normalize

import (
	"context"
	"errors"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// Report is the result of normalizing a batch of raw records.
type Report struct {
	Transactions []domain.Transaction
	// Dropped holds one error per rejected record, in input order. Records
	// rejected by Normalize carry a *domain.ValidationError.
	Dropped []error
}

// NormalizeAll normalizes every record, dropping and logging the invalid ones.
// Input order is preserved for the records that survive.
func NormalizeAll(ctx context.Context, raws []RawRecord) Report {
	log := logger.FromContext(ctx)
	report := Report{Transactions: make([]domain.Transaction, 0, len(raws))}

	for i, raw := range raws {
		tx, err := Normalize(raw)
		if err != nil {
			ev := log.Warn().Err(err).Int("index", i)
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ev = ev.Str("record_id", ve.RecordID).Str("field", ve.Field)
			}
			if provider := ProviderOf(raw); provider != "" {
				ev = ev.Str("provider", provider)
			}
			ev.Msg("Dropping invalid transaction record")
			report.Dropped = append(report.Dropped, err)
			continue
		}
		report.Transactions = append(report.Transactions, tx)
	}

	if len(report.Dropped) > 0 {
		log.Info().
			Int("accepted", len(report.Transactions)).
			Int("dropped", len(report.Dropped)).
			Msg("Normalized transaction batch")
	}
	return report
}
