package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// numericScale is the fractional precision of a BigQuery NUMERIC.
const numericScale = 9

type EnvelopeRow struct {
	EnvelopeID      string              `bigquery:"envelope_id"` // REQUIRED
	Name            string              `bigquery:"name"`        // REQUIRED
	EnvelopeType    bigquery.NullString `bigquery:"envelope_type"`
	GroupID         bigquery.NullString `bigquery:"group_id"`
	AllocatedAmount *big.Rat            `bigquery:"allocated_amount"` // REQUIRED NUMERIC
	SpentAmount     *big.Rat            `bigquery:"spent_amount"`     // NULLABLE NUMERIC

	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// ToDomain converts the row into a domain envelope.
func (row *EnvelopeRow) ToDomain() (domain.Envelope, error) {
	allocated, err := ratToDecimal(row.AllocatedAmount)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("envelope %s: allocated_amount: %w", row.EnvelopeID, err)
	}
	spent, err := ratToDecimal(row.SpentAmount)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("envelope %s: spent_amount: %w", row.EnvelopeID, err)
	}
	return domain.Envelope{
		ID:              row.EnvelopeID,
		Name:            row.Name,
		EnvelopeType:    row.EnvelopeType.StringVal,
		GroupID:         row.GroupID.StringVal,
		AllocatedAmount: allocated,
		SpentAmount:     spent,
	}, nil
}

// ratToDecimal converts a NUMERIC value. NULL becomes zero.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(numericScale))
}

// ListEnvelopes returns the envelopes of a group ordered by name. An empty
// groupID returns every envelope.
func (r *Repository) ListEnvelopes(ctx context.Context, groupID string) ([]domain.Envelope, error) {
	q := r.client.Query(`
		SELECT envelope_id, name, envelope_type, group_id, allocated_amount, spent_amount, updated_ts
		FROM ` + r.table(envelopesTable) + `
		WHERE (@group_id = '' OR group_id = @group_id)
		ORDER BY name, envelope_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "group_id", Value: groupID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListEnvelopes: query read: %w", err)
	}

	var envelopes []domain.Envelope
	for {
		var row EnvelopeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListEnvelopes: iter next: %w", err)
		}
		env, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListEnvelopes: %w", err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// GetEnvelope fetches one envelope by id.
func (r *Repository) GetEnvelope(ctx context.Context, envelopeID string) (*domain.Envelope, error) {
	q := r.client.Query(`
		SELECT envelope_id, name, envelope_type, group_id, allocated_amount, spent_amount, updated_ts
		FROM ` + r.table(envelopesTable) + `
		WHERE envelope_id = @envelope_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "envelope_id", Value: envelopeID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetEnvelope: query read: %w", err)
	}

	var row EnvelopeRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetEnvelope: envelope %s: %w", envelopeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetEnvelope: iter next: %w", err)
	}

	env, err := row.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("GetEnvelope: %w", err)
	}
	return &env, nil
}

// UpdateAllocation implements envelope.Updater with a DML UPDATE followed
// by a read of the stored row.
func (r *Repository) UpdateAllocation(ctx context.Context, envelopeID string, amount decimal.Decimal) (*domain.Envelope, error) {
	q := r.client.Query(`
		UPDATE ` + r.table(envelopesTable) + `
		SET allocated_amount = @amount,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE envelope_id = @envelope_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "amount", Value: amount.Rat()},
		{Name: "envelope_id", Value: envelopeID},
	}

	if err := runDML(ctx, q); err != nil {
		return nil, fmt.Errorf("UpdateAllocation: %w", err)
	}
	return r.GetEnvelope(ctx, envelopeID)
}

var _ envelope.Store = (*Repository)(nil)
