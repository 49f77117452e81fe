package envelope

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel allocation writes.
const DefaultConcurrency = 8

// Updater persists a single envelope allocation.
type Updater interface {
	UpdateAllocation(ctx context.Context, envelopeID string, amount decimal.Decimal) (*domain.Envelope, error)
}

// Store is an Updater that can also read envelopes back.
type Store interface {
	Updater
	ListEnvelopes(ctx context.Context, groupID string) ([]domain.Envelope, error)
	GetEnvelope(ctx context.Context, envelopeID string) (*domain.Envelope, error)
}

// Failure is one envelope whose update was rejected.
type Failure struct {
	EnvelopeID string          `json:"envelope_id"`
	Amount     decimal.Decimal `json:"amount"`
	Err        error           `json:"-"`
	Message    string          `json:"error"`
}

// Result is the merged outcome of a group rebalance. Updates are not
// rolled back when some fail.
type Result struct {
	Plan    Plan              `json:"plan"`
	Updated []domain.Envelope `json:"updated"`
	Failed  []Failure         `json:"failed"`
}

// PartialFailure reports whether some but not all writes failed.
func (r Result) PartialFailure() bool {
	return len(r.Failed) > 0 && len(r.Updated) > 0
}

// Engine plans rebalances and fans the writes out to an Updater.
type Engine struct {
	updater     Updater
	concurrency int
	exactSum    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the number of in-flight updates.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithExactSum enables remainder assignment in planning.
func WithExactSum(enabled bool) Option {
	return func(e *Engine) { e.exactSum = enabled }
}

// NewEngine creates an Engine writing through u.
func NewEngine(u Updater, opts ...Option) *Engine {
	e := &Engine{updater: u, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RebalanceGroup plans the group and writes every changed allocation
// concurrently. Per-envelope failures land in Result.Failed; the returned
// error is reserved for planning errors.
func (e *Engine) RebalanceGroup(ctx context.Context, envelopes []domain.Envelope, requestedTotal decimal.Decimal) (Result, error) {
	log := logger.FromContext(ctx)

	plan, err := PlanGroup(envelopes, requestedTotal, ExactSum(e.exactSum))
	if err != nil {
		return Result{}, fmt.Errorf("RebalanceGroup: %w", err)
	}

	result := Result{Plan: plan, Updated: []domain.Envelope{}, Failed: []Failure{}}
	if plan.NoOp() {
		log.Debug().Str("requested_total", requestedTotal.String()).Msg("rebalance is a no-op")
		return result, nil
	}

	type outcome struct {
		env *domain.Envelope
		err error
	}
	outcomes := make([]outcome, len(plan.Allocations))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, a := range plan.Allocations {
		if !a.Changed() {
			continue
		}
		g.Go(func() error {
			env, err := e.updater.UpdateAllocation(ctx, a.EnvelopeID, a.New)
			outcomes[i] = outcome{env: env, err: err}
			// failures are collected below, not propagated
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range plan.Allocations {
		if !a.Changed() {
			continue
		}
		o := outcomes[i]
		switch {
		case o.err != nil:
			log.Warn().Err(o.err).Str("envelope_id", a.EnvelopeID).Msg("allocation update failed")
			result.Failed = append(result.Failed, Failure{
				EnvelopeID: a.EnvelopeID,
				Amount:     a.New,
				Err:        o.err,
				Message:    o.err.Error(),
			})
		case o.env != nil:
			result.Updated = append(result.Updated, *o.env)
		default:
			updated := envelopes[i]
			updated.AllocatedAmount = a.New
			result.Updated = append(result.Updated, updated)
		}
	}

	log.Info().
		Str("requested_total", requestedTotal.String()).
		Str("drift", plan.Drift().String()).
		Int("updated", len(result.Updated)).
		Int("failed", len(result.Failed)).
		Msg("envelope group rebalanced")

	return result, nil
}

// Allocate sets a single envelope's allocation to amount.
func (e *Engine) Allocate(ctx context.Context, env domain.Envelope, amount decimal.Decimal) (*domain.Envelope, error) {
	if amount.IsNegative() {
		return nil, &domain.ValidationError{RecordID: env.ID, Field: "amount", Reason: "must not be negative"}
	}
	updated, err := e.updater.UpdateAllocation(ctx, env.ID, amount.Round(Places))
	if err != nil {
		return nil, fmt.Errorf("Allocate: failed to update envelope %s: %w", env.ID, err)
	}
	if updated == nil {
		env.AllocatedAmount = amount.Round(Places)
		updated = &env
	}
	return updated, nil
}
