// Package envelope implements proportional rebalancing of budget envelope
// allocations and the concurrent fan-out that persists them.
package envelope

import (
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Places is the precision allocations are rounded to.
const Places = 2

// MsgNoEnvelopes is the message returned when a group has no envelopes.
const MsgNoEnvelopes = "No envelopes in this group"

// Allocation is the planned new allocation for one envelope.
type Allocation struct {
	EnvelopeID string          `json:"envelope_id"`
	Name       string          `json:"name"`
	Previous   decimal.Decimal `json:"previous"`
	New        decimal.Decimal `json:"new"`
	Clamped    bool            `json:"clamped,omitempty"`
}

// Changed reports whether the allocation needs to be written.
func (a Allocation) Changed() bool {
	return !a.Previous.Equal(a.New)
}

// Plan is the outcome of PlanGroup. Allocations follow the input order.
type Plan struct {
	RequestedTotal decimal.Decimal `json:"requested_total"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Delta          decimal.Decimal `json:"delta"`
	Allocations    []Allocation    `json:"allocations"`
}

// NoOp reports whether the requested total equals the current total.
func (p Plan) NoOp() bool {
	return p.Delta.IsZero()
}

// Sum is the total of the planned allocations.
func (p Plan) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range p.Allocations {
		sum = sum.Add(a.New)
	}
	return sum
}

// Drift is RequestedTotal minus Sum. It is non-zero when clamping or
// rounding kept the plan from hitting the requested total exactly.
func (p Plan) Drift() decimal.Decimal {
	if p.NoOp() {
		return decimal.Zero
	}
	return p.RequestedTotal.Sub(p.Sum())
}

// PlanOption tunes PlanGroup.
type PlanOption func(*planSettings)

type planSettings struct {
	exactSum bool
}

// ExactSum assigns any rounding remainder to the largest allocation so the
// plan sums to the requested total. Remainders caused by clamping are left
// alone.
func ExactSum(enabled bool) PlanOption {
	return func(s *planSettings) { s.exactSum = enabled }
}

// PlanGroup computes new allocations for every envelope in a group so that
// they sum to requestedTotal. Each envelope keeps its share of the current
// total; when nothing is allocated yet the total is split evenly.
func PlanGroup(envelopes []domain.Envelope, requestedTotal decimal.Decimal, opts ...PlanOption) (Plan, error) {
	var cfg planSettings
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(envelopes) == 0 {
		return Plan{}, domain.InvalidState(MsgNoEnvelopes)
	}
	if requestedTotal.IsNegative() {
		return Plan{}, &domain.ValidationError{Field: "requested_total", Reason: "must not be negative"}
	}

	total := decimal.Zero
	for _, env := range envelopes {
		total = total.Add(env.AllocatedAmount)
	}

	plan := Plan{
		RequestedTotal: requestedTotal,
		TotalAllocated: total,
		Delta:          requestedTotal.Sub(total),
		Allocations:    make([]Allocation, len(envelopes)),
	}

	for i, env := range envelopes {
		plan.Allocations[i] = Allocation{
			EnvelopeID: env.ID,
			Name:       env.Name,
			Previous:   env.AllocatedAmount,
			New:        env.AllocatedAmount,
		}
	}
	if plan.NoOp() {
		return plan, nil
	}

	even := total.IsZero()
	share := decimal.Zero
	if even {
		share = requestedTotal.Div(decimal.NewFromInt(int64(len(envelopes))))
	}

	clamped := false
	for i := range plan.Allocations {
		a := &plan.Allocations[i]
		var next decimal.Decimal
		if even {
			next = share
		} else {
			// delta * current / total, multiplied first to keep precision
			next = a.Previous.Add(plan.Delta.Mul(a.Previous).Div(total))
		}
		next = next.Round(Places)
		if next.IsNegative() {
			next = decimal.Zero
			a.Clamped = true
			clamped = true
		}
		a.New = next
	}

	if cfg.exactSum && !clamped {
		assignRemainder(&plan)
	}
	return plan, nil
}

// assignRemainder moves the rounding drift onto the largest allocation.
func assignRemainder(p *Plan) {
	drift := p.Drift()
	if drift.IsZero() {
		return
	}
	largest := 0
	for i, a := range p.Allocations {
		if a.New.GreaterThan(p.Allocations[largest].New) {
			largest = i
		}
	}
	adjusted := p.Allocations[largest].New.Add(drift)
	if adjusted.IsNegative() {
		return
	}
	p.Allocations[largest].New = adjusted
}
