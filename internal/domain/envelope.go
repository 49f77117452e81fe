package domain

import (
	"github.com/shopspring/decimal"
)

// Envelope is a budget bucket. Only AllocatedAmount is mutated by the
// allocation engine; SpentAmount is owned by whoever records spending.
type Envelope struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	EnvelopeType    string          `json:"envelope_type"`
	GroupID         string          `json:"group_id,omitempty"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	SpentAmount     decimal.Decimal `json:"spent_amount"`
}

// AvailableBalance is allocated minus spent. It goes negative when the
// envelope is over budget.
func (e Envelope) AvailableBalance() decimal.Decimal {
	return e.AllocatedAmount.Sub(e.SpentAmount)
}
