package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the canonical kind of a financial movement.
// The direction of money (in or out) is derived from the type only.
type TransactionType string

const (
	TypeDeposit     TransactionType = "DEPOSIT"
	TypeWithdrawal  TransactionType = "WITHDRAWAL"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
	TypePayment     TransactionType = "PAYMENT"
	TypePurchase    TransactionType = "PURCHASE"
	TypeFee         TransactionType = "FEE"
	TypeInterest    TransactionType = "INTEREST"
	TypeRefund      TransactionType = "REFUND"
	TypeReward      TransactionType = "REWARD"
)

var transactionTypes = map[TransactionType]bool{
	TypeDeposit:     true,
	TypeWithdrawal:  false,
	TypeTransferIn:  true,
	TypeTransferOut: false,
	TypePayment:     false,
	TypePurchase:    false,
	TypeFee:         false,
	TypeInterest:    true,
	TypeRefund:      true,
	TypeReward:      true,
}

// ParseTransactionType maps a provider type string onto the canonical enum.
// Matching is case-insensitive and treats '-' and ' ' like '_'.
func ParseTransactionType(s string) (TransactionType, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	t := TransactionType(norm)
	if _, ok := transactionTypes[t]; !ok {
		return "", false
	}
	return t, true
}

// IsInflow reports whether money enters the account for this type.
func (t TransactionType) IsInflow() bool {
	return transactionTypes[t]
}

// IsOutflow reports whether money leaves the account for this type.
func (t TransactionType) IsOutflow() bool {
	inflow, known := transactionTypes[t]
	return known && !inflow
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// ParseTransactionStatus maps a provider status string onto the canonical enum.
// A few common provider spellings are accepted as aliases.
func ParseTransactionStatus(s string) (TransactionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending, true
	case "COMPLETED", "COMPLETE", "POSTED", "SETTLED", "CONFIRMED", "SUCCESS":
		return StatusCompleted, true
	case "FAILED", "FAILURE", "REJECTED":
		return StatusFailed, true
	case "CANCELLED", "CANCELED", "VOID", "VOIDED":
		return StatusCancelled, true
	}
	return "", false
}

// Source identifies the family of collaborator that produced a record.
type Source string

const (
	SourceBank   Source = "bank"
	SourceCrypto Source = "crypto"
	SourceManual Source = "manual"
)

// Merchant is the counterparty information attached by bank providers.
type Merchant struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Transaction is the canonical, source-agnostic representation of one
// financial movement. Amount is always a non-negative magnitude.
type Transaction struct {
	ID             string            `json:"id"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Category       *string           `json:"category,omitempty"`
	Merchant       *Merchant         `json:"merchant,omitempty"`
	AccountID      string            `json:"account_id,omitempty"`
	AccountName    string            `json:"account_name,omitempty"`
	Hash           string            `json:"hash,omitempty"`
	Source         Source            `json:"source"`
	Provider       string            `json:"provider,omitempty"`
	Pending        bool              `json:"pending"`
	RunningBalance *decimal.Decimal  `json:"running_balance,omitempty"`
}

// SignedAmount returns the amount with the sign implied by the type.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type.IsOutflow() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CategoryOr returns the category or fallback when none is set.
func (t Transaction) CategoryOr(fallback string) string {
	if t.Category == nil || *t.Category == "" {
		return fallback
	}
	return *t.Category
}
