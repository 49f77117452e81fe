package domain

import (
	"github.com/shopspring/decimal"
)

// AccountCategory classifies an account as an asset or a liability.
type AccountCategory string

const (
	AccountCash           AccountCategory = "CASH"
	AccountChecking       AccountCategory = "CHECKING"
	AccountSavings        AccountCategory = "SAVINGS"
	AccountInvestment     AccountCategory = "INVESTMENT"
	AccountCrypto         AccountCategory = "CRYPTO"
	AccountRealEstate     AccountCategory = "REAL_ESTATE"
	AccountOtherAsset     AccountCategory = "OTHER_ASSET"
	AccountCreditCard     AccountCategory = "CREDIT_CARD"
	AccountLoan           AccountCategory = "LOAN"
	AccountMortgage       AccountCategory = "MORTGAGE"
	AccountOtherLiability AccountCategory = "OTHER_LIABILITY"
)

// IsLiability reports whether balances of this category are owed.
func (c AccountCategory) IsLiability() bool {
	switch c {
	case AccountCreditCard, AccountLoan, AccountMortgage, AccountOtherLiability:
		return true
	}
	return false
}

// IsAsset reports whether balances of this category are owned.
func (c AccountCategory) IsAsset() bool {
	switch c {
	case AccountCash, AccountChecking, AccountSavings, AccountInvestment,
		AccountCrypto, AccountRealEstate, AccountOtherAsset:
		return true
	}
	return false
}

// Account is the union of banking, crypto and manual accounts owned by the user.
// Liability balances are stored as positive magnitudes.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category AccountCategory `json:"category"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Source   Source          `json:"source"`
	IsActive bool            `json:"is_active"`
}
