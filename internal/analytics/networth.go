package analytics

import (
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// NetWorth summarises account balances. Liabilities are reported as a
// positive magnitude regardless of how the provider signs them.
type NetWorth struct {
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalNetWorth    decimal.Decimal `json:"total_net_worth"`
}

// Totals computes net worth over the active accounts.
func Totals(accounts []domain.Account) NetWorth {
	nw := NetWorth{
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
	}
	for _, acc := range accounts {
		if !acc.IsActive {
			continue
		}
		switch {
		case acc.Category.IsLiability():
			nw.TotalLiabilities = nw.TotalLiabilities.Add(acc.Balance.Abs())
		case acc.Category.IsAsset():
			nw.TotalAssets = nw.TotalAssets.Add(acc.Balance)
		}
	}
	nw.TotalNetWorth = nw.TotalAssets.Sub(nw.TotalLiabilities)
	return nw
}
