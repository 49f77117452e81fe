// Package normalize maps provider-specific raw transaction records onto the
// canonical domain.Transaction. Normalization is pure: the same record always
// yields the same transaction or the same validation error.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultDescription is used when a record carries no description or merchant.
	DefaultDescription = "Transaction"

	// DefaultCurrency applies to fiat records that omit a currency.
	DefaultCurrency = "USD"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts one raw record into a canonical transaction.
// Any malformed amount, id or timestamp yields a *domain.ValidationError;
// the record is never coerced to a zero amount.
func Normalize(raw RawRecord) (domain.Transaction, error) {
	switch r := raw.(type) {
	case BankRecord:
		return normalizeBank(r)
	case *BankRecord:
		if r != nil {
			return normalizeBank(*r)
		}
	case CryptoRecord:
		return normalizeCrypto(r)
	case *CryptoRecord:
		if r != nil {
			return normalizeCrypto(*r)
		}
	case ManualRecord:
		return normalizeManual(r)
	case *ManualRecord:
		if r != nil {
			return normalizeManual(*r)
		}
	case nil:
	default:
		return domain.Transaction{}, &domain.ValidationError{Field: "record", Reason: fmt.Sprintf("unsupported record type %T", raw)}
	}
	return domain.Transaction{}, &domain.ValidationError{Field: "record", Reason: "nil record"}
}

// ProviderOf returns the provider family of a record, or "" for nil records.
func ProviderOf(raw RawRecord) string {
	switch r := raw.(type) {
	case *BankRecord:
		if r == nil {
			return ""
		}
	case *CryptoRecord:
		if r == nil {
			return ""
		}
	case *ManualRecord:
		if r == nil {
			return ""
		}
	case nil:
		return ""
	}
	return raw.provider()
}

func normalizeBank(r BankRecord) (domain.Transaction, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return domain.Transaction{}, &domain.ValidationError{Field: "id", Reason: "missing"}
	}
	ts, err := parseTimestamp(r.Date)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "timestamp", Reason: err.Error()}
	}
	signed, err := r.Amount.Decimal()
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "amount", Reason: err.Error()}
	}
	typ, err := deriveType(r.Type, signed)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "type", Reason: err.Error()}
	}
	status, err := deriveStatus(r.Status, r.Pending)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "status", Reason: err.Error()}
	}
	currency, err := fiatCurrency(r.Currency)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "currency", Reason: err.Error()}
	}

	var merchant *domain.Merchant
	if r.Merchant != nil && (r.Merchant.Name != "" || r.Merchant.DisplayName != "") {
		merchant = &domain.Merchant{
			Name:        strings.TrimSpace(r.Merchant.Name),
			DisplayName: strings.TrimSpace(r.Merchant.DisplayName),
		}
	}

	var running *decimal.Decimal
	if r.RunningBalance != nil && r.RunningBalance.IsSet() {
		bal, err := r.RunningBalance.Decimal()
		if err != nil {
			return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "running_balance", Reason: err.Error()}
		}
		running = &bal
	}

	return domain.Transaction{
		ID:             id,
		Type:           typ,
		Status:         status,
		Timestamp:      ts,
		Amount:         signed.Abs(),
		Currency:       currency,
		Description:    describe(r.Description, merchant),
		Category:       cleanCategory(r.Category),
		Merchant:       merchant,
		AccountID:      r.AccountID,
		AccountName:    r.AccountName,
		Source:         domain.SourceBank,
		Provider:       providerName(ProviderBank, r.Institution),
		Pending:        status == domain.StatusPending,
		RunningBalance: running,
	}, nil
}

func normalizeCrypto(r CryptoRecord) (domain.Transaction, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = strings.TrimSpace(r.Hash)
	}
	if id == "" {
		return domain.Transaction{}, &domain.ValidationError{Field: "id", Reason: "missing id and hash"}
	}

	var ts time.Time
	switch {
	case r.Timestamp > 0:
		ts = time.Unix(r.Timestamp, 0).UTC()
	case r.Time != "":
		parsed, err := parseTimestamp(r.Time)
		if err != nil {
			return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "timestamp", Reason: err.Error()}
		}
		ts = parsed
	default:
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "timestamp", Reason: "missing"}
	}

	signed, err := r.Amount.Decimal()
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "amount", Reason: err.Error()}
	}
	typ, err := deriveType(r.Type, signed)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "type", Reason: err.Error()}
	}
	status, err := deriveStatus(r.Status, false)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "status", Reason: err.Error()}
	}
	asset := strings.ToUpper(strings.TrimSpace(r.Asset))
	if asset == "" {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "asset", Reason: "missing"}
	}

	accountName := r.WalletName
	if accountName == "" {
		accountName = r.WalletAddress
	}

	return domain.Transaction{
		ID:          id,
		Type:        typ,
		Status:      status,
		Timestamp:   ts,
		Amount:      signed.Abs(),
		Currency:    asset,
		Description: describe(r.Description, nil),
		Category:    cleanCategory(r.Category),
		AccountID:   r.WalletAddress,
		AccountName: accountName,
		Hash:        r.Hash,
		Source:      domain.SourceCrypto,
		Provider:    providerName(ProviderCrypto, r.Network),
		Pending:     status == domain.StatusPending,
	}, nil
}

func normalizeManual(r ManualRecord) (domain.Transaction, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return domain.Transaction{}, &domain.ValidationError{Field: "id", Reason: "missing"}
	}
	ts, err := parseTimestamp(r.Date)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "timestamp", Reason: err.Error()}
	}
	signed, err := r.Amount.Decimal()
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "amount", Reason: err.Error()}
	}
	typ, err := deriveType(r.Type, signed)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "type", Reason: err.Error()}
	}
	currency, err := fiatCurrency(r.Currency)
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{RecordID: id, Field: "currency", Reason: err.Error()}
	}

	var merchant *domain.Merchant
	if name := strings.TrimSpace(r.Merchant); name != "" {
		merchant = &domain.Merchant{Name: name}
	}

	return domain.Transaction{
		ID:          id,
		Type:        typ,
		Status:      domain.StatusCompleted,
		Timestamp:   ts,
		Amount:      signed.Abs(),
		Currency:    currency,
		Description: describe(r.Description, merchant),
		Category:    cleanCategory(r.Category),
		Merchant:    merchant,
		AccountID:   r.AccountID,
		AccountName: r.AccountName,
		Source:      domain.SourceManual,
		Provider:    ProviderManual,
	}, nil
}

// deriveType prefers the explicit provider type and otherwise uses the sign
// of the raw amount. Zero amounts without a type count as deposits.
func deriveType(explicit string, signed decimal.Decimal) (domain.TransactionType, error) {
	if strings.TrimSpace(explicit) != "" {
		t, ok := domain.ParseTransactionType(explicit)
		if !ok {
			return "", fmt.Errorf("unknown transaction type %q", explicit)
		}
		return t, nil
	}
	if signed.IsNegative() {
		return domain.TypeWithdrawal, nil
	}
	return domain.TypeDeposit, nil
}

func deriveStatus(explicit string, pending bool) (domain.TransactionStatus, error) {
	if strings.TrimSpace(explicit) != "" {
		s, ok := domain.ParseTransactionStatus(explicit)
		if !ok {
			return "", fmt.Errorf("unknown status %q", explicit)
		}
		return s, nil
	}
	if pending {
		return domain.StatusPending, nil
	}
	return domain.StatusCompleted, nil
}

// describe walks the fallback chain: description, merchant display name,
// merchant name, then DefaultDescription.
func describe(description string, merchant *domain.Merchant) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	if merchant != nil {
		if merchant.DisplayName != "" {
			return merchant.DisplayName
		}
		if merchant.Name != "" {
			return merchant.Name
		}
	}
	return DefaultDescription
}

func fiatCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	if money.GetCurrency(code) == nil {
		return "", fmt.Errorf("unknown currency code %q", code)
	}
	return code, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func cleanCategory(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.TrimSpace(*c)
	if v == "" {
		return nil
	}
	return &v
}

func providerName(family, detail string) string {
	detail = strings.ToLower(strings.TrimSpace(detail))
	if detail == "" {
		return family
	}
	return family + ":" + detail
}
