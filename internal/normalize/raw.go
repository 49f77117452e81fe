package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// groupedAmount matches an amount using commas as thousands separators.
var groupedAmount = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Provider names accepted by DecodeMap and reported on canonical transactions.
const (
	ProviderBank   = "bank"
	ProviderCrypto = "crypto"
	ProviderManual = "manual"
)

// RawRecord is the closed set of provider-specific record shapes.
// Every implementation is handled by Normalize.
type RawRecord interface {
	provider() string
}

// RawMerchant is the merchant block bank aggregators attach to a record.
type RawMerchant struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// BankRecord is a transaction as delivered by a banking aggregator.
// Date is an RFC3339 timestamp or a plain YYYY-MM-DD date.
type BankRecord struct {
	ID             string       `json:"id"`
	Institution    string       `json:"institution"`
	Amount         RawAmount    `json:"amount"`
	Date           string       `json:"date"`
	Type           string       `json:"type"`
	Status         string       `json:"status"`
	Description    string       `json:"description"`
	Category       *string      `json:"category"`
	Merchant       *RawMerchant `json:"merchant"`
	Currency       string       `json:"currency"`
	AccountID      string       `json:"account_id"`
	AccountName    string       `json:"account_name"`
	Pending        bool         `json:"pending"`
	RunningBalance *RawAmount   `json:"running_balance"`
}

func (BankRecord) provider() string { return ProviderBank }

// CryptoRecord is an on-chain transfer reported by a wallet indexer.
// Either Timestamp (unix seconds) or Time (RFC3339) must be set.
type CryptoRecord struct {
	ID            string    `json:"id"`
	Hash          string    `json:"hash"`
	Network       string    `json:"network"`
	Amount        RawAmount `json:"amount"`
	Asset         string    `json:"asset"`
	Timestamp     int64     `json:"timestamp"`
	Time          string    `json:"time"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	Category      *string   `json:"category"`
	WalletAddress string    `json:"wallet_address"`
	WalletName    string    `json:"wallet_name"`
}

func (CryptoRecord) provider() string { return ProviderCrypto }

// ManualRecord is an entry typed in by the user.
type ManualRecord struct {
	ID          string    `json:"id"`
	Amount      RawAmount `json:"amount"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Category    *string   `json:"category"`
	Merchant    string    `json:"merchant"`
	Currency    string    `json:"currency"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
}

func (ManualRecord) provider() string { return ProviderManual }

// RawAmount keeps the textual form of an amount that may arrive as a JSON
// string or a JSON number. Parsing is deferred to Decimal so that bad input
// surfaces as a validation error instead of a decode failure.
type RawAmount struct {
	text string
	set  bool
}

// AmountFromString wraps a textual amount such as "-12.30".
func AmountFromString(s string) RawAmount {
	return RawAmount{text: s, set: true}
}

// AmountFromFloat wraps a numeric amount using its shortest exact representation.
func AmountFromFloat(f float64) RawAmount {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return RawAmount{text: strconv.FormatFloat(f, 'g', -1, 64), set: true}
	}
	return RawAmount{text: strconv.FormatFloat(f, 'f', -1, 64), set: true}
}

// AmountFromInt wraps an integral amount.
func AmountFromInt(i int64) RawAmount {
	return RawAmount{text: strconv.FormatInt(i, 10), set: true}
}

// IsSet reports whether any amount was supplied.
func (a RawAmount) IsSet() bool { return a.set }

// String returns the raw text.
func (a RawAmount) String() string { return a.text }

// Decimal parses the amount exactly. Surrounding whitespace and commas
// grouping the integer part by thousands are tolerated; a comma anywhere
// else, such as a decimal comma, fails like any other non-number.
func (a RawAmount) Decimal() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, fmt.Errorf("missing")
	}
	s := strings.TrimSpace(a.text)
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return decimal.Zero, fmt.Errorf("%q is not a number", a.text)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", a.text)
	}
	return d, nil
}

// UnmarshalJSON accepts a string, a number or null.
func (a *RawAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = RawAmount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountFromString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = AmountFromString(n.String())
	return nil
}

// MarshalJSON writes the amount back as a JSON string, preserving its text.
func (a RawAmount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.text)
}
