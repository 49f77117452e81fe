package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// formatMoney renders amount in the currency's own notation, rounded to its
// minor unit. Unknown codes fall back to two decimals and the raw code.
func formatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	fraction := int32(cur.Fraction)
	return cur.Formatter().Format(amount.Round(fraction).Shift(fraction).IntPart())
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
