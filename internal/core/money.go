// Package core provides money parsing and handling utilities.
//
// Amounts travel between the browser, this service and the expense tracker
// backend as loosely typed JSON. Amount keeps the value exactly as received so a
// record can be committed byte-for-byte, and only interprets it when a total or
// a display string is needed.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a signed decimal as carried in JSON. The sign tells debit from credit.
type Amount struct {
	raw json.RawMessage
}

// NewAmount builds an Amount from a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{raw: json.RawMessage(d.String())}
}

// AmountFromJSON wraps a raw JSON value without interpreting it.
func AmountFromJSON(raw json.RawMessage) Amount {
	return Amount{raw: append(json.RawMessage(nil), raw...)}
}

// IsMissing reports whether the record carried no amount at all.
func (a Amount) IsMissing() bool {
	return len(a.raw) == 0
}

// Decimal interprets the amount. JSON numbers and numeric strings are accepted;
// anything else (null, "bad", objects, missing) counts as zero.
func (a Amount) Decimal() decimal.Decimal {
	raw := bytes.TrimSpace(a.raw)
	if len(raw) == 0 {
		return decimal.Zero
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		text = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MarshalJSON writes the raw value back, or null when missing.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.IsMissing() {
		return []byte("null"), nil
	}
	return a.raw, nil
}

// UnmarshalJSON keeps the raw value.
func (a *Amount) UnmarshalJSON(data []byte) error {
	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

// SumAmounts adds every amount, coercing non-numeric values to zero.
func SumAmounts(amounts ...Amount) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Decimal())
	}
	return total
}

// FormatDollars formats like "$12.34" or "-$12.34".
func FormatDollars(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
