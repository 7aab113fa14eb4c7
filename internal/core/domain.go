package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultPaymentMethod labels rows whose payment method was left blank.
const DefaultPaymentMethod = "CSV Import"

// OtherCategory is always selectable, even when the backend does not list it.
const OtherCategory = "Other"

type (
	// PreviewExpense is a parsed transaction that has not been persisted yet.
	PreviewExpense struct {
		Date          string  // ISO-8601 instant
		Vendor        *string // nil is sent as JSON null
		Description   string
		Category      string
		Amount        Amount
		PaymentMethod string

		// extra keeps keys the backend sent that this package does not model
		// (id, created_at, ...) so they go back unchanged on confirm.
		extra map[string]json.RawMessage
	}

	// UploadResult summarizes a successful parse.
	UploadResult struct {
		Message string
		Count   int
		Total   Amount
	}

	// ConfirmResult summarizes a successful commit.
	ConfirmResult struct {
		Message string
		Count   int
		Total   Amount
	}
)

var (
	ErrDescriptionRequired = errors.New("Description is required")
	ErrUnknownCategory     = errors.New("Category must be one of the known categories")
)

var knownKeys = map[string]bool{
	"date":           true,
	"vendor":         true,
	"description":    true,
	"category":       true,
	"amount":         true,
	"payment_method": true,
}

// UnmarshalJSON decodes a backend expense record, keeping unknown keys.
func (e *PreviewExpense) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*e = PreviewExpense{}
	if err := decodeString(fields, "date", &e.Date); err != nil {
		return err
	}
	if err := decodeString(fields, "description", &e.Description); err != nil {
		return err
	}
	if err := decodeString(fields, "category", &e.Category); err != nil {
		return err
	}
	if err := decodeString(fields, "payment_method", &e.PaymentMethod); err != nil {
		return err
	}
	if raw, ok := fields["vendor"]; ok && !isNull(raw) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode vendor: %w", err)
		}
		e.Vendor = &v
	}
	if raw, ok := fields["amount"]; ok {
		e.Amount = Amount{raw: append(json.RawMessage(nil), raw...)}
	}

	for k, v := range fields {
		if knownKeys[k] {
			continue
		}
		if e.extra == nil {
			e.extra = make(map[string]json.RawMessage)
		}
		e.extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the record in the shape the backend accepts.
func (e PreviewExpense) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.extra)+len(knownKeys))
	for k, v := range e.extra {
		out[k] = v
	}

	var err error
	if out["date"], err = json.Marshal(e.Date); err != nil {
		return nil, err
	}
	if out["description"], err = json.Marshal(e.Description); err != nil {
		return nil, err
	}
	if out["category"], err = json.Marshal(e.Category); err != nil {
		return nil, err
	}
	if out["payment_method"], err = json.Marshal(e.PaymentMethod); err != nil {
		return nil, err
	}
	if out["vendor"], err = json.Marshal(e.Vendor); err != nil {
		return nil, err
	}
	if !e.Amount.IsMissing() {
		out["amount"] = e.Amount.raw
	}
	return json.Marshal(out)
}

// Clone returns a deep copy.
func (e PreviewExpense) Clone() PreviewExpense {
	c := e
	if e.Vendor != nil {
		v := *e.Vendor
		c.Vendor = &v
	}
	c.Amount = Amount{raw: append(json.RawMessage(nil), e.Amount.raw...)}
	if e.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(e.extra))
		for k, v := range e.extra {
			c.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// VendorText returns the vendor or "" when absent.
func (e PreviewExpense) VendorText() string {
	if e.Vendor == nil {
		return ""
	}
	return *e.Vendor
}

// PaymentMethodText returns the payment method, or the default label when blank.
func (e PreviewExpense) PaymentMethodText() string {
	if strings.TrimSpace(e.PaymentMethod) == "" {
		return DefaultPaymentMethod
	}
	return e.PaymentMethod
}

// Summary renders the confirm banner, e.g. "Imported - 3 transactions totaling $12.50".
func (r ConfirmResult) Summary() string {
	return fmt.Sprintf("%s - %d transactions totaling %s", r.Message, r.Count, FormatDollars(r.Total.Decimal()))
}

func decodeString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
