// Package preview holds the staged records of an upload and the per-row edit state
// laid over them.
//
// Neither Store nor Rows is safe for concurrent use; callers serialize access.
package preview

import (
	"strings"

	"github.com/shopspring/decimal"

	"importdesk/internal/core"
)

// Store is the ordered set of parsed records awaiting confirmation. Indices stay
// stable until the next Replace or Clear.
type Store struct {
	records []core.PreviewExpense
	active  bool
}

// Field mutates one attribute of a staged record.
type Field func(*core.PreviewExpense)

func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly parsed set of records.
func (s *Store) Replace(records []core.PreviewExpense) {
	s.records = make([]core.PreviewExpense, len(records))
	for i, r := range records {
		s.records[i] = r.Clone()
	}
	s.active = true
}

// Clear discards the staged records.
func (s *Store) Clear() {
	s.records = nil
	s.active = false
}

// Active reports whether a parse result is staged.
func (s *Store) Active() bool { return s.active }

func (s *Store) Len() int { return len(s.records) }

// Get returns a copy of the record at i.
func (s *Store) Get(i int) (core.PreviewExpense, bool) {
	if i < 0 || i >= len(s.records) {
		return core.PreviewExpense{}, false
	}
	return s.records[i].Clone(), true
}

// Update applies fields to the record at i in place. Other records are untouched.
func (s *Store) Update(i int, fields ...Field) bool {
	if i < 0 || i >= len(s.records) {
		return false
	}
	for _, f := range fields {
		f(&s.records[i])
	}
	return true
}

// Total sums every amount; non-numeric values count as zero.
func (s *Store) Total() decimal.Decimal {
	return core.Summarize(s.records).Total
}

// All returns a deep copy of the records in index order.
func (s *Store) All() []core.PreviewExpense {
	out := make([]core.PreviewExpense, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

func SetDate(iso string) Field {
	return func(e *core.PreviewExpense) { e.Date = iso }
}

// SetVendor trims v; an empty result clears the vendor.
func SetVendor(v string) Field {
	return func(e *core.PreviewExpense) {
		v = strings.TrimSpace(v)
		if v == "" {
			e.Vendor = nil
			return
		}
		e.Vendor = &v
	}
}

func SetDescription(d string) Field {
	return func(e *core.PreviewExpense) { e.Description = strings.TrimSpace(d) }
}

func SetCategory(c string) Field {
	return func(e *core.PreviewExpense) { e.Category = c }
}

// SetPaymentMethod trims p; an empty result falls back to the default label.
func SetPaymentMethod(p string) Field {
	return func(e *core.PreviewExpense) {
		p = strings.TrimSpace(p)
		if p == "" {
			p = core.DefaultPaymentMethod
		}
		e.PaymentMethod = p
	}
}
