package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PreviewSummary is the header line set shown above a staged preview.
type PreviewSummary struct {
	Count int
	Total decimal.Decimal
}

// Summarize totals a slice of staged records.
func Summarize(records []PreviewExpense) PreviewSummary {
	amounts := make([]Amount, len(records))
	for i, r := range records {
		amounts[i] = r.Amount
	}
	return PreviewSummary{Count: len(records), Total: SumAmounts(amounts...)}
}

// Heading is e.g. "Found 3 transactions".
func (s PreviewSummary) Heading() string {
	return fmt.Sprintf("Found %d transactions", s.Count)
}

// TotalLine is e.g. "Total Amount: $12.34".
func (s PreviewSummary) TotalLine() string {
	return "Total Amount: " + FormatDollars(s.Total)
}
