package backend

import (
	"time"

	"github.com/shopspring/decimal"

	"importdesk/internal/core"
)

// ParseResult is the server's answer to an upload.
type ParseResult struct {
	core.UploadResult
	Filename string
	Expenses []core.PreviewExpense
}

// Expense is a persisted record as listed by the API.
type Expense struct {
	ID            int             `json:"id"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Vendor        string          `json:"vendor"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// ExpensePage is one page of the persisted expense listing.
type ExpensePage struct {
	Expenses   []Expense  `json:"expenses"`
	Pagination Pagination `json:"pagination"`
}

// From is the 1-based position of the first expense on the page, 0 when empty.
func (p ExpensePage) From() int {
	if len(p.Expenses) == 0 {
		return 0
	}
	return (p.Pagination.Page-1)*p.Pagination.Limit + 1
}

// To is the 1-based position of the last expense on the page.
func (p ExpensePage) To() int {
	if len(p.Expenses) == 0 {
		return 0
	}
	return p.From() + len(p.Expenses) - 1
}

// Rule assigns Category to descriptions containing Keyword.
type Rule struct {
	ID            int       `json:"id"`
	Category      string    `json:"category"`
	Keyword       string    `json:"keyword"`
	CaseSensitive bool      `json:"case_sensitive"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RuleInput struct {
	Category      string `json:"category"`
	Keyword       string `json:"keyword"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type parseResponse struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message"`
	Count    *int                  `json:"count"`
	Filename string                `json:"filename"`
	Expenses []core.PreviewExpense `json:"expenses"`
}

type confirmResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Count   *int        `json:"count"`
	Total   core.Amount `json:"total"`
}

type tokenResponse struct {
	Token string `json:"csrf_token"`
}
