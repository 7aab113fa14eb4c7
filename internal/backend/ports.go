package backend

import (
	"context"
	"io"

	"importdesk/internal/core"
)

// Ports onto the expense tracker API.
type (
	Importer interface {
		// ParseCSV uploads a statement and returns the records the server parsed from it.
		ParseCSV(ctx context.Context, filename string, r io.Reader) (ParseResult, error)
		// ConfirmImport commits the staged records.
		ConfirmImport(ctx context.Context, records []core.PreviewExpense) (core.ConfirmResult, error)
	}

	CategoryLister interface {
		Categories(ctx context.Context) ([]string, error)
	}

	ExpenseLister interface {
		ListExpenses(ctx context.Context, page, limit int) (ExpensePage, error)
	}

	RuleManager interface {
		ListRules(ctx context.Context) ([]Rule, error)
		CreateRule(ctx context.Context, in RuleInput) (Rule, error)
		DeleteRule(ctx context.Context, id int) error
	}

	// Backend is everything the console needs from the API.
	Backend interface {
		Importer
		CategoryLister
		ExpenseLister
		RuleManager
	}
)
