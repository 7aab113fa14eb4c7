// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path variables, listing page parameters and the row edit form.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"importdesk/internal/backend"
	"importdesk/internal/preview"
)

// maxListingLimit caps the page size a client may ask for.
const maxListingLimit = 100

var errBadPathVar = errors.New("invalid path parameter")

// PageParams holds listing pagination parameters.
type PageParams struct {
	Page  int
	Limit int
}

// ParsePageParams reads page and limit from the query. Missing or invalid
// values fall back to page 1 and defaultLimit; limit is capped.
func ParsePageParams(query url.Values, defaultLimit int) PageParams {
	params := PageParams{Page: 1, Limit: defaultLimit}

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			params.Page = p
		}
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			params.Limit = l
		}
	}
	if params.Limit > maxListingLimit {
		params.Limit = maxListingLimit
	}
	return params
}

// PathInt reads a non-negative integer mux variable.
func PathInt(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w %s=%q", errBadPathVar, name, raw)
	}
	return n, nil
}

// ParseRowInput reads the row edit controls. Values are passed on as typed,
// minus control characters; trimming is left to the row controller.
func ParseRowInput(form url.Values) preview.Input {
	return preview.Input{
		Date:          stripControl(form.Get("date")),
		Vendor:        stripControl(form.Get("vendor")),
		Description:   stripControl(form.Get("description")),
		Category:      stripControl(form.Get("category")),
		PaymentMethod: stripControl(form.Get("payment_method")),
	}
}

// ParseRuleInput reads the add-rule form.
func ParseRuleInput(form url.Values) backend.RuleInput {
	caseSensitive, _ := strconv.ParseBool(form.Get("case_sensitive"))
	if form.Get("case_sensitive") == "on" {
		caseSensitive = true
	}
	return backend.RuleInput{
		Category:      sanitizeInput(form.Get("category")),
		Keyword:       sanitizeInput(form.Get("keyword")),
		CaseSensitive: caseSensitive,
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", strings.Join(methods, ", "))
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(stripControl(s))
}

// stripControl removes control characters except tab, newline and carriage return.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
