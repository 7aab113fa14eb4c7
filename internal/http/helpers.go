package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"importdesk/internal/backend"
	"importdesk/internal/core"
	"importdesk/internal/preview"
	"importdesk/internal/session"
)

// SessionCookie names the cookie holding the import session id.
const SessionCookie = "importdesk_session"

// sessionFor returns the caller's session, issuing a cookie when a new one is made.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.Ensure(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			MaxAge:   int(s.cfg.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// backendFailure maps a backend error to a status code and user-facing text.
func backendFailure(err error, fallback string) (int, string) {
	if apiErr, ok := backend.AsAPIError(err); ok {
		if apiErr.Status == http.StatusNotFound {
			return http.StatusNotFound, apiErr.Message
		}
		return http.StatusBadGateway, apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, fallback
	}
	return http.StatusBadGateway, fallback
}

// isDateError reports whether err came from date validation.
func isDateError(err error) bool {
	return errors.Is(err, core.ErrDateFormat) ||
		errors.Is(err, core.ErrMonthRange) ||
		errors.Is(err, core.ErrDayRange) ||
		errors.Is(err, core.ErrInvalidDate)
}

type statusView struct {
	Class string
	Text  string
}

type rowView struct {
	preview.Row
	Categories []string
	Error      string
}

func (v rowView) Editing() bool { return v.Mode == preview.ModeEditing }

type previewView struct {
	Active    bool
	Filename  string
	Heading   string
	TotalLine string
	Rows      []rowView
	Status    *statusView
}

func newPreviewView(v session.View, categories []string) previewView {
	out := previewView{
		Active:    v.Active,
		Filename:  v.Filename,
		Heading:   v.Summary.Heading(),
		TotalLine: v.Summary.TotalLine(),
		Rows:      make([]rowView, len(v.Rows)),
	}
	for i, row := range v.Rows {
		out.Rows[i] = rowView{Row: row, Categories: categories}
	}
	return out
}

type expenseRow struct {
	Date          string
	Category      string
	Description   string
	Amount        string
	Negative      bool
	Vendor        string
	PaymentMethod string
}

type pageLink struct {
	Number   int
	Active   bool
	Ellipsis bool
}

type listingView struct {
	Rows     []expenseRow
	Info     string
	Pages    []pageLink
	Prev     int
	Next     int
	Limit    int
	Error    string
	HasPages bool
}

func buildListingView(page backend.ExpensePage) listingView {
	out := listingView{Limit: page.Pagination.Limit}
	for _, e := range page.Expenses {
		out.Rows = append(out.Rows, expenseRow{
			Date:          e.Date.Format("02/01/2006"),
			Category:      e.Category,
			Description:   e.Description,
			Amount:        core.FormatDollars(e.Amount),
			Negative:      e.Amount.IsNegative(),
			Vendor:        orDash(e.Vendor),
			PaymentMethod: orDash(e.PaymentMethod),
		})
	}

	p := page.Pagination
	if p.Total == 0 || p.Limit <= 0 {
		return out
	}
	out.HasPages = true
	out.Info = fmt.Sprintf("Showing %d to %d of %d expenses",
		min((p.Page-1)*p.Limit+1, p.Total), min(p.Page*p.Limit, p.Total), p.Total)
	if p.HasPrevious {
		out.Prev = p.Page - 1
	}
	if p.HasNext {
		out.Next = p.Page + 1
	}
	out.Pages = pageWindow(p.Page, (p.Total+p.Limit-1)/p.Limit)
	return out
}

// pageWindow lists pages current±2, plus the first and last with ellipses between.
func pageWindow(current, totalPages int) []pageLink {
	start := max(1, current-2)
	end := min(totalPages, current+2)

	var links []pageLink
	if start > 1 {
		links = append(links, pageLink{Number: 1})
		if start > 2 {
			links = append(links, pageLink{Ellipsis: true})
		}
	}
	for i := start; i <= end; i++ {
		links = append(links, pageLink{Number: i, Active: i == current})
	}
	if end < totalPages {
		if end < totalPages-1 {
			links = append(links, pageLink{Ellipsis: true})
		}
		links = append(links, pageLink{Number: totalPages})
	}
	return links
}

type rulesView struct {
	Rules      []backend.Rule
	Categories []string
	Error      string
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
