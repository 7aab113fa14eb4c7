package http

import (
	"net/http"
	"strings"

	"importdesk/internal/backend"
	applog "importdesk/internal/log"
)

// handleExpenses renders one page of persisted expenses.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	params := ParsePageParams(r.URL.Query(), s.cfg.ListingPageSize)
	s.render(r.Context(), NewHTMXResponse(), "expenses", s.loadListing(r.Context(), params)).Write(w)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.writeRules(w, r, NewHTMXResponse(), "")
}

// handleAddRule creates a categorization rule. Both fields are required.
func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	in := ParseRuleInput(r.PostForm)
	if in.Category == "" || strings.TrimSpace(in.Keyword) == "" {
		s.writeRules(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity),
			"Please fill in both category and keyword fields")
		return
	}

	rule, err := s.rules.CreateRule(ctx, in)
	applog.FromContext(ctx).Operation(ctx, applog.OpCreate, err, applog.NewFields())
	if err != nil {
		status, msg := backendFailure(err, backend.FallbackRequest)
		s.writeRules(w, r, NewHTMXResponse().Status(status), "Error adding rule: "+msg)
		return
	}

	s.categories.Invalidate()
	b := NewHTMXResponse().
		TriggerRulesChanged().
		TriggerSuccessNotification("Rule added for keyword " + rule.Keyword)
	s.writeRules(w, r, b, "")
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := PathInt(r, "id")
	if err != nil {
		BadRequestError("Invalid rule ID").Write(w)
		return
	}

	err = s.rules.DeleteRule(ctx, id)
	applog.FromContext(ctx).Operation(ctx, applog.OpDelete, err, applog.NewFields())
	if err != nil {
		status, msg := backendFailure(err, backend.FallbackRequest)
		s.writeRules(w, r, NewHTMXResponse().Status(status), "Error deleting rule: "+msg)
		return
	}

	s.categories.Invalidate()
	s.writeRules(w, r, NewHTMXResponse().TriggerRulesChanged(), "")
}

// writeRules renders the rules panel with an optional error line.
func (s *Server) writeRules(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, errMsg string) {
	ctx := r.Context()
	view := s.loadRules(ctx)
	view.Categories = s.categories.Resolve(ctx)
	if errMsg != "" {
		view.Error = errMsg
	}
	s.render(ctx, b, "rules", view).Write(w)
}
