package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"importdesk/internal/backend"
	applog "importdesk/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.probe != nil {
		if _, err := s.probe.Categories(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
	}

	checks["sessions"] = map[string]interface{}{"active": s.sessions.Len()}
	checks["cache"] = map[string]interface{}{"listing_entries": s.listingCache.Size()}
	checks["rate_limiter"] = map[string]interface{}{"active_clients": s.rateLimiter.ActiveClients()}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleIndex renders the full console. Categories, the first listing page and
// the rules are fetched concurrently; a failing panel renders its own error.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)

	var (
		categories []string
		listing    listingView
		rules      rulesView
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		categories = sess.Categories(gctx)
		return nil
	})
	g.Go(func() error {
		listing = s.loadListing(gctx, PageParams{Page: 1, Limit: s.cfg.ListingPageSize})
		return nil
	})
	g.Go(func() error {
		rules = s.loadRules(gctx)
		return nil
	})
	_ = g.Wait()
	rules.Categories = categories

	data := struct {
		Preview previewView
		Listing listingView
		Rules   rulesView
	}{
		Preview: newPreviewView(sess.View(), categories),
		Listing: listing,
		Rules:   rules,
	}
	s.render(ctx, NewHTMXResponse(), "index.html", data).Write(w)
}

// loadListing returns one listing page, served from cache when possible.
func (s *Server) loadListing(ctx context.Context, params PageParams) listingView {
	key := fmt.Sprintf("expenses:%d:%d", params.Page, params.Limit)
	if page, ok := s.listingCache.Get(key); ok {
		s.logger.DebugContext(ctx, "Listing cache hit", applog.FieldPage, params.Page)
		return buildListingView(page)
	}

	if s.expenses == nil {
		return listingView{Limit: params.Limit}
	}
	page, err := s.expenses.ListExpenses(ctx, params.Page, params.Limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "List expenses error", applog.FieldError, err, applog.FieldPage, params.Page)
		_, msg := backendFailure(err, backend.FallbackRequest)
		return listingView{Limit: params.Limit, Error: "Error loading expenses: " + msg}
	}

	s.listingCache.Set(key, page)
	return buildListingView(page)
}

// invalidateListing drops every cached listing page.
func (s *Server) invalidateListing() {
	s.listingCache.DeletePrefix("expenses:")
}

func (s *Server) loadRules(ctx context.Context) rulesView {
	if s.rules == nil {
		return rulesView{}
	}
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "List rules error", applog.FieldError, err)
		_, msg := backendFailure(err, backend.FallbackRequest)
		return rulesView{Error: "Error loading rules: " + msg}
	}
	return rulesView{Rules: rules}
}
