// Package fakeapi is an in-memory stand-in for the expense tracker REST API.
// It speaks the same routes and issues one-time CSRF tokens, so clients can be
// exercised end to end without the real server.
package fakeapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"importdesk/internal/backend"
	"importdesk/internal/core"
)

// Handler answers a request with a status code and a raw body.
type Handler func(body []byte) (status int, response string)

// API holds the fake server state. Fields may be changed between requests.
type API struct {
	mu sync.Mutex

	// Records is returned as the parse result when OnParse is nil.
	Records []map[string]any
	// Categories is served by /api/categories; nil serves a 500.
	Categories []string
	Expenses   []backend.Expense
	Rules      []backend.Rule

	// OnParse and OnConfirm override the default answers.
	OnParse   Handler
	OnConfirm Handler

	// ForbidNext rejects the next n mutating requests with 403 even when the
	// token is valid.
	ForbidNext int

	tokens    map[string]bool
	issued    int
	nextRule  int
	calls     map[string]int
	confirmed [][]byte
}

func New() *API {
	return &API{
		Categories: []string{"Food & Dining", "Transportation", "Shopping"},
		tokens:     make(map[string]bool),
		calls:      make(map[string]int),
		nextRule:   1,
	}
}

// Start serves the API on a local httptest server.
func Start() (*API, *httptest.Server) {
	api := New()
	return api, httptest.NewServer(api.Handler())
}

// Handler routes the API endpoints.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.count)
	r.HandleFunc("/api/csrf-token", a.token).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.csrf)
	api.HandleFunc("/import/csv", a.parse).Methods(http.MethodPost)
	api.HandleFunc("/import/confirm", a.confirm).Methods(http.MethodPost)
	api.HandleFunc("/categories", a.categories).Methods(http.MethodGet)
	api.HandleFunc("/expenses", a.expenses).Methods(http.MethodGet)
	api.HandleFunc("/categorization-rules", a.listRules).Methods(http.MethodGet)
	api.HandleFunc("/categorization-rules", a.createRule).Methods(http.MethodPost)
	api.HandleFunc("/categorization-rules/{id}", a.deleteRule).Methods(http.MethodDelete)
	return r
}

// Calls reports how many times "METHOD /path" was requested.
func (a *API) Calls(method, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method+" "+path]
}

// Confirmed returns the raw bodies accepted by /api/import/confirm.
func (a *API) Confirmed() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]byte, len(a.confirmed))
	copy(out, a.confirmed)
	return out
}

// Revoke invalidates every issued token.
func (a *API) Revoke() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = make(map[string]bool)
}

func (a *API) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.calls[r.Method+" "+r.URL.Path]++
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *API) csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		a.mu.Lock()
		token := r.Header.Get(backend.CSRFHeader)
		valid := a.tokens[token]
		delete(a.tokens, token)
		if a.ForbidNext > 0 {
			a.ForbidNext--
			valid = false
		}
		a.mu.Unlock()

		if !valid {
			http.Error(w, "Invalid or missing CSRF token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) token(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.issued++
	token := "tok-" + strconv.Itoa(a.issued)
	a.tokens[token] = true
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (a *API) parse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form: file too large or invalid", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("csv")
	if err != nil {
		http.Error(w, "No CSV file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	a.mu.Lock()
	onParse := a.OnParse
	records := a.Records
	a.mu.Unlock()

	if onParse != nil {
		status, body := onParse(content)
		writeRaw(w, status, body)
		return
	}

	if records == nil {
		records = recordsFromCSV(content)
	}
	if len(records) == 0 {
		http.Error(w, "No valid transactions found in CSV. Please check the file format.", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"expenses": records,
		"count":    len(records),
		"filename": header.Filename,
		"message":  fmt.Sprintf("Successfully parsed %d transactions", len(records)),
	})
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	onConfirm := a.OnConfirm
	a.mu.Unlock()

	if onConfirm != nil {
		status, resp := onConfirm(body)
		if status >= 200 && status < 300 {
			a.mu.Lock()
			a.confirmed = append(a.confirmed, body)
			a.mu.Unlock()
		}
		writeRaw(w, status, resp)
		return
	}

	var records []core.PreviewExpense
	if err := json.Unmarshal(body, &records); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	expenses := make([]backend.Expense, len(records))
	for i, rec := range records {
		date, _ := time.Parse(time.RFC3339Nano, rec.Date)
		expenses[i] = backend.Expense{
			Date:          date,
			Category:      rec.Category,
			Description:   rec.Description,
			Amount:        rec.Amount.Decimal(),
			Vendor:        rec.VendorText(),
			PaymentMethod: rec.PaymentMethodText(),
		}
	}

	total := decimal.Zero
	a.mu.Lock()
	a.confirmed = append(a.confirmed, body)
	now := time.Now().UTC()
	for i := range expenses {
		expenses[i].ID = len(a.Expenses) + 1
		expenses[i].CreatedAt = now
		expenses[i].UpdatedAt = now
		a.Expenses = append(a.Expenses, expenses[i])
		total = total.Add(expenses[i].Amount)
	}
	a.mu.Unlock()

	f, _ := total.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Successfully imported expenses to database",
		"count":    len(expenses),
		"total":    f,
		"expenses": expenses,
	})
}

func (a *API) categories(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	cats := a.Categories
	a.mu.Unlock()
	if cats == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (a *API) expenses(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	a.mu.Lock()
	all := make([]backend.Expense, len(a.Expenses))
	copy(all, a.Expenses)
	a.mu.Unlock()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })

	start := (page - 1) * limit
	end := start + limit
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	writeJSON(w, http.StatusOK, backend.ExpensePage{
		Expenses: all[start:end],
		Pagination: backend.Pagination{
			Total:       len(all),
			Page:        page,
			Limit:       limit,
			HasNext:     end < len(all),
			HasPrevious: page > 1,
		},
	})
}

func (a *API) listRules(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	rules := make([]backend.Rule, len(a.Rules))
	copy(rules, a.Rules)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, rules)
}

func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	var in backend.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Category) == "" {
		http.Error(w, "Category is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Keyword) == "" {
		http.Error(w, "Keyword is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	a.mu.Lock()
	rule := backend.Rule{
		ID:            a.nextRule,
		Category:      in.Category,
		Keyword:       in.Keyword,
		CaseSensitive: in.CaseSensitive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	a.nextRule++
	a.Rules = append(a.Rules, rule)
	a.mu.Unlock()

	writeJSON(w, http.StatusCreated, rule)
}

func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, rule := range a.Rules {
		if rule.ID == id {
			a.Rules = append(a.Rules[:i], a.Rules[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "Rule not found", http.StatusNotFound)
}

// recordsFromCSV reads "date,description,amount[,vendor]" rows after a header.
// Dates are YYYY-MM-DD. Rows that do not parse are skipped.
func recordsFromCSV(content []byte) []map[string]any {
	rows, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	if err != nil || len(rows) < 2 {
		return nil
	}

	var out []map[string]any
	for _, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			continue
		}
		rec := map[string]any{
			"date":           date.Format(time.RFC3339),
			"description":    strings.TrimSpace(row[1]),
			"amount":         amount,
			"category":       "Other",
			"vendor":         "",
			"payment_method": "CSV Import",
		}
		if len(row) > 3 {
			rec["vendor"] = strings.TrimSpace(row[3])
		}
		out = append(out, rec)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
