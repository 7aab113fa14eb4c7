package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantPage  int
		wantLimit int
	}{
		{"defaults", url.Values{}, 1, 20},
		{"explicit", url.Values{"page": {"3"}, "limit": {"10"}}, 3, 10},
		{"garbage", url.Values{"page": {"x"}, "limit": {"-5"}}, 1, 20},
		{"zero page", url.Values{"page": {"0"}}, 1, 20},
		{"capped", url.Values{"limit": {"500"}}, 1, maxListingLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePageParams(tt.query, 20)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestPathInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/import/rows/4/edit", nil)
	req = mux.SetURLVars(req, map[string]string{"index": "4"})
	n, err := PathInt(req, "index")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	req = mux.SetURLVars(req, map[string]string{"index": "-1"})
	_, err = PathInt(req, "index")
	assert.Error(t, err, "negative index")
	_, err = PathInt(req, "missing")
	assert.Error(t, err, "missing var")
}

func TestParseRowInputKeepsRawText(t *testing.T) {
	form := url.Values{
		"date":           {" 15/03/2024"},
		"vendor":         {"  Acme\x00 "},
		"description":    {"Lunch\x07"},
		"category":       {"Food & Dining"},
		"payment_method": {""},
	}
	in := ParseRowInput(form)
	assert.Equal(t, " 15/03/2024", in.Date, "date must not be trimmed")
	assert.Equal(t, "  Acme ", in.Vendor)
	assert.Equal(t, "Lunch", in.Description)
	assert.Equal(t, "Food & Dining", in.Category)
	assert.Empty(t, in.PaymentMethod)
}

func TestParseRuleInput(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want bool
	}{
		{"checkbox on", url.Values{"case_sensitive": {"on"}}, true},
		{"bool true", url.Values{"case_sensitive": {"true"}}, true},
		{"absent", url.Values{}, false},
		{"junk", url.Values{"case_sensitive": {"maybe"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.form.Set("category", " Utilities ")
			tt.form.Set("keyword", "ENEL\x01")
			in := ParseRuleInput(tt.form)
			assert.Equal(t, tt.want, in.CaseSensitive)
			assert.Equal(t, "Utilities", in.Category)
			assert.Equal(t, "ENEL", in.Keyword)
		})
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, RequireMethod(req, http.MethodGet))

	resp := RequireMethod(req, http.MethodPost, http.MethodDelete)
	require.NotNil(t, resp)
	rr := httptest.NewRecorder()
	resp.Write(rr)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST, DELETE", rr.Header().Get("Allow"))
}

func TestStripControl(t *testing.T) {
	assert.Equal(t, "a\tb\ncd", stripControl("a\tb\nc\x1bd"))
	assert.Equal(t, "x", sanitizeInput("  x\x00  "))
}
