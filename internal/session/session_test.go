package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"importdesk/internal/backend"
	"importdesk/internal/backend/fakeapi"
	"importdesk/internal/core"
	"importdesk/internal/preview"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []core.ConfirmResult
	err     error
}

func (n *recordingNotifier) NotifyConfirmed(_ context.Context, r core.ConfirmResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	return n.err
}

type fixture struct {
	api      *fakeapi.API
	client   *backend.Client
	session  *Session
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api, srv := fakeapi.Start()
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	api.Records = []map[string]any{
		{"date": "2024-03-01T00:00:00Z", "description": "Coffee", "category": "Food & Dining", "amount": -4.5, "vendor": "Cafe", "payment_method": "Card"},
		{"date": "2024-03-02T00:00:00Z", "description": "Train", "category": "Transportation", "amount": -20, "vendor": nil, "payment_method": "CSV Import"},
		{"date": "2024-03-03T00:00:00Z", "description": "Refund", "category": "Other", "amount": "bad", "vendor": "", "payment_method": ""},
	}

	notifier := &recordingNotifier{}
	s := New("test-session", client, Options{
		Location:   time.UTC,
		Categories: NewCategorySource(client, time.Minute, []string{"Food & Dining"}, nil),
		Notifier:   notifier,
		ResetDelay: 2 * time.Second,
	})
	return &fixture{api: api, client: client, session: s, notifier: notifier}
}

func (f *fixture) upload(t *testing.T) core.UploadResult {
	t.Helper()
	res, err := f.session.Upload(context.Background(), "march.csv", strings.NewReader("csv"))
	require.NoError(t, err)
	return res
}

func TestUploadStagesRecords(t *testing.T) {
	f := newFixture(t)
	res := f.upload(t)

	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "Successfully parsed 3 transactions", res.Message)
	assert.True(t, res.Total.Decimal().Equal(decimal.RequireFromString("-24.5")))

	view := f.session.View()
	assert.True(t, view.Active)
	assert.Equal(t, "march.csv", view.Filename)
	assert.Equal(t, "Found 3 transactions", view.Summary.Heading())
	assert.Equal(t, "Total Amount: -$24.50", view.Summary.TotalLine())
	require.Len(t, view.Rows, 3)
	for _, row := range view.Rows {
		assert.Equal(t, preview.ModeDisplay, row.Mode)
	}
}

func TestUploadWithoutFileMakesNoCall(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Upload(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.EqualError(t, err, "Please select a CSV file")
	assert.Equal(t, 0, f.api.Calls(http.MethodPost, "/api/import/csv"))
}

func TestUploadFailureKeepsPreview(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	before := f.session.Records()

	f.api.OnParse = func([]byte) (int, string) {
		return http.StatusBadRequest, `{"error":"missing required column: AMOUNT"}`
	}
	_, err := f.session.Upload(context.Background(), "bad.csv", strings.NewReader("x"))
	require.Error(t, err)
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "missing required column: AMOUNT", apiErr.Message)

	assert.Equal(t, before, f.session.Records())
	assert.Equal(t, "march.csv", f.session.View().Filename)
}

func TestConfirmBlockedByPendingEdits(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	before := f.session.Records()

	require.NoError(t, f.session.EditRow(1))
	_, err := f.session.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrPendingEdits)
	assert.EqualError(t, err, "Please save or cancel all pending edits before confirming the import.")

	assert.Equal(t, 0, f.api.Calls(http.MethodPost, "/api/import/confirm"))
	assert.Equal(t, before, f.session.Records())
	assert.True(t, f.session.View().Active)
}

func TestConfirmWithoutPreview(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingToConfirm)
	assert.Equal(t, 0, f.api.Calls(http.MethodPost, "/api/import/confirm"))
}

func TestConfirmCommitsEditedRecords(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	require.NoError(t, f.session.EditRow(0))
	require.NoError(t, f.session.SaveRow(context.Background(), 0, preview.Input{
		Date:          "15/03/2024",
		Vendor:        "",
		Description:   "Espresso",
		Category:      "Food & Dining",
		PaymentMethod: "Cash",
	}))

	out, err := f.session.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Result.Count)
	assert.Equal(t, 2*time.Second, out.ResetAfter)
	assert.Equal(t,
		"Successfully imported expenses to database - 3 transactions totaling -$24.50",
		out.Result.Summary())

	sent := f.api.Confirmed()
	require.Len(t, sent, 1)
	assert.Contains(t, string(sent[0]), `"date":"2024-03-15T00:00:00.000Z"`)
	assert.Contains(t, string(sent[0]), `"description":"Espresso"`)
	assert.Contains(t, string(sent[0]), `"payment_method":"Cash"`)

	view := f.session.View()
	assert.False(t, view.Active)
	assert.Empty(t, view.Rows)

	require.Len(t, f.notifier.results, 1)
	assert.Equal(t, 3, f.notifier.results[0].Count)
}

func TestConfirmFailureKeepsPreview(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	before := f.session.Records()

	f.api.OnConfirm = func([]byte) (int, string) {
		return http.StatusInternalServerError, `{"message":"database is locked"}`
	}
	_, err := f.session.Confirm(context.Background())
	require.Error(t, err)
	assert.EqualError(t, err, "database is locked")

	assert.Equal(t, before, f.session.Records())
	assert.True(t, f.session.View().Active)
	assert.Empty(t, f.notifier.results)
}

func TestConfirmIgnoresNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	f.upload(t)

	_, err := f.session.Confirm(context.Background())
	assert.NoError(t, err)
	assert.False(t, f.session.View().Active)
}

func TestConfirmUnmodifiedSendsParsedRecordsVerbatim(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	_, err := f.session.Confirm(context.Background())
	require.NoError(t, err)

	parsed, err := json.Marshal(f.api.Records)
	require.NoError(t, err)
	sent := f.api.Confirmed()
	require.Len(t, sent, 1)
	assert.JSONEq(t, string(parsed), string(sent[0]))
}

func TestConfirmUsesItsOwnToken(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	// The upload spent its token; confirm fetches a fresh one and posts once.
	_, err := f.session.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.Calls(http.MethodGet, "/api/csrf-token"))
	assert.Equal(t, 1, f.api.Calls(http.MethodPost, "/api/import/confirm"))
	assert.Len(t, f.api.Confirmed(), 1)
}

func TestCancelMakesNoCall(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	require.NoError(t, f.session.EditRow(2))

	f.session.Cancel()

	view := f.session.View()
	assert.False(t, view.Active)
	assert.Empty(t, view.Rows)
	assert.Equal(t, 0, f.api.Calls(http.MethodPost, "/api/import/confirm"))

	_, err := f.session.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingToConfirm)
}

func TestSaveRowValidation(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	before := f.session.Records()
	ctx := context.Background()

	require.NoError(t, f.session.EditRow(0))

	err := f.session.SaveRow(ctx, 0, preview.Input{Date: "2024-03-01", Description: "x", Category: "Other"})
	assert.ErrorIs(t, err, core.ErrDateFormat)
	row, _ := f.session.Row(0)
	assert.Equal(t, "Date must be in DD/MM/YYYY format", row.DateError)

	err = f.session.SaveRow(ctx, 0, preview.Input{Date: "01/03/2024", Description: " ", Category: "Other"})
	assert.ErrorIs(t, err, core.ErrDescriptionRequired)

	err = f.session.SaveRow(ctx, 0, preview.Input{Date: "01/03/2024", Description: "x", Category: "Nope"})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	assert.Equal(t, before, f.session.Records())

	require.NoError(t, f.session.CancelRow(0))
	row, _ = f.session.Row(0)
	assert.Equal(t, preview.ModeDisplay, row.Mode)
	assert.Equal(t, before, f.session.Records())
}

func TestCategoriesFromAPIIncludeOther(t *testing.T) {
	f := newFixture(t)
	cats := f.session.Categories(context.Background())
	assert.Equal(t, []string{"Food & Dining", "Transportation", "Shopping", "Other"}, cats)

	f.session.Categories(context.Background())
	assert.Equal(t, 1, f.api.Calls(http.MethodGet, "/api/categories"))
}

func TestCategoriesFallback(t *testing.T) {
	f := newFixture(t)
	f.api.Categories = nil

	cats := f.session.Categories(context.Background())
	assert.Equal(t, []string{"Food & Dining", "Other"}, cats)

	f.api.Categories = []string{"Rent"}
	assert.Equal(t, []string{"Rent", "Other"}, f.session.Categories(context.Background()))
}

func TestCategoriesInvalidate(t *testing.T) {
	f := newFixture(t)
	src := f.session.categories
	src.Resolve(context.Background())

	f.api.Categories = []string{"Rent", "Other"}
	src.Invalidate()
	assert.Equal(t, []string{"Rent", "Other"}, src.Resolve(context.Background()))
	assert.Equal(t, 2, f.api.Calls(http.MethodGet, "/api/categories"))
}

func TestRegistry(t *testing.T) {
	made := 0
	reg := NewRegistry(2, time.Hour, func(id string) *Session {
		made++
		return New(id, nil, Options{})
	})

	s1, created := reg.Ensure("")
	require.True(t, created)
	_, err := uuid.Parse(s1.ID())
	require.NoError(t, err)

	again, created := reg.Ensure(s1.ID())
	assert.False(t, created)
	assert.Same(t, s1, again)

	unknown := uuid.NewString()
	s2, created := reg.Ensure(unknown)
	assert.True(t, created)
	assert.NotEqual(t, unknown, s2.ID())

	_, created = reg.Ensure("not-a-uuid")
	assert.True(t, created)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 3, made)

	_, ok := reg.Lookup(s1.ID())
	assert.False(t, ok, "oldest session should have been evicted")

	reg.Drop(s2.ID())
	_, ok = reg.Lookup(s2.ID())
	assert.False(t, ok)
}
