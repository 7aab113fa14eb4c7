package cli

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"importdesk/internal/amqp"
	"importdesk/internal/backend/fakeapi"
	"importdesk/internal/config"
	applog "importdesk/internal/log"
	"importdesk/internal/preview"
)

const statement = `date,description,amount,vendor
2024-03-01,Coffee,-4.50,Cafe
2024-03-02,Train,-20,
`

func testFactory(t *testing.T) (AppFactory, *fakeapi.API) {
	t.Helper()
	api, srv := fakeapi.Start()
	t.Cleanup(srv.Close)

	cfg := config.Load()
	cfg.BackendURL = srv.URL
	cfg.BackendTimeout = 5 * time.Second
	cfg.ImportTimezone = "UTC"
	cfg.AMQPURL = ""
	return func() (*App, error) { return NewApp(cfg, applog.Discard()) }, api
}

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "march.csv")
	require.NoError(t, os.WriteFile(path, []byte(statement), 0o600))
	return path
}

func run(t *testing.T, factory AppFactory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(factory)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportPreviewOnly(t *testing.T) {
	factory, api := testFactory(t)

	out, err := run(t, factory, "import", writeStatement(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Successfully parsed 2 transactions")
	assert.Contains(t, out, "Found 2 transactions")
	assert.Contains(t, out, "01/03/2024")
	assert.Contains(t, out, "Coffee")
	assert.Contains(t, out, "Total Amount: -$24.50")
	assert.Contains(t, out, "Not saved")
	assert.Zero(t, api.Calls(http.MethodPost, "/api/import/confirm"))
}

func TestImportWithEditsAndConfirm(t *testing.T) {
	factory, api := testFactory(t)

	out, err := run(t, factory, "import", writeStatement(t),
		"--set", "2:category=Transportation",
		"--set", "2:vendor=Trenitalia",
		"--set", "1:date=15/03/2024",
		"--yes")
	require.NoError(t, err)

	assert.Contains(t, out, "Trenitalia")
	assert.Contains(t, out, "15/03/2024")
	assert.Contains(t, out, "Successfully imported expenses to database - 2 transactions totaling -$24.50")

	sent := api.Confirmed()
	require.Len(t, sent, 1)
	body := string(sent[0])
	assert.Contains(t, body, `"category":"Transportation"`)
	assert.Contains(t, body, `"vendor":"Trenitalia"`)
	assert.Contains(t, body, `"date":"2024-03-15T00:00:00.000Z"`)
}

func TestImportRejectsInvalidEdit(t *testing.T) {
	factory, api := testFactory(t)

	out, err := run(t, factory, "import", writeStatement(t), "--set", "1:date=2024-03-01", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
	assert.Contains(t, err.Error(), "Date must be in DD/MM/YYYY format")
	assert.Contains(t, out, "Found 2 transactions")
	assert.Zero(t, api.Calls(http.MethodPost, "/api/import/confirm"))
}

func TestImportUnknownRow(t *testing.T) {
	factory, _ := testFactory(t)

	_, err := run(t, factory, "import", writeStatement(t), "--set", "9:vendor=x")
	require.Error(t, err)
	assert.ErrorIs(t, err, preview.ErrNoRow)
}

func TestImportBadFlagFailsBeforeUpload(t *testing.T) {
	factory, api := testFactory(t)

	_, err := run(t, factory, "import", writeStatement(t), "--set", "1-vendor")
	assert.ErrorIs(t, err, ErrBadEdit)
	assert.Zero(t, api.Calls(http.MethodPost, "/api/import/csv"))
}

func TestCategoriesCommand(t *testing.T) {
	factory, _ := testFactory(t)

	out, err := run(t, factory, "categories")
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining\nTransportation\nShopping\nOther\n", out)
}

func TestWatchRequiresAMQP(t *testing.T) {
	factory, _ := testFactory(t)

	_, err := run(t, factory, "watch")
	assert.ErrorIs(t, err, ErrEventsDisabled)
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		in      string
		want    rowEdit
		wantErr error
	}{
		{in: "2:category=Groceries", want: rowEdit{Row: 2, Field: "category", Value: "Groceries"}},
		{in: "1:payment-method=Visa", want: rowEdit{Row: 1, Field: "payment_method", Value: "Visa"}},
		{in: "3:description=a=b", want: rowEdit{Row: 3, Field: "description", Value: "a=b"}},
		{in: "1:vendor=", want: rowEdit{Row: 1, Field: "vendor", Value: ""}},
		{in: "vendor=x", wantErr: ErrBadEdit},
		{in: "0:vendor=x", wantErr: ErrBadEdit},
		{in: "1:vendor", wantErr: ErrBadEdit},
		{in: "1:amount=3", wantErr: ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEdit(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, &amqp.ImportConfirmedMessage{
		Message:   "Successfully imported expenses to database",
		Count:     3,
		Total:     decimal.RequireFromString("-24.5"),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, out.String(), "Successfully imported expenses to database - 3 transactions totaling -$24.50")
}
