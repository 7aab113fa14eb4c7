package preview

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"importdesk/internal/core"
)

var categories = []string{"Food & Dining", "Transportation", "Other"}

func stage(t *testing.T, raw string) (*Store, *Rows) {
	t.Helper()
	var records []core.PreviewExpense
	require.NoError(t, json.Unmarshal([]byte(raw), &records))
	s := NewStore()
	s.Replace(records)
	return s, NewRows(s, time.UTC)
}

const threeRecords = `[
	{"date":"2024-01-05T00:00:00Z","vendor":"Cafe","description":"Coffee","category":"Food & Dining","amount":-4.5,"payment_method":"Card"},
	{"date":"2024-01-06T00:00:00Z","vendor":null,"description":"Bus","category":"Transportation","amount":"bad"},
	{"date":"2024-01-07T00:00:00Z","description":"Refund","category":"Other","amount":10}
]`

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Active())

	s.Replace(nil)
	assert.True(t, s.Active())
	assert.Equal(t, 0, s.Len())

	s.Clear()
	assert.False(t, s.Active())
	_, ok := s.Get(0)
	assert.False(t, ok)
	assert.False(t, s.Update(0, SetCategory("x")))
}

func TestStoreTotalCoercesBadAmounts(t *testing.T) {
	s, _ := stage(t, threeRecords)
	assert.True(t, s.Total().Equal(decimal.RequireFromString("5.5")), "got %s", s.Total())
}

func TestStoreAllIsACopy(t *testing.T) {
	s, _ := stage(t, threeRecords)
	all := s.All()
	all[0].Description = "changed"
	rec, _ := s.Get(0)
	assert.Equal(t, "Coffee", rec.Description)
}

func TestFieldSetters(t *testing.T) {
	var e core.PreviewExpense
	SetVendor("  ")(&e)
	assert.Nil(t, e.Vendor)
	SetVendor(" ACME ")(&e)
	assert.Equal(t, "ACME", e.VendorText())
	SetPaymentMethod(" ")(&e)
	assert.Equal(t, core.DefaultPaymentMethod, e.PaymentMethod)
	SetDescription("  Lunch ")(&e)
	assert.Equal(t, "Lunch", e.Description)
}

func TestRowsStartInDisplay(t *testing.T) {
	_, rows := stage(t, threeRecords)
	require.Equal(t, 3, rows.Len())
	assert.False(t, rows.AnyEditing())

	snap := rows.Snapshot()
	assert.Equal(t, "05/01/2024", snap[0].Shown.Date)
	assert.Equal(t, "-$4.50", snap[0].Shown.Amount)
	assert.True(t, snap[0].Shown.Negative)
	assert.Equal(t, "-", snap[1].Shown.Vendor)
	assert.Equal(t, "$0.00", snap[1].Shown.Amount)
	assert.Equal(t, core.DefaultPaymentMethod, snap[2].Shown.PaymentMethod)
}

func TestSaveUpdatesOnlyThatRow(t *testing.T) {
	s, rows := stage(t, threeRecords)
	before := s.All()

	require.NoError(t, rows.Edit(1))
	assert.True(t, rows.AnyEditing())

	err := rows.Save(1, Input{
		Date:          "10/02/2024",
		Vendor:        "  ",
		Description:   " City bus ",
		Category:      "Other",
		PaymentMethod: "",
	}, categories)
	require.NoError(t, err)

	after := s.All()
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[2])

	assert.Equal(t, "2024-02-10T00:00:00.000Z", after[1].Date)
	assert.Nil(t, after[1].Vendor)
	assert.Equal(t, "City bus", after[1].Description)
	assert.Equal(t, "Other", after[1].Category)
	assert.Equal(t, core.DefaultPaymentMethod, after[1].PaymentMethod)

	row, ok := rows.Row(1)
	require.True(t, ok)
	assert.Equal(t, ModeDisplay, row.Mode)
	assert.Equal(t, "10/02/2024", row.Shown.Date)
	assert.Equal(t, "-", row.Shown.Vendor)
	assert.False(t, rows.AnyEditing())
}

func TestSaveRejectsInvalidDate(t *testing.T) {
	s, rows := stage(t, threeRecords)
	before := s.All()

	require.NoError(t, rows.Edit(0))
	err := rows.Save(0, Input{Date: "31/02/2024", Description: "Coffee", Category: "Food & Dining"}, categories)
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	row, _ := rows.Row(0)
	assert.Equal(t, ModeEditing, row.Mode)
	assert.Equal(t, "Invalid date", row.DateError)
	assert.Equal(t, "31/02/2024", row.Draft.Date)
	assert.Equal(t, before, s.All())
}

func TestSaveRejectsBlankDescription(t *testing.T) {
	s, rows := stage(t, threeRecords)
	before := s.All()

	require.NoError(t, rows.Edit(0))
	err := rows.Save(0, Input{Date: "05/01/2024", Description: "   ", Category: "Food & Dining"}, categories)
	assert.ErrorIs(t, err, core.ErrDescriptionRequired)
	assert.EqualError(t, err, "Description is required")

	row, _ := rows.Row(0)
	assert.Equal(t, ModeEditing, row.Mode)
	assert.Empty(t, row.DateError)
	assert.Equal(t, before, s.All())
}

func TestSaveDateCheckedBeforeDescription(t *testing.T) {
	_, rows := stage(t, threeRecords)
	require.NoError(t, rows.Edit(0))
	err := rows.Save(0, Input{Date: "5/1/2024", Description: ""}, categories)
	assert.ErrorIs(t, err, core.ErrDateFormat)
}

func TestSaveRejectsUnknownCategory(t *testing.T) {
	s, rows := stage(t, threeRecords)
	before := s.All()

	require.NoError(t, rows.Edit(0))
	err := rows.Save(0, Input{Date: "05/01/2024", Description: "Coffee", Category: "Bribes"}, categories)
	assert.ErrorIs(t, err, core.ErrUnknownCategory)
	assert.Equal(t, before, s.All())
}

func TestSaveKeepsUnlistedCurrentCategory(t *testing.T) {
	s, rows := stage(t, `[{"date":"2024-01-05T00:00:00Z","description":"x","category":"Others","amount":1}]`)
	require.NoError(t, rows.Edit(0))
	require.NoError(t, rows.Save(0, Input{Date: "05/01/2024", Description: "y", Category: "Others"}, categories))
	rec, _ := s.Get(0)
	assert.Equal(t, "Others", rec.Category)
}

func TestSaveRequiresEditing(t *testing.T) {
	_, rows := stage(t, threeRecords)
	assert.ErrorIs(t, rows.Save(0, Input{}, categories), ErrNotEditing)
	assert.ErrorIs(t, rows.Edit(7), ErrNoRow)
	assert.ErrorIs(t, rows.Cancel(-1), ErrNoRow)
}

func TestCancelRestoresDraft(t *testing.T) {
	s, rows := stage(t, threeRecords)
	before := s.All()

	require.NoError(t, rows.Edit(0))
	_ = rows.Save(0, Input{Date: "99/99/2024", Description: "Tea"}, categories)
	require.NoError(t, rows.Cancel(0))

	row, _ := rows.Row(0)
	assert.Equal(t, ModeDisplay, row.Mode)
	assert.Empty(t, row.DateError)
	assert.Equal(t, "05/01/2024", row.Draft.Date)
	assert.Equal(t, "Coffee", row.Draft.Description)
	assert.Equal(t, "Cafe", row.Draft.Vendor)
	assert.Equal(t, before, s.All())
}

func TestRowsAreIndependent(t *testing.T) {
	_, rows := stage(t, threeRecords)
	require.NoError(t, rows.Edit(0))
	require.NoError(t, rows.Edit(2))
	require.NoError(t, rows.Cancel(0))
	assert.True(t, rows.AnyEditing())

	r1, _ := rows.Row(1)
	assert.Equal(t, ModeDisplay, r1.Mode)
	r2, _ := rows.Row(2)
	assert.Equal(t, ModeEditing, r2.Mode)
}
