package preview

import (
	"errors"
	"slices"
	"strings"
	"time"

	"importdesk/internal/core"
)

// Mode is the per-row UI state.
type Mode int

const (
	ModeDisplay Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "display"
}

var (
	ErrNoRow      = errors.New("no such row")
	ErrNotEditing = errors.New("row is not being edited")
)

// Input carries the raw text of a row's edit controls.
type Input struct {
	Date          string
	Vendor        string
	Description   string
	Category      string
	PaymentMethod string
}

// Display is the visible text of a row outside edit mode.
type Display struct {
	Date          string
	Vendor        string
	Description   string
	Category      string
	Amount        string
	Negative      bool
	PaymentMethod string
}

// Row is the edit state of one staged record, addressed by its store index.
type Row struct {
	Index     int
	Mode      Mode
	Draft     Input
	Shown     Display
	DateError string
}

// Rows is the arena of row states for the records in a Store.
type Rows struct {
	store *Store
	loc   *time.Location
	rows  []*Row
}

// NewRows binds row state to store. Dates are read and written in loc.
func NewRows(store *Store, loc *time.Location) *Rows {
	if loc == nil {
		loc = time.Local
	}
	r := &Rows{store: store, loc: loc}
	r.Reset()
	return r
}

// Reset rebuilds one display-mode row per staged record.
func (r *Rows) Reset() {
	r.rows = make([]*Row, r.store.Len())
	for i := range r.rows {
		rec, _ := r.store.Get(i)
		r.rows[i] = &Row{
			Index: i,
			Mode:  ModeDisplay,
			Draft: r.inputFrom(rec),
			Shown: r.displayFrom(rec),
		}
	}
}

func (r *Rows) Len() int { return len(r.rows) }

// Snapshot copies every row for rendering.
func (r *Rows) Snapshot() []Row {
	out := make([]Row, len(r.rows))
	for i, row := range r.rows {
		out[i] = *row
	}
	return out
}

// Row returns a copy of the row at i.
func (r *Rows) Row(i int) (Row, bool) {
	row, err := r.at(i)
	if err != nil {
		return Row{}, false
	}
	return *row, true
}

// AnyEditing reports whether at least one row has unsaved edits open.
func (r *Rows) AnyEditing() bool {
	for _, row := range r.rows {
		if row.Mode == ModeEditing {
			return true
		}
	}
	return false
}

// Edit opens row i for editing with controls filled from the stored record.
func (r *Rows) Edit(i int) error {
	row, err := r.at(i)
	if err != nil {
		return err
	}
	if row.Mode == ModeEditing {
		return nil
	}
	rec, _ := r.store.Get(i)
	row.Draft = r.inputFrom(rec)
	row.DateError = ""
	row.Mode = ModeEditing
	return nil
}

// Save validates in and writes it to the store. On any validation error the row
// stays in edit mode and the store is untouched. categories is the selectable
// set; the record's current category is always accepted.
func (r *Rows) Save(i int, in Input, categories []string) error {
	row, err := r.at(i)
	if err != nil {
		return err
	}
	if row.Mode != ModeEditing {
		return ErrNotEditing
	}
	row.Draft = in

	date, err := core.ValidateDateIn(in.Date, r.loc)
	if err != nil {
		row.DateError = err.Error()
		return err
	}
	row.DateError = ""

	if strings.TrimSpace(in.Description) == "" {
		return core.ErrDescriptionRequired
	}

	rec, _ := r.store.Get(i)
	if in.Category != rec.Category && !slices.Contains(categories, in.Category) {
		return core.ErrUnknownCategory
	}

	r.store.Update(i,
		SetDate(core.ISOInstant(date)),
		SetVendor(in.Vendor),
		SetDescription(in.Description),
		SetCategory(in.Category),
		SetPaymentMethod(in.PaymentMethod),
	)

	saved, _ := r.store.Get(i)
	row.Shown = Display{
		Date:          in.Date,
		Vendor:        vendorText(strings.TrimSpace(in.Vendor)),
		Description:   saved.Description,
		Category:      saved.Category,
		Amount:        row.Shown.Amount,
		Negative:      row.Shown.Negative,
		PaymentMethod: saved.PaymentMethod,
	}
	row.Draft = r.inputFrom(saved)
	row.Draft.Date = in.Date
	row.Mode = ModeDisplay
	return nil
}

// Cancel drops the draft of row i and returns it to display mode.
func (r *Rows) Cancel(i int) error {
	row, err := r.at(i)
	if err != nil {
		return err
	}
	rec, _ := r.store.Get(i)
	row.Draft = r.inputFrom(rec)
	row.DateError = ""
	row.Mode = ModeDisplay
	return nil
}

func (r *Rows) at(i int) (*Row, error) {
	if i < 0 || i >= len(r.rows) {
		return nil, ErrNoRow
	}
	return r.rows[i], nil
}

func (r *Rows) inputFrom(rec core.PreviewExpense) Input {
	return Input{
		Date:          core.DisplayDate(rec.Date, r.loc),
		Vendor:        rec.VendorText(),
		Description:   rec.Description,
		Category:      rec.Category,
		PaymentMethod: rec.PaymentMethodText(),
	}
}

func (r *Rows) displayFrom(rec core.PreviewExpense) Display {
	amount := rec.Amount.Decimal()
	return Display{
		Date:          core.DisplayDate(rec.Date, r.loc),
		Vendor:        vendorText(rec.VendorText()),
		Description:   rec.Description,
		Category:      rec.Category,
		Amount:        core.FormatDollars(amount),
		Negative:      amount.IsNegative(),
		PaymentMethod: rec.PaymentMethodText(),
	}
}

func vendorText(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
