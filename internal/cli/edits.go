package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"importdesk/internal/preview"
	"importdesk/internal/session"
)

var (
	ErrBadEdit      = errors.New("edit must look like <row>:<field>=<value>")
	ErrUnknownField = errors.New("unknown field")
)

// rowEdit is one --set flag. Row is 1-based as printed in the preview table.
type rowEdit struct {
	Row   int
	Field string
	Value string
}

func parseEdit(s string) (rowEdit, error) {
	rowPart, rest, ok := strings.Cut(s, ":")
	if !ok {
		return rowEdit{}, fmt.Errorf("%w: %q", ErrBadEdit, s)
	}
	field, value, ok := strings.Cut(rest, "=")
	if !ok {
		return rowEdit{}, fmt.Errorf("%w: %q", ErrBadEdit, s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(rowPart))
	if err != nil || row < 1 {
		return rowEdit{}, fmt.Errorf("%w: bad row in %q", ErrBadEdit, s)
	}

	field = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(field)), "-", "_")
	if err := setField(&preview.Input{}, field, ""); err != nil {
		return rowEdit{}, err
	}
	return rowEdit{Row: row, Field: field, Value: value}, nil
}

func parseEdits(flags []string) ([]rowEdit, error) {
	edits := make([]rowEdit, 0, len(flags))
	for _, f := range flags {
		e, err := parseEdit(f)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func setField(in *preview.Input, field, value string) error {
	switch field {
	case "date":
		in.Date = value
	case "vendor":
		in.Vendor = value
	case "description":
		in.Description = value
	case "category":
		in.Category = value
	case "payment_method":
		in.PaymentMethod = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}

// applyEdits runs each touched row through edit, change and save, in the order
// rows first appear. A row that fails validation is cancelled and the error
// names it.
func applyEdits(ctx context.Context, sess *session.Session, edits []rowEdit) error {
	var order []int
	byRow := make(map[int][]rowEdit)
	for _, e := range edits {
		if _, seen := byRow[e.Row]; !seen {
			order = append(order, e.Row)
		}
		byRow[e.Row] = append(byRow[e.Row], e)
	}

	for _, n := range order {
		i := n - 1
		if err := sess.EditRow(i); err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
		row, _ := sess.Row(i)
		in := row.Draft
		for _, e := range byRow[n] {
			_ = setField(&in, e.Field, e.Value)
		}
		if err := sess.SaveRow(ctx, i, in); err != nil {
			_ = sess.CancelRow(i)
			return fmt.Errorf("row %d: %w", n, err)
		}
	}
	return nil
}
