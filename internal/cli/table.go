package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"importdesk/internal/session"
)

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	cellStyle     = lipgloss.NewStyle().PaddingRight(2)
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var previewColumns = []string{"#", "Date", "Vendor", "Description", "Category", "Amount", "Payment"}

// renderPreview writes the staged import as a table with its heading and total.
func renderPreview(w io.Writer, v session.View) {
	if !v.Active {
		fmt.Fprintln(w, faintStyle.Render("No import staged."))
		return
	}

	fmt.Fprintln(w, headingStyle.Render(v.Summary.Heading()))
	if v.Filename != "" {
		fmt.Fprintln(w, faintStyle.Render(v.Filename))
	}
	fmt.Fprintln(w)

	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = []string{
			strconv.Itoa(r.Index + 1),
			r.Shown.Date,
			r.Shown.Vendor,
			r.Shown.Description,
			r.Shown.Category,
			r.Shown.Amount,
			r.Shown.PaymentMethod,
		}
	}

	widths := make([]int, len(previewColumns))
	for c, h := range previewColumns {
		widths[c] = lipgloss.Width(h)
		for _, row := range rows {
			widths[c] = max(widths[c], lipgloss.Width(row[c]))
		}
	}

	header := make([]string, len(previewColumns))
	for c, h := range previewColumns {
		header[c] = cellStyle.Width(widths[c] + 2).Render(headerStyle.Render(h))
	}
	fmt.Fprintln(w, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, header...), " "))

	for i, row := range rows {
		cells := make([]string, len(row))
		for c, text := range row {
			if c == 5 && v.Rows[i].Shown.Negative {
				text = negativeStyle.Render(text)
			}
			cells[c] = cellStyle.Width(widths[c] + 2).Render(text)
		}
		fmt.Fprintln(w, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(v.Summary.TotalLine()))
}
