// Package report renders inventory and loan collections as CSV
// downloads and keeps the catalog of available exports.
package report

import (
	"fmt"
	"sort"
	"strings"

	"assetdesk/internal/models"
)

// utf8BOM makes spreadsheet tools pick UTF-8 when opening the file.
const utf8BOM = "\uFEFF"

// resourceHeader and loanHeader are the fixed column sets the exports
// have always shipped with; consumers parse them by position.
var (
	resourceHeader = []string{"ID", "Modelo", "No. Serie", "Categoría", "Estado", "Email Usuario", "Fecha Garantía"}
	loanHeader     = []string{"Recurso", "Solicitante", "Fecha Préstamo", "Fecha Devolución", "Estado"}
)

// RenderCSV writes header and rows as comma-separated text with a
// leading BOM. Every field is double-quoted regardless of content,
// with embedded quotes doubled. No rows yields an empty document.
func RenderCSV(header []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(utf8BOM)
	writeLine(&b, header)
	for _, row := range rows {
		writeLine(&b, row)
	}
	return b.String()
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// formatDate turns an ISO date (YYYY-MM-DD, optionally with a time
// suffix) into DD/MM/YYYY. Values that do not split into three parts
// pass through untouched.
func formatDate(iso string) string {
	if iso == "" {
		return ""
	}
	datePart := iso
	if i := strings.IndexByte(iso, 'T'); i >= 0 {
		datePart = iso[:i]
	}
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 {
		return iso
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// titleCase renders a state for display: first rune upper, rest lower.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// resourceCell renders the loan export's resource column.
func resourceCell(r *models.Resource) string {
	if r == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s (N° Serie: %s)", r.Model, r.Serial)
}

// ResourceRows converts resources into export rows matching
// resourceHeader.
func ResourceRows(in []models.Resource) [][]string {
	rows := make([][]string, 0, len(in))
	for _, r := range in {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.Model,
			r.Serial,
			r.Category,
			titleCase(r.State),
			r.UserEmail,
			formatDate(r.WarrantyExpiry),
		})
	}
	return rows
}

// LoanRows converts loans into export rows matching loanHeader.
func LoanRows(in []models.Loan) [][]string {
	rows := make([][]string, 0, len(in))
	for _, l := range in {
		rows = append(rows, []string{
			resourceCell(l.Resource),
			l.Requester,
			formatDate(l.LoanDate),
			formatDate(l.ReturnDate),
			titleCase(l.State),
		})
	}
	return rows
}

// GenericRows builds a header from the first record's keys (sorted for
// stable output) and one row per record. Missing and nil values render
// as empty fields.
func GenericRows(records []map[string]any) ([]string, [][]string) {
	if len(records) == 0 {
		return nil, nil
	}
	header := make([]string, 0, len(records[0]))
	for k := range records[0] {
		header = append(header, k)
	}
	sort.Strings(header)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, k := range header {
			v, ok := rec[k]
			if !ok || v == nil {
				continue
			}
			row[i] = fmt.Sprintf("%v", v)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// Filename derives the download name for a report: the title with
// spaces turned into underscores, an ISO date suffix, and .csv.
func Filename(title, isoDate string) string {
	return strings.ReplaceAll(title, " ", "_") + "_" + isoDate + ".csv"
}
