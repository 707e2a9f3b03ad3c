package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const escposColumns = 42

// RenderEscpos produces the raw byte stream for a receipt printer along with a
// plain-text preview of the same lines.
func RenderEscpos(doc Document) ([]byte, string) {
	rule := strings.Repeat("-", escposColumns)
	lines := []string{
		center(doc.Title),
		center(doc.Subtitle),
	}
	if doc.Address != "" {
		lines = append(lines, center(doc.Address))
	}
	if doc.Phone != "" {
		lines = append(lines, center("Telp: "+doc.Phone))
	}
	lines = append(lines, strings.Repeat("=", escposColumns))
	for _, field := range doc.Info {
		lines = append(lines, spread(field.Label, field.Value))
	}
	lines = append(lines, rule)
	for _, row := range doc.Rows {
		lines = append(lines, row.Name)
		lines = append(lines, spread(fmt.Sprintf("  %dx %s", row.Quantity, row.UnitPrice), row.Subtotal))
	}
	lines = append(lines,
		rule,
		spread("Total", doc.Total),
		spread("Bayar", doc.Tendered),
		spread("Kembali", doc.Change),
		rule,
		"Metode: "+doc.Method,
		"Status: "+doc.Status,
		strings.Repeat("=", escposColumns),
	)
	for _, line := range doc.Footer {
		lines = append(lines, center(line))
	}
	lines = append(lines, "")

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return escpos, strings.Join(lines, "\n")
}

func spread(left string, right string) string {
	gap := escposColumns - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func center(text string) string {
	pad := (escposColumns - utf8.RuneCountInString(text)) / 2
	if pad < 1 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}
