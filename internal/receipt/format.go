package receipt

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatRupiah renders a whole-rupiah amount with Indonesian digit grouping,
// e.g. "Rp 1.500.000".
func FormatRupiah(amount decimal.Decimal) string {
	p := message.NewPrinter(language.Indonesian)
	return p.Sprintf("Rp %d", amount.Round(0).IntPart())
}

// FormatDate renders a civil date as "16 Oktober 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func FormatPrintedAt(t time.Time) string {
	return t.Format("02/01/2006 15:04:05")
}
