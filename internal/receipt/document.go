package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
)

type Layout string

const (
	Standard Layout = "standard"
	Narrow   Layout = "narrow"
)

// ParseLayout accepts the layout names and the file kinds they produce.
// An empty value selects Standard.
func ParseLayout(raw string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "standard", "struk":
		return Standard, nil
	case "narrow", "thermal":
		return Narrow, nil
	default:
		return "", fmt.Errorf("unknown receipt layout %q", raw)
	}
}

// Kind is the file name prefix for the layout.
func (l Layout) Kind() string {
	if l == Narrow {
		return "thermal"
	}
	return "struk"
}

const (
	firstPageRows = 27
	nextPageRows  = 35
	closingRows   = 11

	narrowNameLimit   = 25
	standardNameLimit = 40
)

type Business struct {
	Name    string
	Address string
	Phone   string
}

type Input struct {
	Business Business
	Sale     domain.Sale
	Payment  domain.Payment
}

type Field struct {
	Label string
	Value string
}

type Row struct {
	Name      string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

type Document struct {
	Layout      Layout
	SaleID      int64
	Title       string
	Subtitle    string
	Address     string
	Phone       string
	Info        []Field
	Rows        []Row
	Pages       [][]Row
	Total       string
	Tendered    string
	Change      string
	Method      string
	Status      string
	PaymentDate string
	Footer      []string
	GeneratedAt time.Time
}

func (d Document) PageCount() int {
	return len(d.Pages)
}

// Build turns a sale, its lines and one payment into a printable document.
// The output depends only on its arguments.
func Build(in Input, layout Layout, generatedAt time.Time) Document {
	if layout != Narrow {
		layout = Standard
	}
	limit := standardNameLimit
	if layout == Narrow {
		limit = narrowNameLimit
	}

	title := strings.TrimSpace(in.Business.Name)
	if title == "" {
		title = "Aplikasi Jasa Makeup"
	}

	info := []Field{
		{Label: "ID Transaksi", Value: strconv.FormatInt(in.Sale.ID, 10)},
		{Label: "Tanggal Transaksi", Value: FormatDate(in.Sale.Date)},
		{Label: "Pelanggan", Value: in.Sale.CustomerName},
	}
	if in.Sale.CreatorName != "" {
		info = append(info, Field{Label: "Kasir", Value: in.Sale.CreatorName})
	}
	if in.Payment.ID > 0 {
		info = append(info, Field{Label: "ID Pembayaran", Value: strconv.FormatInt(in.Payment.ID, 10)})
	}

	rows := make([]Row, 0, len(in.Sale.Lines))
	for _, line := range in.Sale.Lines {
		rows = append(rows, Row{
			Name:      truncateName(line.ServiceName, limit),
			Quantity:  line.Quantity,
			UnitPrice: FormatRupiah(line.UnitPrice),
			Subtotal:  FormatRupiah(line.Subtotal),
		})
	}

	pages := [][]Row{rows}
	if layout == Standard {
		pages = paginate(rows)
	}

	change := decimal.Max(in.Payment.Amount.Sub(in.Sale.Total), decimal.Zero)

	return Document{
		Layout:      layout,
		SaleID:      in.Sale.ID,
		Title:       title,
		Subtitle:    "Struk Pembayaran",
		Address:     strings.TrimSpace(in.Business.Address),
		Phone:       strings.TrimSpace(in.Business.Phone),
		Info:        info,
		Rows:        rows,
		Pages:       pages,
		Total:       FormatRupiah(in.Sale.Total),
		Tendered:    FormatRupiah(in.Payment.Amount),
		Change:      FormatRupiah(change),
		Method:      in.Payment.Method.Label(),
		Status:      in.Payment.Status.Label(),
		PaymentDate: FormatDate(in.Payment.Date),
		Footer: []string{
			"Terima Kasih",
			"Selamat Datang Kembali",
			"Dicetak: " + FormatPrintedAt(generatedAt),
		},
		GeneratedAt: generatedAt,
	}
}

// paginate splits rows into pages of firstPageRows then nextPageRows. A
// trailing empty page is added when the last page cannot also hold the
// closing block.
func paginate(rows []Row) [][]Row {
	pages := make([][]Row, 0, 1+len(rows)/nextPageRows)
	capacity := firstPageRows
	remaining := rows
	for {
		n := min(capacity, len(remaining))
		pages = append(pages, remaining[:n])
		remaining = remaining[n:]
		if len(remaining) == 0 {
			break
		}
		capacity = nextPageRows
	}

	if capacity-len(pages[len(pages)-1]) < closingRows {
		pages = append(pages, []Row{})
	}
	return pages
}

func truncateName(name string, limit int) string {
	if utf8.RuneCountInString(name) <= limit {
		return name
	}
	runes := []rune(name)
	return string(runes[:limit-3]) + "..."
}
