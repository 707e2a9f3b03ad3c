package receipt

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
)

func sampleInput(lineCount int) Input {
	lines := make([]domain.SaleLine, 0, lineCount)
	total := decimal.Zero
	for i := 0; i < lineCount; i++ {
		price := decimal.NewFromInt(150000)
		lines = append(lines, domain.SaleLine{
			ServiceName: "Facial",
			Quantity:    1,
			UnitPrice:   price,
			Subtotal:    price,
		})
		total = total.Add(price)
	}
	return Input{
		Business: Business{Name: "Studio Rias Ayu", Address: "Jl. Melati 5", Phone: "0811000111"},
		Sale: domain.Sale{
			ID:           42,
			Date:         time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC),
			CustomerName: "Ani",
			CreatorName:  "Kasir Utama",
			Total:        total,
			Lines:        lines,
		},
		Payment: domain.Payment{
			ID:     7,
			Amount: total.Add(decimal.NewFromInt(50000)),
			Method: domain.MethodCash,
			Status: domain.PaymentPaid,
			Date:   time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestFormatRupiahGroupsThousands(t *testing.T) {
	cases := map[string]decimal.Decimal{
		"Rp 0":         decimal.Zero,
		"Rp 1.500.000": decimal.NewFromInt(1500000),
		"Rp 350.000":   decimal.RequireFromString("350000.00"),
		"Rp 999":       decimal.NewFromInt(999),
	}
	for want, amount := range cases {
		if got := FormatRupiah(amount); got != want {
			t.Fatalf("expected %q for %s, got %q", want, amount, got)
		}
	}
}

func TestFormatDateUsesIndonesianMonth(t *testing.T) {
	got := FormatDate(time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC))
	if got != "16 Oktober 2025" {
		t.Fatalf("expected 16 Oktober 2025, got %s", got)
	}
}

func TestBuildClampsChangeAtZero(t *testing.T) {
	in := sampleInput(1)
	in.Payment.Amount = decimal.NewFromInt(100000)
	in.Payment.Status = domain.PaymentDownPayment

	doc := Build(in, Standard, time.Date(2025, 10, 16, 10, 30, 0, 0, time.UTC))
	if doc.Change != "Rp 0" {
		t.Fatalf("expected change Rp 0, got %s", doc.Change)
	}
	if doc.Status != "DP (Down Payment)" {
		t.Fatalf("expected down payment label, got %s", doc.Status)
	}
	if doc.Footer[2] != "Dicetak: 16/10/2025 10:30:00" {
		t.Fatalf("unexpected printed footer %q", doc.Footer[2])
	}
}

func TestBuildTruncatesNamesPerLayout(t *testing.T) {
	in := sampleInput(1)
	in.Sale.Lines[0].ServiceName = "Makeup Pengantin Adat Jawa Lengkap Dengan Sanggul Dan Paes"
	at := time.Now()

	narrow := Build(in, Narrow, at)
	if got := narrow.Rows[0].Name; got != "Makeup Pengantin Adat ..." {
		t.Fatalf("unexpected narrow truncation %q", got)
	}
	standard := Build(in, Standard, at)
	if got := standard.Rows[0].Name; got != "Makeup Pengantin Adat Jawa Lengkap De..." {
		t.Fatalf("unexpected standard truncation %q", got)
	}

	in.Sale.Lines[0].ServiceName = "Facial"
	if got := Build(in, Narrow, at).Rows[0].Name; got != "Facial" {
		t.Fatalf("expected short name untouched, got %q", got)
	}
}

func TestPaginateReservesRoomForClosingBlock(t *testing.T) {
	cases := []struct {
		rows  int
		pages int
	}{
		{rows: 0, pages: 1},
		{rows: 16, pages: 1},
		{rows: 17, pages: 2},
		{rows: 27, pages: 2},
		{rows: 28, pages: 2},
		{rows: 27 + 24, pages: 2},
		{rows: 27 + 25, pages: 3},
		{rows: 27 + 35 + 1, pages: 3},
	}
	for _, tc := range cases {
		doc := Build(sampleInput(tc.rows), Standard, time.Now())
		if doc.PageCount() != tc.pages {
			t.Fatalf("rows=%d: expected %d pages, got %d", tc.rows, tc.pages, doc.PageCount())
		}
		placed := 0
		for _, page := range doc.Pages {
			placed += len(page)
		}
		if placed != tc.rows {
			t.Fatalf("rows=%d: expected every row placed once, got %d", tc.rows, placed)
		}
	}
}

func TestBuildIsDeterministicForSameTimestamp(t *testing.T) {
	at := time.Date(2025, 10, 16, 10, 30, 0, 0, time.UTC)
	a, err := RenderPDF(Build(sampleInput(3), Standard, at))
	if err != nil {
		t.Fatalf("render a: %v", err)
	}
	b, err := RenderPDF(Build(sampleInput(3), Standard, at))
	if err != nil {
		t.Fatalf("render b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical pdf bytes for identical input")
	}
	if !bytes.HasPrefix(a, []byte("%PDF-")) {
		t.Fatalf("expected pdf header")
	}
}

func TestRenderEscposFramesOutput(t *testing.T) {
	payload, preview := RenderEscpos(Build(sampleInput(2), Narrow, time.Now()))
	if !bytes.HasPrefix(payload, []byte{0x1b, 0x40}) {
		t.Fatalf("expected ESC @ init prefix")
	}
	if !bytes.HasSuffix(payload, []byte{0x1d, 0x56, 0x41, 0x10}) {
		t.Fatalf("expected partial cut suffix")
	}
	if !strings.Contains(preview, "Kembali") || !strings.Contains(preview, "Rp 50.000") {
		t.Fatalf("expected change line in preview, got:\n%s", preview)
	}
}

func TestWriterSavesNamedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdf")
	w := NewWriter(dir)
	at := time.Date(2025, 10, 16, 9, 5, 7, 0, time.UTC)

	file, err := w.Save(Build(sampleInput(2), Narrow, at))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if file.FileName != "thermal_42_20251016_090507.pdf" {
		t.Fatalf("unexpected file name %s", file.FileName)
	}
	info, err := os.Stat(file.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty pdf")
	}
}

func TestParseLayout(t *testing.T) {
	if l, err := ParseLayout(""); err != nil || l != Standard {
		t.Fatalf("expected default standard, got %s %v", l, err)
	}
	if l, err := ParseLayout("thermal"); err != nil || l != Narrow {
		t.Fatalf("expected narrow, got %s %v", l, err)
	}
	if _, err := ParseLayout("a5"); err == nil {
		t.Fatalf("expected unknown layout error")
	}
}
