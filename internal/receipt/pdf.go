package receipt

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf/v2"
)

const (
	standardMargin = 15.0
	standardWidth  = 180.0
	rowHeight      = 6.0

	narrowWidth  = 80.0
	narrowMargin = 5.0
	narrowLine   = 4.0
)

// RenderPDF lays the document out with gofpdf. Standard documents use A4 with
// one physical page per entry in Pages; narrow documents are a single 80 mm
// strip whose height follows the row count.
func RenderPDF(doc Document) ([]byte, error) {
	var pdf *gofpdf.Fpdf
	if doc.Layout == Narrow {
		pdf = renderNarrow(doc)
	} else {
		pdf = renderStandard(doc)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func renderStandard(doc Document) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(standardMargin, standardMargin, standardMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle(fmt.Sprintf("Struk %d", doc.SaleID), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	total := doc.PageCount()
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(standardWidth, 5, fmt.Sprintf("Halaman %d/%d", pdf.PageNo(), total), "", 0, "C", false, 0, "")
	})

	for i, rows := range doc.Pages {
		pdf.AddPage()
		if i == 0 {
			standardHeader(pdf, doc, tr)
		}

		tableHeader(pdf)
		pdf.SetFont("Arial", "", 9)
		for _, row := range rows {
			pdf.CellFormat(95, rowHeight, tr(row.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(15, rowHeight, strconv.Itoa(row.Quantity), "", 0, "C", false, 0, "")
			pdf.CellFormat(35, rowHeight, row.UnitPrice, "", 0, "R", false, 0, "")
			pdf.CellFormat(35, rowHeight, row.Subtotal, "", 1, "R", false, 0, "")
		}

		if i == total-1 {
			standardClosing(pdf, doc, tr)
		}
	}
	return pdf
}

func standardHeader(pdf *gofpdf.Fpdf, doc Document, tr func(string) string) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(standardWidth, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(standardWidth, 6, doc.Subtitle, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if doc.Address != "" {
		pdf.CellFormat(standardWidth, 5, tr(doc.Address), "", 1, "C", false, 0, "")
	}
	if doc.Phone != "" {
		pdf.CellFormat(standardWidth, 5, "Telp: "+doc.Phone, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(standardWidth, 7, "INFORMASI TRANSAKSI", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, field := range doc.Info {
		pdf.CellFormat(60, rowHeight, field.Label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(120, rowHeight, tr(field.Value), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(standardWidth, 7, "DETAIL LAYANAN", "1", 1, "L", true, 0, "")
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(95, 7, "Layanan", "1", 0, "L", true, 0, "")
	pdf.CellFormat(15, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Harga", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Subtotal", "1", 1, "R", true, 0, "")
}

func standardClosing(pdf *gofpdf.Fpdf, doc Document, tr func(string) string) {
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	amountRow(pdf, "Total Tagihan:", doc.Total)
	amountRow(pdf, "Jumlah Bayar:", doc.Tendered)
	amountRow(pdf, "Kembalian:", doc.Change)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	infoRow(pdf, "Metode Pembayaran:", tr(doc.Method))
	infoRow(pdf, "Status Pembayaran:", tr(doc.Status))
	infoRow(pdf, "Tanggal Pembayaran:", doc.PaymentDate)
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(standardWidth, rowHeight, doc.Footer[0], "T", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(standardWidth, rowHeight, doc.Footer[1], "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(standardWidth, rowHeight, doc.Footer[2], "", 1, "C", false, 0, "")
}

func amountRow(pdf *gofpdf.Fpdf, label string, value string) {
	pdf.CellFormat(110, rowHeight, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, rowHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(35, rowHeight, value, "", 1, "R", false, 0, "")
}

func infoRow(pdf *gofpdf.Fpdf, label string, value string) {
	pdf.CellFormat(60, rowHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(120, rowHeight, value, "", 1, "R", false, 0, "")
}

func narrowHeight(doc Document) float64 {
	// header, info, two lines per row, totals, payment info and footer
	lines := 4 + len(doc.Info) + 2*len(doc.Rows) + 3 + 2 + 3
	return 2*narrowMargin + float64(lines)*narrowLine + 20
}

func renderNarrow(doc Document) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: narrowWidth, Ht: narrowHeight(doc)},
	})
	pdf.SetMargins(narrowMargin, narrowMargin, narrowMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle(fmt.Sprintf("Struk Thermal %d", doc.SaleID), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width := narrowWidth - 2*narrowMargin

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(width, 6, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(width, narrowLine, doc.Subtitle, "B", 1, "C", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "", 7)
	for _, field := range doc.Info {
		pdf.CellFormat(width, narrowLine, tr(fmt.Sprintf("%-10s: %s", field.Label, field.Value)), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(width, 2, "", "B", 1, "L", false, 0, "")
	pdf.Ln(1)

	for _, row := range doc.Rows {
		pdf.CellFormat(width, narrowLine, tr(row.Name), "", 1, "L", false, 0, "")
		pdf.CellFormat(width/2, narrowLine, fmt.Sprintf("  %dx %s", row.Quantity, row.UnitPrice), "", 0, "L", false, 0, "")
		pdf.CellFormat(width/2, narrowLine, row.Subtotal, "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(width, 2, "", "B", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "B", 8)
	narrowAmount(pdf, width, "Total:", doc.Total)
	narrowAmount(pdf, width, "Bayar:", doc.Tendered)
	narrowAmount(pdf, width, "Kembali:", doc.Change)
	pdf.CellFormat(width, 2, "", "B", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "", 7)
	pdf.CellFormat(width, narrowLine, tr("Metode: "+doc.Method), "", 1, "L", false, 0, "")
	pdf.CellFormat(width, narrowLine, tr("Status: "+doc.Status), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for i, line := range doc.Footer {
		if i == len(doc.Footer)-1 {
			pdf.SetFont("Arial", "", 6)
		}
		pdf.CellFormat(width, narrowLine, line, "", 1, "C", false, 0, "")
	}
	return pdf
}

func narrowAmount(pdf *gofpdf.Fpdf, width float64, label string, value string) {
	pdf.CellFormat(width/2, narrowLine, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(width/2, narrowLine, value, "", 1, "R", false, 0, "")
}
