package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riasin/backend/internal/domain"
)

// Writer stores rendered receipts under a single output directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = filepath.Join("reports", "pdf")
	}
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// FileName follows <kind>_<saleId>_<YYYYMMDD_HHMMSS>.pdf.
func FileName(layout Layout, saleID int64, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s.pdf", layout.Kind(), saleID, at.Format("20060102_150405"))
}

func (w *Writer) Save(doc Document) (domain.ReceiptFile, error) {
	content, err := RenderPDF(doc)
	if err != nil {
		return domain.ReceiptFile{}, err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return domain.ReceiptFile{}, fmt.Errorf("create receipt dir: %w", err)
	}

	name := FileName(doc.Layout, doc.SaleID, doc.GeneratedAt)
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return domain.ReceiptFile{}, fmt.Errorf("write receipt: %w", err)
	}

	return domain.ReceiptFile{
		SaleID:   doc.SaleID,
		Layout:   string(doc.Layout),
		FileName: name,
		Path:     path,
		Pages:    doc.PageCount(),
	}, nil
}
