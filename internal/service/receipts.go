package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/receipt"
	"riasin/backend/internal/store"
)

// RenderReceipt writes a receipt PDF for the sale. paymentID 0 selects the
// latest payment.
func (s *Service) RenderReceipt(ctx context.Context, saleID int64, layout string, paymentID int64) (domain.ReceiptFile, error) {
	if _, err := s.authorize(ctx, ReceiptReaders, "print receipts"); err != nil {
		return domain.ReceiptFile{}, err
	}
	parsed, err := receipt.ParseLayout(layout)
	if err != nil {
		return domain.ReceiptFile{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	doc, err := s.receiptDocument(ctx, saleID, paymentID, parsed)
	if err != nil {
		return domain.ReceiptFile{}, err
	}

	file, err := s.receipts.Save(doc)
	if err != nil {
		return domain.ReceiptFile{}, fmt.Errorf("%w: %v", store.ErrStore, err)
	}
	s.logAudit(ctx, "receipt_render", "sale", saleID, fmt.Sprintf("layout=%s,file=%s", file.Layout, file.FileName))
	return file, nil
}

// ReceiptPDF renders the same document as RenderReceipt in memory without
// writing it to the receipt directory.
func (s *Service) ReceiptPDF(ctx context.Context, saleID int64, layout string, paymentID int64) (string, []byte, error) {
	if _, err := s.authorize(ctx, ReceiptReaders, "print receipts"); err != nil {
		return "", nil, err
	}
	parsed, err := receipt.ParseLayout(layout)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	doc, err := s.receiptDocument(ctx, saleID, paymentID, parsed)
	if err != nil {
		return "", nil, err
	}
	content, err := receipt.RenderPDF(doc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", store.ErrStore, err)
	}
	return receipt.FileName(doc.Layout, doc.SaleID, doc.GeneratedAt), content, nil
}

func (s *Service) BuildPrinterReceipt(ctx context.Context, saleID int64) (domain.PrinterReceipt, error) {
	if _, err := s.authorize(ctx, ReceiptReaders, "print receipts"); err != nil {
		return domain.PrinterReceipt{}, err
	}
	doc, err := s.receiptDocument(ctx, saleID, 0, receipt.Narrow)
	if err != nil {
		return domain.PrinterReceipt{}, err
	}

	payload, preview := receipt.RenderEscpos(doc)
	return domain.PrinterReceipt{
		SaleID:       saleID,
		EscposBase64: base64.StdEncoding.EncodeToString(payload),
		PreviewText:  preview,
		FileName:     fmt.Sprintf("receipt-%d.bin", saleID),
	}, nil
}

func (s *Service) receiptDocument(ctx context.Context, saleID int64, paymentID int64, layout receipt.Layout) (receipt.Document, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return receipt.Document{}, err
	}
	payments, err := s.repo.ListSalePayments(ctx, saleID)
	if err != nil {
		return receipt.Document{}, err
	}
	if len(payments) == 0 {
		return receipt.Document{}, fmt.Errorf("%w: sale %d has no payment yet", store.ErrValidation, saleID)
	}

	payment := payments[len(payments)-1]
	if paymentID > 0 {
		found := false
		for _, p := range payments {
			if p.ID == paymentID {
				payment, found = p, true
				break
			}
		}
		if !found {
			return receipt.Document{}, fmt.Errorf("%w: payment %d for sale %d", store.ErrNotFound, paymentID, saleID)
		}
	}

	return receipt.Build(receipt.Input{
		Business: s.business,
		Sale:     *sale,
		Payment:  payment,
	}, layout, s.now().In(s.loc)), nil
}
