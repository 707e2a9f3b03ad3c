package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

func facialLine(qty int64) domain.SaleLine {
	price := decimal.NewFromInt(150000)
	return domain.SaleLine{ServiceID: 3, Quantity: int(qty), UnitPrice: price, Subtotal: price.Mul(decimal.NewFromInt(qty))}
}

func TestCreateSaleRejectsWithoutPartialRows(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	bad := domain.Sale{
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CustomerID: 1,
		CreatedBy:  3,
		Total:      decimal.NewFromInt(150000),
		Lines:      []domain.SaleLine{facialLine(1), {ServiceID: 999, Quantity: 1}},
	}
	if _, err := s.CreateSale(ctx, bad); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(s.sales) != 0 {
		t.Fatalf("expected no sale rows after a rejected sale, got %d", len(s.sales))
	}

	mismatch := bad
	mismatch.Lines = []domain.SaleLine{facialLine(2)}
	if _, err := s.CreateSale(ctx, mismatch); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected total mismatch to fail, got %v", err)
	}
}

func TestCreatePaymentAllowsOnePaid(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale, err := s.CreateSale(ctx, domain.Sale{
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CustomerID: 1,
		CreatedBy:  3,
		Total:      decimal.NewFromInt(300000),
		Lines:      []domain.SaleLine{facialLine(2)},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.CustomerName != "Siti Aminah" || sale.Lines[0].ServiceName != "Facial" {
		t.Fatalf("expected decorated sale, got %+v", sale)
	}

	payment := domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(300000), Method: domain.MethodCash, Status: domain.PaymentPaid, RecordedBy: 3, Date: sale.Date}
	if _, err := s.CreatePayment(ctx, payment); err != nil {
		t.Fatalf("first paid payment: %v", err)
	}
	if _, err := s.CreatePayment(ctx, payment); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for a second paid payment, got %v", err)
	}

	payment.SaleID = 999
	if _, err := s.CreatePayment(ctx, payment); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing sale, got %v", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.DeleteCategory(ctx, 2); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected category with services to be kept, got %v", err)
	}
	if _, err := s.CreateSale(ctx, domain.Sale{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), CustomerID: 2, CreatedBy: 3,
		Total: decimal.NewFromInt(150000), Lines: []domain.SaleLine{facialLine(1)},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.DeleteService(ctx, 3); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected service on a sale line to be kept, got %v", err)
	}
	if err := s.DeleteCustomer(ctx, 2); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected customer with sales to be kept, got %v", err)
	}
	if err := s.DeleteService(ctx, 4); err != nil {
		t.Fatalf("expected unused service to be deleted, got %v", err)
	}
}
