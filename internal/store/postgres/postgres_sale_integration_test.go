package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riasin/backend/internal/domain"
	"riasin/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("RIASIN_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RIASIN_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

type saleFixture struct {
	userID     int64
	customerID int64
	serviceID  int64
}

func seedSaleFixture(t *testing.T, s *Store) saleFixture {
	t.Helper()
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	user, err := s.CreateUser(ctx, domain.UserAccount{
		Username:    fmt.Sprintf("kasir-it-%d", stamp),
		Password:    "hash",
		DisplayName: "Kasir IT",
		Role:        domain.RoleCashier,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	customer, err := s.CreateCustomer(ctx, domain.Customer{
		Name:  "Ani IT",
		Phone: fmt.Sprintf("08%d", stamp%10_000_000_000),
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	category, err := s.CreateCategory(ctx, domain.ServiceCategory{Name: fmt.Sprintf("Kategori IT %d", stamp)})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	svc, err := s.CreateService(ctx, domain.Service{
		CategoryID:      category.ID,
		Name:            "Facial IT",
		Price:           decimal.NewFromInt(150000),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE recorded_by = $1`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE created_by = $1`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, svc.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM service_categories WHERE id = $1`, category.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, user.ID)
	})

	return saleFixture{userID: user.ID, customerID: customer.ID, serviceID: svc.ID}
}

func TestCreateSaleRollsBackWhenALineFails(t *testing.T) {
	s := newIntegrationStore(t)
	fx := seedSaleFixture(t, s)
	ctx := context.Background()

	price := decimal.NewFromInt(150000)
	_, err := s.CreateSale(ctx, domain.Sale{
		Date:       time.Now().UTC(),
		CustomerID: fx.customerID,
		CreatedBy:  fx.userID,
		Total:      price.Mul(decimal.NewFromInt(2)),
		Lines: []domain.SaleLine{
			{ServiceID: fx.serviceID, Quantity: 1, UnitPrice: price, Subtotal: price},
			{ServiceID: -1, Quantity: 1, UnitPrice: price, Subtotal: price},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing service, got %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE created_by = $1`, fx.userID).Scan(&count); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no sale header after rollback, got %d", count)
	}
}

func TestCreatePaymentRejectsSecondSettlement(t *testing.T) {
	s := newIntegrationStore(t)
	fx := seedSaleFixture(t, s)
	ctx := context.Background()

	price := decimal.NewFromInt(150000)
	sale, err := s.CreateSale(ctx, domain.Sale{
		Date:       time.Now().UTC(),
		CustomerID: fx.customerID,
		CreatedBy:  fx.userID,
		Total:      price,
		Lines:      []domain.SaleLine{{ServiceID: fx.serviceID, Quantity: 1, UnitPrice: price, Subtotal: price}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(sale.Lines) != 1 || !sale.Total.Equal(price) {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	payment := domain.Payment{
		SaleID:     sale.ID,
		Amount:     decimal.NewFromInt(200000),
		Method:     domain.MethodCash,
		Date:       time.Now().UTC(),
		Status:     domain.PaymentPaid,
		RecordedBy: fx.userID,
	}
	if _, err := s.CreatePayment(ctx, payment); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, err := s.CreatePayment(ctx, payment); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on second settlement, got %v", err)
	}

	settled, err := s.HasSettledPayment(ctx, sale.ID)
	if err != nil {
		t.Fatalf("has settled payment: %v", err)
	}
	if !settled {
		t.Fatalf("expected sale %d to be settled", sale.ID)
	}
}
